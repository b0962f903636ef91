package data

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileExtensions are the extensions of files that are treated as tests.
var FileExtensions = []string{".yaml", ".yml", ".json"} //nolint:gochecknoglobals

// Filter selects test files. Empty fields match everything.
type Filter struct {
	// Categories matches the file's category or any directory in its relative path.
	Categories []string
	// Tags matches a file that has at least one of these tags.
	Tags []string
	// Name is a case-insensitive substring of the test name or file name.
	Name string
}

// IsDefined returns true if the filter can exclude anything.
func (f Filter) IsDefined() bool {
	return len(f.Categories) > 0 || len(f.Tags) > 0 || f.Name != ""
}

// MatchesPath applies the parts of the filter that only need the file's location.
func (f Filter) MatchesPath(relPath string) bool {
	if len(f.Categories) > 0 && !f.matchesCategory("", relPath) {
		return false
	}
	if f.Name != "" {
		base := strings.TrimSuffix(filepath.Base(relPath), filepath.Ext(relPath))
		if !containsFold(base, f.Name) {
			return false
		}
	}
	return true
}

// Matches applies the whole filter to a parsed test file.
func (f Filter) Matches(tf TestFile) bool {
	if len(f.Categories) > 0 && !f.matchesCategory(tf.Category, tf.Source.RelPath) {
		return false
	}
	if len(f.Tags) > 0 && !tf.Tags.HasAny(f.Tags...) {
		return false
	}
	if f.Name != "" && !containsFold(tf.Name, f.Name) && !containsFold(tf.Source.BaseName(), f.Name) {
		return false
	}
	return true
}

func (f Filter) matchesCategory(category, relPath string) bool {
	segments := strings.Split(filepath.ToSlash(filepath.Dir(relPath)), "/")
	for _, c := range f.Categories {
		if strings.EqualFold(c, category) {
			return true
		}
		for _, s := range segments {
			if strings.EqualFold(c, s) {
				return true
			}
		}
	}
	return false
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// LoadResult is the outcome of loading a test directory.
type LoadResult struct {
	Files []TestFile
	// Invalid has one *ConfigError for each file that could not be loaded.
	Invalid []*ConfigError
	// Excluded counts files or variants left out by the filter.
	Excluded int
}

// DiscoverFiles returns the test files under root in sorted order. If root is itself a file,
// it is the only result.
func DiscoverFiles(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("test path not found: %w", err)
	}
	if !info.IsDir() {
		return []string{root}, nil
	}
	var ret []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		for _, e := range FileExtensions {
			if ext == e {
				ret = append(ret, path)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(ret)
	return ret, nil
}

// LoadFile reads a test file and returns one TestFile per variant. The root is the directory
// that categories and relative paths are computed from.
func LoadFile(root, path string, transport Transport) ([]TestFile, error) {
	raw, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, &ConfigError{Path: path, Problems: []string{err.Error()}}
	}
	relPath := relativePath(root, path)
	variants, err := expandSubstitutions(raw)
	if err != nil {
		return nil, &ConfigError{Path: path, Problems: []string{"could not parse file: " + err.Error()}}
	}
	ret := make([]TestFile, 0, len(variants))
	for _, v := range variants {
		value, err := ParseValue(v.data)
		if err != nil {
			return nil, &ConfigError{Path: path, Problems: []string{"could not parse file: " + err.Error()}}
		}
		tf, err := ParseTestFile(value, SourceInfo{FilePath: path, RelPath: relPath, Params: v.params}, transport)
		if err != nil {
			return nil, err
		}
		ret = append(ret, tf)
	}
	return ret, nil
}

// LoadAll discovers, loads, validates and filters every test file under root. Invalid files are
// collected rather than stopping the load, unless the filter's path rules exclude them.
func LoadAll(root string, transport Transport, filter Filter) (LoadResult, error) {
	paths, err := DiscoverFiles(root)
	if err != nil {
		return LoadResult{}, err
	}
	baseDir := root
	if info, err := os.Stat(root); err == nil && !info.IsDir() {
		baseDir = filepath.Dir(root)
	}
	var result LoadResult
	for _, path := range paths {
		files, err := LoadFile(baseDir, path, transport)
		if err != nil {
			if filter.MatchesPath(relativePath(baseDir, path)) || !filter.IsDefined() {
				result.Invalid = append(result.Invalid, asConfigError(path, err))
			} else {
				result.Excluded++
			}
			continue
		}
		for _, tf := range files {
			if filter.Matches(tf) {
				result.Files = append(result.Files, tf)
			} else {
				result.Excluded++
			}
		}
	}
	return result, nil
}

func asConfigError(path string, err error) *ConfigError {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce
	}
	return &ConfigError{Path: path, Problems: []string{err.Error()}}
}

func relativePath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
