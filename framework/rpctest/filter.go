package rpctest

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/grauwen/utlx-conformance-harness/framework/helpers"
)

// Filter reports whether the scope with the given ID should run.
type Filter func(TestID) bool

// RegexFilters holds the --run and --skip patterns. A scope runs when it matches some
// MustMatch pattern (or none were given) and matches no MustNotMatch pattern.
type RegexFilters struct {
	MustMatch    TestIDPatternList
	MustNotMatch TestIDPatternList
}

// Match is a Filter.
func (r RegexFilters) Match(id TestID) bool {
	if r.MustNotMatch.matchesExactly(id) {
		return false
	}
	return !r.MustMatch.IsDefined() || r.MustMatch.matchesPrefix(id)
}

// IsDefined reports whether any pattern was given.
func (r RegexFilters) IsDefined() bool {
	return r.MustMatch.IsDefined() || r.MustNotMatch.IsDefined()
}

// TestIDPattern matches a TestID component by component; its string form is the
// slash-separated list of regexes, such as "hover/^basic$".
type TestIDPattern []*regexp.Regexp

// ParseTestIDPattern splits s on slashes and compiles each part.
func ParseTestIDPattern(s string) (TestIDPattern, error) {
	var pattern TestIDPattern
	for _, part := range strings.Split(s, "/") {
		rx, err := regexp.Compile(part)
		if err != nil {
			return nil, fmt.Errorf("invalid regex: %w", err)
		}
		pattern = append(pattern, rx)
	}
	return pattern, nil
}

// Match compares each regex with the ID component at the same position. An ID with fewer
// components than the pattern matches only if partial is true; this lets a category run so
// that the pattern can still select test files inside it.
func (p TestIDPattern) Match(id TestID, partial bool) bool {
	if len(id) < len(p) && !partial {
		return false
	}
	for i, component := range id {
		if i == len(p) {
			break
		}
		if !p[i].MatchString(component) {
			return false
		}
	}
	return true
}

func (p TestIDPattern) String() string {
	parts := make([]string, len(p))
	for i, rx := range p {
		parts[i] = rx.String()
	}
	return strings.Join(parts, "/")
}

// TestIDPatternList collects a repeatable pattern flag. It implements pflag.Value.
type TestIDPatternList []TestIDPattern

func (l TestIDPatternList) String() string {
	quoted := make([]string, len(l))
	for i, p := range l {
		quoted[i] = `"` + p.String() + `"`
	}
	return strings.Join(quoted, " or ")
}

func (l *TestIDPatternList) Set(value string) error {
	p, err := ParseTestIDPattern(value)
	if err == nil {
		*l = append(*l, p)
	}
	return err
}

func (l *TestIDPatternList) Type() string {
	return "regex"
}

func (l TestIDPatternList) IsDefined() bool {
	return len(l) > 0
}

// AnyMatch reports whether some pattern in the list matches id.
func (l TestIDPatternList) AnyMatch(id TestID, partial bool) bool {
	for _, p := range l {
		if p.Match(id, partial) {
			return true
		}
	}
	return false
}

func (l TestIDPatternList) matchesPrefix(id TestID) bool  { return l.AnyMatch(id, true) }
func (l TestIDPatternList) matchesExactly(id TestID) bool { return l.AnyMatch(id, false) }

// PrintFilterDescription describes the active --run and --skip patterns, if any.
func PrintFilterDescription(w io.Writer, filters RegexFilters) {
	if !filters.IsDefined() {
		return
	}
	helpers.MustFprintln(w, "Some tests will be skipped based on the filter criteria for this test run:")
	for _, line := range []struct {
		patterns TestIDPatternList
		verb     string
	}{
		{filters.MustMatch, "skip any not matching"},
		{filters.MustNotMatch, "skip any matching"},
	} {
		if line.patterns.IsDefined() {
			helpers.MustFprintf(w, "  %s %s\n", line.verb, line.patterns)
		}
	}
	helpers.MustFprintln(w)
}
