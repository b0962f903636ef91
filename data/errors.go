package data

import (
	"fmt"
	"strings"
)

// ConfigError means a test file could not be used. It lists every problem found in the file.
// Path is empty if the problem is with the harness configuration rather than a file.
type ConfigError struct {
	Path     string
	Problems []string
}

func (e *ConfigError) Error() string {
	subject := "invalid configuration"
	if e.Path != "" {
		subject = "invalid test file " + e.Path
	}
	if len(e.Problems) == 1 {
		return fmt.Sprintf("%s: %s", subject, e.Problems[0])
	}
	return fmt.Sprintf("%s:\n  - %s", subject, strings.Join(e.Problems, "\n  - "))
}

type problemList struct {
	problems []string
}

func (p *problemList) add(format string, args ...interface{}) {
	p.problems = append(p.problems, fmt.Sprintf(format, args...))
}

func (p *problemList) errorFor(path string) error {
	if len(p.problems) == 0 {
		return nil
	}
	return &ConfigError{Path: path, Problems: p.problems}
}
