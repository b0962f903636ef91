package rpctest

import (
	"strings"
	"time"
)

// Results is the outcome of a whole run.
type Results struct {
	Tests    []TestResult
	Failures []TestResult
	Skipped  []TestSkip
	Duration time.Duration
}

// TestResult is the outcome of one test scope.
type TestResult struct {
	TestID   TestID
	Errors   []error
	Duration time.Duration

	// Leaf is true if the scope did not run any subtests. Only leaf scopes represent
	// test files; the others are grouping levels such as categories.
	Leaf bool
}

// TestSkip records a scope that was skipped, and why.
type TestSkip struct {
	TestID TestID
	Reason string
}

func (r Results) OK() bool {
	return len(r.Failures) == 0
}

// Counts returns the number of leaf tests that ran, and how many of them passed.
func (r Results) Counts() (total, passed int) {
	for _, t := range r.Tests {
		if !t.Leaf {
			continue
		}
		total++
		if len(t.Errors) == 0 {
			passed++
		}
	}
	return total, passed
}

type TestID []string

func (t TestID) String() string {
	return strings.Join(t, "/")
}

func (t TestID) Plus(name string) TestID {
	return append(append(TestID(nil), t...), name)
}
