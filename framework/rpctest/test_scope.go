package rpctest

import (
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/grauwen/utlx-conformance-harness/framework"
)

const excludedByFilter = "excluded by filter parameters"

// scopeExit is the panic value used by FailNow and Skip to unwind a scope.
type scopeExit struct {
	skip bool
}

// TestConfiguration contains options for the entire test run.
type TestConfiguration struct {
	// Filter decides which scopes run, by ID. A nil Filter runs everything.
	Filter Filter

	// TestLogger receives status information about each test.
	TestLogger TestLogger

	// Context is an application-defined value that tests can retrieve with T.Context.
	Context interface{}
}

type runState struct {
	config  TestConfiguration
	results Results
}

func (s *runState) admits(id TestID) bool {
	return s.config.Filter == nil || s.config.Filter(id)
}

func (s *runState) skipped(id TestID, reason string) {
	s.results.Skipped = append(s.results.Skipped, TestSkip{TestID: id, Reason: reason})
	s.config.TestLogger.TestSkipped(id, reason)
}

func (s *runState) completed(result TestResult) {
	if len(result.Errors) > 0 {
		s.results.Failures = append(s.results.Failures, result)
	}
	s.results.Tests = append(s.results.Tests, result)
}

// T is a test scope: one test file, one category, or the whole run. Its methods behave like
// those of Go's testing.T.
type T struct {
	state      *runState
	id         TestID
	output     framework.CapturingLogger
	errs       []error
	failed     bool
	skipReason *string
	children   int
	deferred   []func()
}

// Run executes action as the root scope of a test run and returns what happened.
func Run(config TestConfiguration, action func(*T)) Results {
	if config.TestLogger == nil {
		config.TestLogger = nullTestLogger{}
	}
	state := &runState{config: config}
	began := time.Now()
	(&T{state: state}).execute(action)
	state.results.Duration = time.Since(began)
	return state.results
}

func (t *T) execute(action func(*T)) TestResult {
	began := time.Now()
	func() {
		defer t.recoverExit()
		action(t)
	}()
	for len(t.deferred) > 0 {
		last := len(t.deferred) - 1
		fn := t.deferred[last]
		t.deferred = t.deferred[:last]
		fn()
	}
	result := TestResult{
		TestID:   t.id,
		Errors:   t.errs,
		Duration: time.Since(began),
		Leaf:     t.children == 0,
	}
	if t.skipReason == nil {
		t.state.completed(result)
	}
	return result
}

func (t *T) recoverExit() {
	r := recover()
	if r == nil {
		return
	}
	exit, ok := r.(scopeExit)
	switch {
	case ok && exit.skip:
		return
	case ok && len(t.errs) > 0:
		return
	case ok:
		t.Error(errors.New("test failed with no failure message"))
	default:
		t.Error(fmt.Errorf("unexpected panic in test: %+v\n%s", r, debug.Stack()))
	}
}

// ID returns the full name of this scope.
func (t *T) ID() TestID {
	return t.id
}

// Run runs action in a child scope called name, unless the filter excludes it.
func (t *T) Run(name string, action func(*T)) {
	id := t.id.Plus(name)
	t.children++
	logger := t.state.config.TestLogger

	logger.TestStarted(id)
	if !t.state.admits(id) {
		t.state.skipped(id, excludedByFilter)
		return
	}

	child := &T{state: t.state, id: id}
	t.output.AddChildLogger(&child.output)
	result := child.execute(action)
	t.output.RemoveChildLogger(&child.output)

	if child.skipReason != nil {
		t.state.skipped(id, *child.skipReason)
		return
	}
	logger.TestFinished(id, result, child.output.Output())
}

// Errorf marks the scope as failed with a formatted message and keeps going.
func (t *T) Errorf(format string, args ...interface{}) {
	t.Error(fmt.Errorf(format, args...))
}

// Error marks the scope as failed with err and keeps going. The error value is kept as is, so
// loggers can inspect its type.
func (t *T) Error(err error) {
	t.failed = true
	t.errs = append(t.errs, err)
	t.state.config.TestLogger.TestError(t.id, err)
}

// Failed reports whether Error or Errorf has been called.
func (t *T) Failed() bool {
	return t.failed
}

// FailNow ends the scope immediately as failed.
func (t *T) FailNow() {
	panic(scopeExit{})
}

// Skip ends the scope immediately as skipped.
func (t *T) Skip() {
	t.SkipWithReason("")
}

// SkipWithReason ends the scope immediately as skipped, recording reason.
func (t *T) SkipWithReason(reason string) {
	t.skipReason = &reason
	panic(scopeExit{skip: true})
}

// Debug adds a line to this scope's captured output.
func (t *T) Debug(message string, args ...interface{}) {
	t.output.Printf(message, args...)
}

// DebugLogger returns the logger that captures this scope's output. The captured lines are
// passed to TestLogger.TestFinished when the scope ends.
//
// A child scope starts with a copy of what its parent captured so far, and while the child
// runs, anything logged to the parent goes to the child. This keeps peer traffic logged by a
// long-lived session attached to whichever test file is running.
func (t *T) DebugLogger() framework.Logger {
	return &t.output
}

// Defer registers fn to run when the scope ends, whether it passed, failed, or was skipped.
// Functions run in reverse order of registration.
func (t *T) Defer(fn func()) {
	t.deferred = append(t.deferred, fn)
}

// Context returns TestConfiguration.Context.
func (t *T) Context() interface{} {
	return t.state.config.Context
}
