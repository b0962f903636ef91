package rpctest

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/grauwen/utlx-conformance-harness/framework"
)

var consoleTestErrorColor = color.New(color.FgYellow)              //nolint:gochecknoglobals
var consoleTestFailedColor = color.New(color.FgRed)                //nolint:gochecknoglobals
var consoleTestPassedColor = color.New(color.FgGreen)              //nolint:gochecknoglobals
var consoleTestSkippedColor = color.New(color.Faint, color.FgBlue) //nolint:gochecknoglobals
var consoleDebugOutputColor = color.New(color.Faint)               //nolint:gochecknoglobals
var summaryHeaderColor = color.New(color.Bold)                     //nolint:gochecknoglobals

// TestLogger receives status information as tests run.
type TestLogger interface {
	TestStarted(id TestID)
	TestError(id TestID, err error)
	TestFinished(id TestID, result TestResult, debugOutput framework.CapturedOutput)
	TestSkipped(id TestID, reason string)
	EndLog(results Results) error
}

type nullTestLogger struct{}

func (n nullTestLogger) TestStarted(TestID)                                        {}
func (n nullTestLogger) TestError(TestID, error)                                   {}
func (n nullTestLogger) TestFinished(TestID, TestResult, framework.CapturedOutput) {}
func (n nullTestLogger) TestSkipped(TestID, string)                                {}
func (n nullTestLogger) EndLog(Results) error                                      { return nil }

// ConsoleTestLogger prints progress to standard output.
type ConsoleTestLogger struct {
	DebugOutputOnFailure bool
	DebugOutputOnSuccess bool
}

func (c ConsoleTestLogger) TestStarted(id TestID) {
	fmt.Printf("[%s]\n", id)
}

func (c ConsoleTestLogger) TestError(id TestID, err error) {
	for _, line := range strings.Split(err.Error(), "\n") {
		_, _ = consoleTestErrorColor.Printf("  %s\n", line)
	}
}

func (c ConsoleTestLogger) TestFinished(id TestID, result TestResult, debugOutput framework.CapturedOutput) {
	failed := len(result.Errors) != 0
	if failed {
		_, _ = consoleTestFailedColor.Printf("  FAILED: %s\n", id)
	} else if result.Leaf {
		_, _ = consoleTestPassedColor.Printf("  PASSED: %s (%.3fs)\n", id, result.Duration.Seconds())
	}
	if len(debugOutput) > 0 &&
		((failed && c.DebugOutputOnFailure) || (!failed && c.DebugOutputOnSuccess)) {
		_, _ = consoleDebugOutputColor.Println(debugOutput.ToString("    DEBUG "))
	}
}

func (c ConsoleTestLogger) TestSkipped(id TestID, reason string) {
	if reason == "" {
		_, _ = consoleTestSkippedColor.Printf("  SKIPPED: %s\n", id)
	} else {
		_, _ = consoleTestSkippedColor.Printf("  SKIPPED: %s (%s)\n", id, reason)
	}
}

func (c ConsoleTestLogger) EndLog(Results) error { return nil }

// MultiTestLogger forwards everything to several loggers, such as the console and a JUnit file.
type MultiTestLogger struct {
	Loggers []TestLogger
}

func (m *MultiTestLogger) TestStarted(id TestID) {
	for _, l := range m.Loggers {
		l.TestStarted(id)
	}
}

func (m *MultiTestLogger) TestError(id TestID, err error) {
	for _, l := range m.Loggers {
		l.TestError(id, err)
	}
}

func (m *MultiTestLogger) TestFinished(id TestID, result TestResult, debugOutput framework.CapturedOutput) {
	for _, l := range m.Loggers {
		l.TestFinished(id, result, debugOutput)
	}
}

func (m *MultiTestLogger) TestSkipped(id TestID, reason string) {
	for _, l := range m.Loggers {
		l.TestSkipped(id, reason)
	}
}

// EndLog calls EndLog on every logger and returns the first error.
func (m *MultiTestLogger) EndLog(results Results) error {
	var firstErr error
	for _, l := range m.Loggers {
		if err := l.EndLog(results); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// PrintResults writes the run summary: counts, elapsed time, and every failure with its errors.
func PrintResults(w io.Writer, results Results) {
	total, passed := results.Counts()
	failed := total - passed

	_, _ = summaryHeaderColor.Fprintln(w, strings.Repeat("=", 60))
	_, _ = summaryHeaderColor.Fprintln(w, "Test Summary")
	_, _ = summaryHeaderColor.Fprintln(w, strings.Repeat("=", 60))
	_, _ = fmt.Fprintf(w, "Total:   %d\n", total)
	_, _ = consoleTestPassedColor.Fprintf(w, "Passed:  %d\n", passed)
	if failed > 0 {
		_, _ = consoleTestFailedColor.Fprintf(w, "Failed:  %d\n", failed)
	}
	if len(results.Skipped) > 0 {
		_, _ = consoleTestSkippedColor.Fprintf(w, "Skipped: %d\n", len(results.Skipped))
	}
	if total > 0 {
		_, _ = fmt.Fprintf(w, "Success rate: %.1f%%\n", float64(passed)*100/float64(total))
	}
	_, _ = fmt.Fprintf(w, "Elapsed: %.2fs\n\n", results.Duration.Seconds())

	if results.OK() {
		_, _ = consoleTestPassedColor.Fprintln(w, "All tests passed")
		return
	}
	_, _ = consoleTestFailedColor.Fprintf(w, "FAILED TESTS (%d):\n", len(results.Failures))
	for _, f := range results.Failures {
		_, _ = consoleTestFailedColor.Fprintf(w, "  * %s\n", f.TestID)
		for _, err := range f.Errors {
			for _, line := range strings.Split(err.Error(), "\n") {
				_, _ = consoleTestErrorColor.Fprintf(w, "      %s\n", line)
			}
		}
	}
}
