package framework

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const timestampFormat = "2006-01-02 15:04:05.000"

// Logger is the logging interface used throughout the harness. *log.Logger satisfies it.
type Logger interface {
	Println(args ...interface{})
	Printf(message string, args ...interface{})
}

type nullLogger struct{}

func (nullLogger) Println(...interface{})        {}
func (nullLogger) Printf(string, ...interface{}) {}

// NullLogger returns a Logger that discards everything.
func NullLogger() Logger { return nullLogger{} }

type CapturedMessage struct {
	Time    time.Time
	Message string
}

type CapturedOutput []CapturedMessage

// ToString renders one "[timestamp] message" line per message, each starting with prefix.
func (output CapturedOutput) ToString(prefix string) string {
	lines := make([]string, len(output))
	for i, m := range output {
		lines[i] = fmt.Sprintf("%s[%s] %s", prefix, m.Time.Format(timestampFormat), m.Message)
	}
	return strings.Join(lines, "\n")
}

// CapturingLogger keeps everything logged during a test scope, such as wire traffic and the
// peer's stderr, so it can be shown if the test fails.
//
// Loggers form a tree that mirrors the scopes. While any child is attached, a message logged
// here is forwarded to the children and not kept here.
type CapturingLogger struct {
	lock     sync.Mutex
	output   CapturedOutput
	children []*CapturingLogger
}

func (l *CapturingLogger) Println(args ...interface{}) {
	l.record(strings.TrimSuffix(fmt.Sprintln(args...), "\n"))
}

func (l *CapturingLogger) Printf(message string, args ...interface{}) {
	l.record(fmt.Sprintf(message, args...))
}

func (l *CapturingLogger) record(text string) {
	l.deliver(CapturedMessage{Time: time.Now(), Message: text})
}

func (l *CapturingLogger) deliver(m CapturedMessage) {
	l.lock.Lock()
	targets := l.children
	if len(targets) == 0 {
		l.output = append(l.output, m)
	}
	l.lock.Unlock()
	for _, child := range targets {
		child.deliver(m)
	}
}

// Output returns a copy of the messages kept so far.
func (l *CapturingLogger) Output() CapturedOutput {
	l.lock.Lock()
	defer l.lock.Unlock()
	return append(CapturedOutput(nil), l.output...)
}

// AddChildLogger attaches child, which is first given a copy of everything kept here.
func (l *CapturingLogger) AddChildLogger(child *CapturingLogger) {
	l.lock.Lock()
	history := append(CapturedOutput(nil), l.output...)
	// children is never modified in place
	l.children = append(append([]*CapturingLogger(nil), l.children...), child)
	l.lock.Unlock()

	child.lock.Lock()
	child.output = append(history, child.output...)
	child.lock.Unlock()
}

func (l *CapturingLogger) RemoveChildLogger(child *CapturingLogger) {
	l.lock.Lock()
	defer l.lock.Unlock()
	var remaining []*CapturingLogger
	for _, c := range l.children {
		if c != child {
			remaining = append(remaining, c)
		}
	}
	l.children = remaining
}

type prefixedLogger struct {
	base   Logger
	prefix string
}

// LoggerWithPrefix returns a Logger that puts prefix in front of every message, such as
// "[daemon] " for lines about the REST daemon.
func LoggerWithPrefix(base Logger, prefix string) Logger {
	return prefixedLogger{base: base, prefix: prefix}
}

func (p prefixedLogger) Println(args ...interface{}) {
	p.base.Printf("%s%s", p.prefix, strings.TrimSuffix(fmt.Sprintln(args...), "\n"))
}

func (p prefixedLogger) Printf(message string, args ...interface{}) {
	p.base.Printf("%s%s", p.prefix, fmt.Sprintf(message, args...))
}
