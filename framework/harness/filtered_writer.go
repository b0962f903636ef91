package harness

import (
	"bytes"
	"regexp"
	"strings"
	"sync"

	"github.com/grauwen/utlx-conformance-harness/framework"
)

const maxStderrTail = 64 * 1024

// filteredWriter receives a peer's stderr. Each complete line is sent to the logger unless it
// matches one of the exclusion patterns, and the most recent output is kept for error reports.
type filteredWriter struct {
	logger       framework.Logger
	excludeRegex []*regexp.Regexp
	partial      []byte
	tail         []byte
	lock         sync.Mutex
}

func newFilteredWriter(logger framework.Logger, excludeRegex []*regexp.Regexp) *filteredWriter {
	return &filteredWriter{logger: logger, excludeRegex: excludeRegex}
}

func (f *filteredWriter) Write(data []byte) (int, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.tail = append(f.tail, data...)
	if over := len(f.tail) - maxStderrTail; over > 0 {
		f.tail = f.tail[over:]
	}
	f.partial = append(f.partial, data...)
	for {
		i := bytes.IndexByte(f.partial, '\n')
		if i < 0 {
			break
		}
		f.logLine(string(f.partial[:i]))
		f.partial = f.partial[i+1:]
	}
	return len(data), nil
}

// Flush logs any incomplete last line.
func (f *filteredWriter) Flush() {
	f.lock.Lock()
	defer f.lock.Unlock()
	if len(f.partial) > 0 {
		f.logLine(string(f.partial))
		f.partial = nil
	}
}

// Tail returns up to the last 64KiB of output, including excluded lines.
func (f *filteredWriter) Tail() string {
	f.lock.Lock()
	defer f.lock.Unlock()
	return string(f.tail)
}

func (f *filteredWriter) logLine(line string) {
	line = strings.TrimRight(line, "\r")
	for _, r := range f.excludeRegex {
		if r.MatchString(line) {
			return
		}
	}
	f.logger.Printf("stderr: %s", line)
}
