package main

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/grauwen/utlx-conformance-harness/framework/rpctest"
)

// A suppression file lists one test ID per line, such as "hover/basic". Blank lines and lines
// starting with "#" are ignored. --record-failures writes the same format.

func readSuppressions(path string, into *rpctest.TestIDPatternList) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("cannot open suppression file: %w", err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for lineNum := 1; scanner.Scan(); lineNum++ {
		id := strings.TrimSpace(scanner.Text())
		if id == "" || strings.HasPrefix(id, "#") {
			continue
		}
		if err := into.Set(regexp.QuoteMeta(id)); err != nil {
			return fmt.Errorf("%s:%d: %w", path, lineNum, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading suppression file: %w", err)
	}
	return nil
}

func writeSuppressions(path string, failures []rpctest.TestResult) error {
	var b strings.Builder
	for _, failure := range failures {
		b.WriteString(failure.TestID.String())
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil { //nolint:gosec
		return fmt.Errorf("cannot write suppression file: %w", err)
	}
	return nil
}
