package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grauwen/utlx-conformance-harness/framework/rpctest"
)

func TestSuppressionsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failures.txt")
	require.NoError(t, writeSuppressions(path, []rpctest.TestResult{
		{TestID: rpctest.TestID{"hover", "basic"}},
		{TestID: rpctest.TestID{"tools", "call(kind=a.b)"}},
	}))

	var patterns rpctest.TestIDPatternList
	require.NoError(t, readSuppressions(path, &patterns))
	filters := rpctest.RegexFilters{MustNotMatch: patterns}

	assert.False(t, filters.Match(rpctest.TestID{"hover", "basic"}))
	assert.False(t, filters.Match(rpctest.TestID{"tools", "call(kind=a.b)"}))
	assert.True(t, filters.Match(rpctest.TestID{"tools", "call(kind=axb)"}))
	assert.True(t, filters.Match(rpctest.TestID{"hover"}))
}

func TestSuppressionFileSkipsCommentsAndBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "skip.txt")
	require.NoError(t, os.WriteFile(path, []byte("# known failures\n\nhover/basic\n"), 0o600))

	var patterns rpctest.TestIDPatternList
	require.NoError(t, readSuppressions(path, &patterns))
	assert.Len(t, patterns, 1)
}

func TestMissingSuppressionFile(t *testing.T) {
	var patterns rpctest.TestIDPatternList
	err := readSuppressions(filepath.Join(t.TempDir(), "nope"), &patterns)
	assert.ErrorContains(t, err, "cannot open suppression file")
}
