package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grauwen/utlx-conformance-harness/conformance"
	"github.com/grauwen/utlx-conformance-harness/data"
)

func TestValidateOnlyResults(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "ok.yaml"),
		[]byte("name: other\nsequence:\n  - {type: notification, method: initialized}\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "bad.yaml"), []byte("name: bad\n"), 0o600))
	loaded, err := data.LoadAll(root, data.TransportLSP, data.Filter{})
	require.NoError(t, err)

	var out bytes.Buffer
	printLoadSummary(&out, commandParams{testsPath: root, transport: data.TransportLSP}, loaded)
	assert.Contains(t, out.String(), "Loaded 1 test(s) from "+root+" for transport lsp, 1 invalid")
	assert.Contains(t, out.String(), `warning: ok.yaml: test name "other" differs from file name "ok"`)

	results := validationResults(loaded)
	total, passed := results.Counts()
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, passed)
	require.Len(t, results.Failures, 1)
	assert.Equal(t, conformance.InvalidFilesCategory, results.Failures[0].TestID[0])
	assert.Contains(t, results.Failures[0].Errors[0].Error(), "missing sequence")
}

func TestRunProperties(t *testing.T) {
	props := runProperties(commandParams{
		transport:   data.TransportMCPStdio,
		testsPath:   "tests",
		peerCommand: []string{"node", "my server.js"},
	})
	assert.Equal(t, map[string]string{
		"transport":    "mcp-stdio",
		"tests":        "tests",
		"peer.command": "node 'my server.js'",
	}, props)
}
