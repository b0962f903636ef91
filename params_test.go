package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grauwen/utlx-conformance-harness/data"
	"github.com/grauwen/utlx-conformance-harness/executor"
	"github.com/grauwen/utlx-conformance-harness/framework/harness"
	"github.com/grauwen/utlx-conformance-harness/framework/rpctest"
)

func parseArgs(args ...string) (commandParams, error) {
	var p commandParams
	err := p.parse(append([]string{"harness"}, args...), io.Discard)
	return p, err
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "harness.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultParams(t *testing.T) {
	p, err := parseArgs("--peer-command", "utlx  lsp --stdio")
	require.NoError(t, err)

	assert.Equal(t, data.TransportLSP, p.transport)
	assert.Equal(t, defaultTestsPath, p.testsPath)
	assert.Equal(t, []string{"utlx", "lsp", "--stdio"}, p.peerCommand)
	assert.Equal(t, executor.DefaultResponseTimeout, p.responseTimeout)
	assert.Equal(t, harness.DefaultGracePeriod, p.gracePeriod)
	assert.Equal(t, time.Duration(0), p.settleDelay)
	assert.False(t, p.filters.IsDefined())
	assert.False(t, p.fileFilter().IsDefined())
	assert.Equal(t, harness.PeerConfig{}, p.daemonConfig())
}

func TestParamsFromFlags(t *testing.T) {
	p, err := parseArgs(
		"--transport", "MCP-STDIO",
		"--peer-command", "node server.js",
		"--peer-env", "DEBUG=1",
		"-c", "protocol,tools",
		"-t", "smoke", "-t", "slow",
		"-n", "hover",
		"--run", "protocol/init",
		"--timeout", "2s",
		"--settle-delay", "100ms",
		"--stderr-filter", "^DEBUG",
		"--capture-tests",
		"suite/tests",
	)
	require.NoError(t, err)

	assert.Equal(t, data.TransportMCPStdio, p.transport)
	assert.Equal(t, "suite/tests", p.testsPath)
	assert.Equal(t, data.Filter{Categories: []string{"protocol", "tools"}, Tags: []string{"smoke", "slow"}, Name: "hover"},
		p.fileFilter())
	assert.True(t, p.filters.Match(rpctest.TestID{"protocol", "initialize"}))
	assert.False(t, p.filters.Match(rpctest.TestID{"tools", "list"}))
	assert.Equal(t, executor.Config{
		ResponseTimeout:     2 * time.Second,
		NotificationTimeout: executor.DefaultNotificationTimeout,
		HTTPTimeout:         p.httpTimeout,
		SettleDelay:         100 * time.Millisecond,
	}, p.executorConfig())

	peer := p.peerConfig()
	assert.Equal(t, []string{"node", "server.js"}, peer.Command)
	assert.Equal(t, []string{"DEBUG=1"}, peer.Env)
	assert.True(t, peer.CaptureTests)
	require.Len(t, peer.StderrFilters, 1)
	assert.True(t, peer.StderrFilters[0].MatchString("DEBUG loading"))
}

func TestParamErrors(t *testing.T) {
	for _, tc := range []struct {
		name  string
		args  []string
		error string
	}{
		{"no peer command", nil, "--peer-command is required for the lsp transport"},
		{"bad transport", []string{"--transport", "grpc"}, `unknown transport "grpc"`},
		{"two test paths", []string{"--tests", "a", "b", "--validate-only"}, "given both"},
		{"extra arguments", []string{"a", "b", "--validate-only"}, "unexpected arguments: b"},
		{"bad stderr filter", []string{"--stderr-filter", "(", "--validate-only"}, "invalid --stderr-filter"},
		{"start daemon without command", []string{"--transport", "http", "--start-daemon"}, "--start-daemon needs"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseArgs(tc.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.error)
		})
	}
}

func TestHTTPTransportNeedsNoPeerCommand(t *testing.T) {
	p, err := parseArgs("--transport", "http", "--url", "http://localhost:9000")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000", p.serviceURL)
}

func TestConfigFile(t *testing.T) {
	path := writeConfigFile(t, `
transport = "http"
tests = "conformance/tests"
peer_command = ["java", "-jar", "/opt/utlx/utlxd.jar", "--rest"]
url = "http://localhost:7779"
start_daemon = true
tag = ["smoke"]
timeout = "3s"
grace_period = "1s"
stderr_filter = ["^INFO"]
junit = "out.xml"
`)
	p, err := parseArgs("--config", path)
	require.NoError(t, err)

	assert.Equal(t, data.TransportHTTP, p.transport)
	assert.Equal(t, "conformance/tests", p.testsPath)
	assert.Equal(t, "http://localhost:7779", p.serviceURL)
	assert.Equal(t, []string{"smoke"}, p.tags)
	assert.Equal(t, 3*time.Second, p.responseTimeout)
	assert.Equal(t, "out.xml", p.jUnitFile)
	daemon := p.daemonConfig()
	assert.Equal(t, []string{"java", "-jar", "/opt/utlx/utlxd.jar", "--rest"}, daemon.Command)
	assert.Equal(t, time.Second, daemon.GracePeriod)
	require.Len(t, daemon.StderrFilters, 1)
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	path := writeConfigFile(t, `
transport = "mcp-stdio"
tests = "from-file"
peer_command = ["from", "file"]
timeout = "3s"
`)
	p, err := parseArgs("--config", path, "--timeout", "1s", "--peer-command", "from flag", "from-arg")
	require.NoError(t, err)

	assert.Equal(t, data.TransportMCPStdio, p.transport)
	assert.Equal(t, "from-arg", p.testsPath)
	assert.Equal(t, []string{"from", "flag"}, p.peerCommand)
	assert.Equal(t, time.Second, p.responseTimeout)
}

func TestConfigFileErrors(t *testing.T) {
	for _, tc := range []struct {
		name    string
		content string
		error   string
	}{
		{"syntax", "transport = ", "load config"},
		{"unknown key", "colour = true\n", "unknown keys: colour"},
		{"bad duration", `timeout = "soon"`, "parse timeout"},
		{"bad transport", `transport = "grpc"`, "parse transport"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseArgs("--config", writeConfigFile(t, tc.content), "--validate-only")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.error)
		})
	}
}
