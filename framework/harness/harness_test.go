package harness

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"regexp"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"github.com/launchdarkly/go-test-helpers/v2/httphelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grauwen/utlx-conformance-harness/framework"
	"github.com/grauwen/utlx-conformance-harness/jsonrpc"
	"github.com/grauwen/utlx-conformance-harness/mockpeer"
)

const (
	helperModeVar = "UTLX_HARNESS_HELPER"
	helperAddrVar = "UTLX_HARNESS_HELPER_ADDR"
)

// The test binary doubles as the peer process: with helperModeVar set, it runs a peer instead
// of the tests.
func TestMain(m *testing.M) {
	if mode := os.Getenv(helperModeVar); mode != "" {
		os.Exit(runHelperPeer(mode))
	}
	os.Exit(m.Run())
}

func runHelperPeer(mode string) int {
	switch mode {
	case "header", "line":
		fmt.Fprintf(os.Stderr, "%s=%s\n", CaptureTestsEnvVar, os.Getenv(CaptureTestsEnvVar))
		fmt.Fprintln(os.Stderr, "noise: ignore me")
		codec, err := jsonrpc.NewCodec(jsonrpc.Framing(mode), os.Stdin, os.Stdout)
		if err != nil {
			return 2
		}
		status, err := mockpeer.Serve(codec)
		if err != nil {
			return 2
		}
		return status.Code()
	case "crash":
		fmt.Fprintln(os.Stderr, "fatal: cannot load grammar")
		return 3
	case "hang":
		time.Sleep(time.Minute)
		return 0
	case "http":
		go func() {
			_, _ = io.Copy(io.Discard, os.Stdin)
			os.Exit(0)
		}()
		server := &http.Server{
			Addr:              os.Getenv(helperAddrVar),
			Handler:           mockpeer.NewRESTService(nil),
			ReadHeaderTimeout: 10 * time.Second,
		}
		_ = server.ListenAndServe()
		return 1
	default:
		return 2
	}
}

func helperConfig(mode string) PeerConfig {
	return PeerConfig{
		Command:     []string{os.Args[0], "-test.run=^$"},
		Env:         []string{helperModeVar + "=" + mode},
		GracePeriod: 5 * time.Second,
	}
}

func TestLSPSessionLifecycle(t *testing.T) {
	config := helperConfig("header")
	config.CaptureTests = true
	config.StderrFilters = []*regexp.Regexp{regexp.MustCompile(`^noise:`)}
	logger := &framework.CapturingLogger{}

	session, err := StartStdioSession(config, jsonrpc.FramingHeader, true, logger)
	require.NoError(t, err)

	id, err := session.Conn().SendRequest("initialize", ldvalue.ObjectBuild().Build())
	require.NoError(t, err)
	resp, err := session.Conn().AwaitResponse(id, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, mockpeer.ServerName, resp.Result.GetByKey("serverInfo").GetByKey("name").StringValue())

	require.NoError(t, session.Close(false))
	assert.Equal(t, 0, session.Process().ExitCode())

	output := logger.Output().ToString("")
	assert.Contains(t, output, "Starting peer: ")
	assert.Contains(t, output, "stderr: "+CaptureTestsEnvVar+"=true")
	assert.NotContains(t, output, "stderr: noise")
	assert.Contains(t, output, `"method":"shutdown"`)
	assert.Contains(t, output, `"method":"exit"`)
	assert.Contains(t, session.Process().StderrTail(), "noise: ignore me")
}

func TestLineSessionEndsWhenStdinCloses(t *testing.T) {
	logger := &framework.CapturingLogger{}
	session, err := StartStdioSession(helperConfig("line"), jsonrpc.FramingLine, false, logger)
	require.NoError(t, err)

	id, err := session.Conn().SendRequest("echo", ldvalue.String("hi"))
	require.NoError(t, err)
	resp, err := session.Conn().AwaitResponse(id, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, ldvalue.String("hi"), resp.Result)

	require.NoError(t, session.Close(false))
	assert.Equal(t, 1, session.Process().ExitCode())
	assert.Contains(t, logger.Output().ToString(""), "stderr: "+CaptureTestsEnvVar+"=false")
	assert.NotContains(t, logger.Output().ToString(""), `"method":"shutdown"`)
}

func TestStartupDelayDetectsEarlyExit(t *testing.T) {
	config := helperConfig("crash")
	config.StartupDelay = 10 * time.Second
	startTime := time.Now()
	_, err := StartPeer(config, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "peer exited during startup with code 3")
	assert.Contains(t, err.Error(), "fatal: cannot load grammar")
	assert.Less(t, time.Since(startTime), 10*time.Second)
}

func TestStopKillsPeerAfterGracePeriod(t *testing.T) {
	config := helperConfig("hang")
	config.GracePeriod = 200 * time.Millisecond
	p, err := StartPeer(config, nil)
	require.NoError(t, err)
	err = p.Stop()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "was killed")
	select {
	case <-p.Exited():
	default:
		assert.Fail(t, "process should have exited")
	}
}

func TestStopKillsChildrenThatHoldStderr(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	p, err := StartPeer(PeerConfig{
		Command:     []string{"sh", "-c", "sleep 30 & exec sleep 30"},
		GracePeriod: 200 * time.Millisecond,
	}, nil)
	require.NoError(t, err)

	start := time.Now()
	err = p.Stop()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "was killed")
	assert.Less(t, time.Since(start), 2*killWaitDelay+time.Second)
}

func TestStartPeerErrors(t *testing.T) {
	_, err := StartPeer(PeerConfig{}, nil)
	assert.Error(t, err)

	_, err = StartPeer(PeerConfig{Command: []string{"/no/such/program"}}, nil)
	assert.Error(t, err)
}

func TestCommandStringIsQuoted(t *testing.T) {
	config := PeerConfig{Command: []string{"/opt/my peer/bin/utlx", "lsp", "--log=$HOME"}}
	assert.Equal(t, `'/opt/my peer/bin/utlx' lsp '--log=$HOME'`, config.CommandString())
}

func TestConnectToRunningDaemon(t *testing.T) {
	httphelpers.WithServer(mockpeer.NewRESTService(nil), func(server *httptest.Server) {
		d, err := ConnectDaemon(server.URL, PeerConfig{}, time.Second, nil, io.Discard)
		require.NoError(t, err)
		assert.True(t, d.IsRunning())
		assert.False(t, d.StartedByHarness())
		assert.NoError(t, d.Stop())
	})
}

func TestConnectToMissingDaemon(t *testing.T) {
	_, err := ConnectDaemon("http://"+unusedAddress(t), PeerConfig{}, time.Second, nil, io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not running")
}

func TestStartDaemon(t *testing.T) {
	addr := unusedAddress(t)
	config := helperConfig("http")
	config.Env = append(config.Env, helperAddrVar+"="+addr)
	var output bytes.Buffer

	d, err := ConnectDaemon("http://"+addr, config, 10*time.Second, nil, &output)
	require.NoError(t, err)
	assert.True(t, d.StartedByHarness())
	assert.True(t, d.IsRunning())
	assert.True(t, strings.HasPrefix(output.String(), "Starting daemon: "))

	require.NoError(t, d.Stop())
	assert.False(t, d.IsRunning())
}

func unusedAddress(t *testing.T) string {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestFilteredWriter(t *testing.T) {
	logger := &framework.CapturingLogger{}
	w := newFilteredWriter(logger, []*regexp.Regexp{regexp.MustCompile(`DEBUG`)})

	_, _ = w.Write([]byte("first li"))
	_, _ = w.Write([]byte("ne\r\nDEBUG hidden\nsecond"))
	assert.Len(t, logger.Output(), 1)
	w.Flush()

	var messages []string
	for _, m := range logger.Output() {
		messages = append(messages, m.Message)
	}
	assert.Equal(t, []string{"stderr: first line", "stderr: second"}, messages)
	assert.Equal(t, "first line\r\nDEBUG hidden\nsecond", w.Tail())
}

func TestFilteredWriterTailIsBounded(t *testing.T) {
	w := newFilteredWriter(framework.NullLogger(), nil)
	_, _ = w.Write(bytes.Repeat([]byte("a"), maxStderrTail))
	_, _ = w.Write([]byte("end\n"))
	tail := w.Tail()
	assert.Len(t, tail, maxStderrTail)
	assert.True(t, strings.HasSuffix(tail, "end\n"))
}
