package harness

import (
	"fmt"
	"io"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/grauwen/utlx-conformance-harness/framework"
	"github.com/grauwen/utlx-conformance-harness/jsonrpc"
	"github.com/grauwen/utlx-conformance-harness/restclient"
	"github.com/grauwen/utlx-conformance-harness/rpcconn"
)

// StdioSession is one peer process and the JSON-RPC connection over its stdio.
type StdioSession struct {
	process *PeerProcess
	conn    *rpcconn.Conn
	// lsp sessions get a shutdown request and an exit notification before stdin is closed.
	lsp    bool
	logger framework.Logger
}

// StartStdioSession starts a peer and connects to it with the given framing. The LSP shutdown
// handshake is used at the end if lsp is true.
func StartStdioSession(
	config PeerConfig,
	framing jsonrpc.Framing,
	lsp bool,
	logger framework.Logger,
) (*StdioSession, error) {
	if logger == nil {
		logger = framework.NullLogger()
	}
	process, err := StartPeer(config, logger)
	if err != nil {
		return nil, err
	}
	codec, err := jsonrpc.NewCodec(framing, process.Stdout(), process.Stdin())
	if err != nil {
		_ = process.Stop()
		return nil, err
	}
	conn, err := rpcconn.New(codec, rpcconn.WithLogger(logger))
	if err != nil {
		_ = process.Stop()
		return nil, err
	}
	return &StdioSession{process: process, conn: conn, lsp: lsp, logger: logger}, nil
}

// Conn returns the connection that steps are run on.
func (s *StdioSession) Conn() *rpcconn.Conn { return s.conn }

// Process returns the peer process.
func (s *StdioSession) Process() *PeerProcess { return s.process }

// Close ends the session. Unless skipHandshake is set, an LSP peer is first sent a shutdown
// request, awaited for half the grace period, and then an exit notification. After that stdin
// is closed and the process is given the grace period before it is killed. Errors here do not
// affect a test's result, so they are only returned for logging.
func (s *StdioSession) Close(skipHandshake bool) error {
	if s.lsp && !skipHandshake && s.conn.Err() == nil {
		s.shutdownHandshake(s.process.config.GracePeriod / 2)
	}
	_ = s.conn.Close()
	return s.process.Stop()
}

func (s *StdioSession) shutdownHandshake(timeout time.Duration) {
	id, err := s.conn.SendRequest("shutdown", ldvalue.Null())
	if err != nil {
		s.logger.Printf("Could not send shutdown request: %s", err)
		return
	}
	if _, err := s.conn.AwaitResponse(id, timeout); err != nil {
		s.logger.Printf("No response to shutdown request: %s", err)
	}
	if err := s.conn.SendNotification("exit", ldvalue.Null()); err != nil {
		s.logger.Printf("Could not send exit notification: %s", err)
	}
}

// Daemon is a REST peer. If the harness started it, Stop ends the process; otherwise the
// daemon is left running.
type Daemon struct {
	client  *restclient.Client
	process *PeerProcess
}

// ConnectDaemon checks the daemon's health endpoint. If it is not answering and startConfig has
// a command, that command is started and the health endpoint is polled until it answers or
// the startup timeout elapses.
func ConnectDaemon(
	baseURL string,
	startConfig PeerConfig,
	startupTimeout time.Duration,
	logger framework.Logger,
	output io.Writer,
) (*Daemon, error) {
	client, err := restclient.New(baseURL, restclient.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	d := &Daemon{client: client}
	if client.IsHealthy() {
		return d, nil
	}
	if len(startConfig.Command) == 0 {
		return nil, fmt.Errorf("daemon at %s is not running", baseURL)
	}
	fmt.Fprintf(output, "Starting daemon: %s\n", startConfig.CommandString())
	process, err := StartPeer(startConfig, logger)
	if err != nil {
		return nil, err
	}
	process.drainStdout()
	if err := client.WaitUntilHealthy(startupTimeout, output); err != nil {
		_ = process.Stop()
		return nil, fmt.Errorf("daemon did not become healthy: %w", err)
	}
	d.process = process
	return d, nil
}

// Client returns the client that steps are run on.
func (d *Daemon) Client() *restclient.Client { return d.client }

// IsRunning returns true if the daemon's health endpoint answers.
func (d *Daemon) IsRunning() bool { return d.client.IsHealthy() }

// StartedByHarness returns true if ConnectDaemon started the process.
func (d *Daemon) StartedByHarness() bool { return d.process != nil }

// Stop ends the daemon process if the harness started it.
func (d *Daemon) Stop() error {
	if d.process == nil {
		return nil
	}
	return d.process.Stop()
}
