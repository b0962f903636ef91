package harness

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/grauwen/utlx-conformance-harness/framework"

	"github.com/alessio/shellescape"
)

const (
	// CaptureTestsEnvVar tells the peer whether to record the traffic it sees as new test files.
	CaptureTestsEnvVar = "UTLX_CAPTURE_TESTS"

	DefaultGracePeriod = 5 * time.Second

	// killWaitDelay bounds how long Wait keeps copying stderr after the process is gone.
	killWaitDelay = 2 * time.Second
)

// PeerConfig says how to start a peer process.
type PeerConfig struct {
	// Command is the program and its arguments.
	Command []string
	// Env is added to the harness' own environment, as "NAME=value" entries.
	Env []string
	Dir string
	// CaptureTests is passed to the peer in CaptureTestsEnvVar.
	CaptureTests bool
	// StartupDelay is how long to wait after starting, to catch a peer that exits immediately.
	StartupDelay time.Duration
	// GracePeriod bounds how long Stop waits before killing the process.
	GracePeriod time.Duration
	// StderrFilters excludes matching stderr lines from the debug log.
	StderrFilters []*regexp.Regexp
}

// CommandString returns the command line, quoted for a POSIX shell.
func (c PeerConfig) CommandString() string {
	return shellescape.QuoteCommand(c.Command)
}

func (c PeerConfig) environment() []string {
	env := append(os.Environ(), c.Env...)
	return append(env, CaptureTestsEnvVar+"="+strconv.FormatBool(c.CaptureTests))
}

// PeerProcess is a running peer. Its stdin and stdout are the JSON-RPC stream; stderr goes to
// the debug logger.
type PeerProcess struct {
	config PeerConfig
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *os.File
	stderr *filteredWriter
	exited chan struct{}
	logger framework.Logger
}

// StartPeer starts the process. If StartupDelay is set and the process exits during it, the
// result is an error that includes the exit code and the end of stderr.
func StartPeer(config PeerConfig, logger framework.Logger) (*PeerProcess, error) {
	if len(config.Command) == 0 {
		return nil, errors.New("no peer command was specified")
	}
	if logger == nil {
		logger = framework.NullLogger()
	}
	if config.GracePeriod <= 0 {
		config.GracePeriod = DefaultGracePeriod
	}

	cmd := exec.Command(config.Command[0], config.Command[1:]...) //nolint:gosec
	cmd.Env = config.environment()
	cmd.Dir = config.Dir
	cmd.WaitDelay = killWaitDelay
	setProcessGroup(cmd)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	// Wait must not close the read side while the receive loop is still draining it.
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	cmd.Stdout = stdoutW
	stderr := newFilteredWriter(logger, config.StderrFilters)
	cmd.Stderr = stderr

	logger.Printf("Starting peer: %s", config.CommandString())
	if err := cmd.Start(); err != nil {
		_ = stdoutR.Close()
		_ = stdoutW.Close()
		return nil, fmt.Errorf("could not start peer %q: %w", config.Command[0], err)
	}
	_ = stdoutW.Close()

	p := &PeerProcess{
		config: config,
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdoutR,
		stderr: stderr,
		exited: make(chan struct{}),
		logger: logger,
	}
	go func() {
		_ = cmd.Wait()
		stderr.Flush()
		close(p.exited)
	}()

	if config.StartupDelay > 0 {
		select {
		case <-p.exited:
			_ = p.stdout.Close()
			return nil, p.earlyExitError()
		case <-time.After(config.StartupDelay):
		}
	}
	return p, nil
}

// Stdin is the stream that messages are written to.
func (p *PeerProcess) Stdin() io.WriteCloser { return p.stdin }

// Stdout is the stream that messages are read from.
func (p *PeerProcess) Stdout() io.ReadCloser { return p.stdout }

// Exited returns a channel that is closed when the process has exited.
func (p *PeerProcess) Exited() <-chan struct{} { return p.exited }

// ExitCode returns the exit code, or -1 if the process has not exited or was killed.
func (p *PeerProcess) ExitCode() int {
	select {
	case <-p.exited:
		return p.cmd.ProcessState.ExitCode()
	default:
		return -1
	}
}

// drainStdout sends stdout to the debug log, for a process whose stdout is not a JSON-RPC
// stream.
func (p *PeerProcess) drainStdout() {
	go func() {
		_, _ = io.Copy(p.stderr, p.stdout)
	}()
}

// StderrTail returns the end of the process' stderr output.
func (p *PeerProcess) StderrTail() string { return p.stderr.Tail() }

// Stop closes stdin, waits up to the grace period for the process to exit, and then kills it.
// Killing is reported as an error.
func (p *PeerProcess) Stop() error {
	_ = p.stdin.Close()
	deadline := time.NewTimer(p.config.GracePeriod)
	defer deadline.Stop()
	select {
	case <-p.exited:
		p.logger.Printf("Peer exited with code %d", p.ExitCode())
		return nil
	case <-deadline.C:
	}
	p.logger.Printf("Peer did not exit within %s; killing it", p.config.GracePeriod)
	if err := killProcessGroup(p.cmd); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("could not kill peer: %w", err)
	}
	reaped := time.NewTimer(2 * killWaitDelay)
	defer reaped.Stop()
	select {
	case <-p.exited:
	case <-reaped.C:
		p.logger.Printf("Peer was killed but is still holding its output streams open")
	}
	return fmt.Errorf("peer did not exit within %s and was killed", p.config.GracePeriod)
}

func (p *PeerProcess) earlyExitError() error {
	msg := fmt.Sprintf("peer exited during startup with code %d", p.ExitCode())
	if tail := strings.TrimSpace(p.StderrTail()); tail != "" {
		msg += "; stderr:\n" + tail
	}
	return errors.New(msg)
}
