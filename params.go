package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/grauwen/utlx-conformance-harness/data"
	"github.com/grauwen/utlx-conformance-harness/executor"
	"github.com/grauwen/utlx-conformance-harness/framework/harness"
	"github.com/grauwen/utlx-conformance-harness/framework/rpctest"
	"github.com/grauwen/utlx-conformance-harness/restclient"
)

const (
	defaultTestsPath            = "tests"
	defaultServiceURL           = "http://localhost:7778"
	defaultDaemonStartupTimeout = 30 * time.Second
)

type commandParams struct {
	transport            data.Transport
	testsPath            string
	peerCommand          []string
	peerEnv              []string
	serviceURL           string
	startDaemon          bool
	filters              rpctest.RegexFilters
	categories           []string
	tags                 []string
	name                 string
	responseTimeout      time.Duration
	notificationTimeout  time.Duration
	httpTimeout          time.Duration
	settleDelay          time.Duration
	gracePeriod          time.Duration
	startupDelay         time.Duration
	daemonStartupTimeout time.Duration
	stderrFilters        []*regexp.Regexp
	captureTests         bool
	configFile           string
	skipFile             string
	recordFailures       string
	jUnitFile            string
	debug                bool
	debugAll             bool
	validateOnly         bool
}

// Read parses the command line, printing usage information if it is invalid.
func (c *commandParams) Read(args []string) bool {
	if err := c.parse(args, os.Stderr); err != nil {
		if !errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return false
	}
	return true
}

func (c *commandParams) parse(args []string, usageOut io.Writer) error {
	fs := pflag.NewFlagSet(args[0], pflag.ContinueOnError)
	fs.SetOutput(usageOut)

	c.transport = data.TransportLSP
	fs.Var(&c.transport, "transport", "how to talk to the peer: lsp, mcp-stdio, or http")
	fs.StringVar(&c.testsPath, "tests", defaultTestsPath, "test file or directory (may also be given as an argument)")
	peerCommand := fs.String("peer-command", "", "command line that starts a stdio peer, split on whitespace")
	fs.StringArrayVar(&c.peerEnv, "peer-env", nil, "NAME=value to add to the peer's environment (repeatable)")
	fs.StringVar(&c.serviceURL, "url", defaultServiceURL, "base URL of the REST daemon")
	fs.BoolVar(&c.startDaemon, "start-daemon", false, "start the daemon with --peer-command if it is not running")
	fs.Var(&c.filters.MustMatch, "run", "regex pattern(s) of test IDs to run")
	fs.Var(&c.filters.MustNotMatch, "skip", "regex pattern(s) of test IDs not to run")
	fs.StringVar(&c.skipFile, "skip-from", "", "file listing test IDs not to run, one per line")
	fs.StringVar(&c.recordFailures, "record-failures", "", "write the IDs of failed tests to this file")
	fs.StringSliceVarP(&c.categories, "category", "c", nil, "only run these categories")
	fs.StringArrayVarP(&c.tags, "tag", "t", nil, "only run tests with this tag (repeatable)")
	fs.StringVarP(&c.name, "name", "n", "", "only run tests whose name contains this text")
	fs.DurationVar(&c.responseTimeout, "timeout", executor.DefaultResponseTimeout, "default time to wait for a response")
	fs.DurationVar(&c.notificationTimeout, "notification-timeout", executor.DefaultNotificationTimeout,
		"default time to wait for a notification")
	fs.DurationVar(&c.httpTimeout, "http-timeout", restclient.DefaultTimeout, "default time to wait for an HTTP response")
	fs.DurationVar(&c.settleDelay, "settle-delay", 0, "pause after sending each notification")
	fs.DurationVar(&c.gracePeriod, "grace-period", harness.DefaultGracePeriod, "time the peer has to exit before it is killed")
	fs.DurationVar(&c.startupDelay, "startup-delay", 0, "time to watch a new peer for an early exit")
	fs.DurationVar(&c.daemonStartupTimeout, "daemon-startup-timeout", defaultDaemonStartupTimeout,
		"time a started daemon has to become healthy")
	stderrFilters := fs.StringArray("stderr-filter", nil, "regex of peer stderr lines to leave out of debug output")
	fs.BoolVar(&c.captureTests, "capture-tests", false, "ask the peer to record the traffic it sees as test files")
	fs.StringVar(&c.configFile, "config", "", "TOML config file; command-line flags override it")
	fs.StringVar(&c.jUnitFile, "junit", "", "write JUnit XML output to the specified path")
	fs.BoolVar(&c.debug, "debug", false, "enable debug logging for failed tests")
	fs.BoolVar(&c.debugAll, "debug-all", false, "enable debug logging for all tests")
	fs.BoolVar(&c.validateOnly, "validate-only", false, "only load and validate the test files")

	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	switch fs.NArg() {
	case 0:
	case 1:
		if fs.Changed("tests") {
			return errors.New("the test path was given both as --tests and as an argument")
		}
		c.testsPath = fs.Arg(0)
	default:
		return fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args()[1:], " "))
	}
	c.peerCommand = strings.Fields(*peerCommand)
	for _, s := range *stderrFilters {
		rx, err := regexp.Compile(s)
		if err != nil {
			return fmt.Errorf("invalid --stderr-filter: %w", err)
		}
		c.stderrFilters = append(c.stderrFilters, rx)
	}

	if c.configFile != "" {
		given := func(name string) bool {
			return fs.Changed(name) || (name == "tests" && fs.NArg() == 1)
		}
		if err := c.applyConfigFile(c.configFile, given); err != nil {
			return err
		}
	}
	return c.check()
}

func (c *commandParams) check() error {
	if c.validateOnly {
		return nil
	}
	if c.transport.IsStream() && len(c.peerCommand) == 0 {
		return fmt.Errorf("--peer-command is required for the %s transport", c.transport)
	}
	if c.transport == data.TransportHTTP && c.startDaemon && len(c.peerCommand) == 0 {
		return errors.New("--start-daemon needs --peer-command")
	}
	return nil
}

func (c commandParams) fileFilter() data.Filter {
	return data.Filter{Categories: c.categories, Tags: c.tags, Name: c.name}
}

func (c commandParams) peerConfig() harness.PeerConfig {
	return harness.PeerConfig{
		Command:       c.peerCommand,
		Env:           c.peerEnv,
		CaptureTests:  c.captureTests,
		StartupDelay:  c.startupDelay,
		GracePeriod:   c.gracePeriod,
		StderrFilters: c.stderrFilters,
	}
}

// daemonConfig is the command that starts the daemon, or nothing if the harness must not
// start it.
func (c commandParams) daemonConfig() harness.PeerConfig {
	if !c.startDaemon {
		return harness.PeerConfig{}
	}
	return c.peerConfig()
}

func (c commandParams) executorConfig() executor.Config {
	return executor.Config{
		ResponseTimeout:     c.responseTimeout,
		NotificationTimeout: c.notificationTimeout,
		HTTPTimeout:         c.httpTimeout,
		SettleDelay:         c.settleDelay,
	}
}
