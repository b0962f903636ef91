package main

import (
	_ "embed" // this is required in order for go:embed to work
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/grauwen/utlx-conformance-harness/conformance"
	"github.com/grauwen/utlx-conformance-harness/data"
	"github.com/grauwen/utlx-conformance-harness/framework"
	"github.com/grauwen/utlx-conformance-harness/framework/harness"
	"github.com/grauwen/utlx-conformance-harness/framework/rpctest"
)

//go:embed VERSION
var versionString string // comes from the VERSION file which we update for each release

func main() {
	fmt.Printf("utlx-conformance-harness v%s\n", strings.TrimSpace(versionString))

	var params commandParams
	if !params.Read(os.Args) {
		os.Exit(1)
	}

	results, err := run(params)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if !results.OK() {
		os.Exit(1)
	}
}

func run(params commandParams) (*rpctest.Results, error) {
	if params.skipFile != "" {
		if err := readSuppressions(params.skipFile, &params.filters.MustNotMatch); err != nil {
			return nil, err
		}
	}

	loaded, err := data.LoadAll(params.testsPath, params.transport, params.fileFilter())
	if err != nil {
		return nil, err
	}
	printLoadSummary(os.Stdout, params, loaded)

	if params.validateOnly {
		results := validationResults(loaded)
		fmt.Println()
		rpctest.PrintResults(os.Stdout, results)
		return &results, nil
	}

	suiteConfig := conformance.SuiteConfig{
		Transport: params.transport,
		TestRoot:  params.testsPath,
		Peer:      params.peerConfig(),
		Executor:  params.executorConfig(),
	}
	if params.transport == data.TransportHTTP {
		daemon, err := connectDaemon(params)
		if err != nil {
			return nil, err
		}
		suiteConfig.Daemon = daemon
		defer stopDaemon(daemon)
	}

	testLogger := newTestLogger(params)
	rpctest.PrintFilterDescription(os.Stdout, params.filters)
	results := conformance.RunConformanceSuite(loaded, suiteConfig, params.filters.Match, testLogger)

	fmt.Println()
	rpctest.PrintResults(os.Stdout, results)
	if err := testLogger.EndLog(results); err != nil {
		return nil, fmt.Errorf("error writing log: %w", err)
	}

	if params.recordFailures != "" {
		if err := writeSuppressions(params.recordFailures, results.Failures); err != nil {
			return nil, err
		}
	}

	return &results, nil
}

func printLoadSummary(w io.Writer, params commandParams, loaded data.LoadResult) {
	fmt.Fprintf(w, "Loaded %d test(s) from %s for transport %s", len(loaded.Files), params.testsPath, params.transport)
	if loaded.Excluded > 0 {
		fmt.Fprintf(w, ", %d excluded by filters", loaded.Excluded)
	}
	if len(loaded.Invalid) > 0 {
		fmt.Fprintf(w, ", %d invalid", len(loaded.Invalid))
	}
	fmt.Fprintln(w)
	for _, tf := range loaded.Files {
		for _, warning := range tf.Warnings {
			fmt.Fprintf(w, "  warning: %s: %s\n", tf.Source.RelPath, warning)
		}
	}
}

// validationResults reports each loaded file as a passed test and each invalid one as a failed
// test, without running anything.
func validationResults(loaded data.LoadResult) rpctest.Results {
	var results rpctest.Results
	for _, tf := range loaded.Files {
		results.Tests = append(results.Tests, rpctest.TestResult{TestID: tf.ID(), Leaf: true})
	}
	for _, ce := range loaded.Invalid {
		result := rpctest.TestResult{
			TestID: rpctest.TestID{conformance.InvalidFilesCategory, ce.Path},
			Errors: []error{ce},
			Leaf:   true,
		}
		results.Tests = append(results.Tests, result)
		results.Failures = append(results.Failures, result)
	}
	return results
}

func runProperties(params commandParams) map[string]string {
	props := map[string]string{
		"transport": string(params.transport),
		"tests":     params.testsPath,
	}
	if params.transport == data.TransportHTTP {
		props["url"] = params.serviceURL
	}
	if len(params.peerCommand) > 0 {
		props["peer.command"] = params.peerConfig().CommandString()
	}
	return props
}

// connectDaemon finds the REST daemon for the http transport, starting it first if
// --start-daemon was given.
func connectDaemon(params commandParams) (*harness.Daemon, error) {
	logger := framework.NullLogger()
	if params.debugAll {
		logger = framework.LoggerWithPrefix(log.New(os.Stdout, "", log.LstdFlags), "[daemon] ")
	}
	return harness.ConnectDaemon(
		params.serviceURL,
		params.daemonConfig(),
		params.daemonStartupTimeout,
		logger,
		os.Stdout,
	)
}

func stopDaemon(daemon *harness.Daemon) {
	if !daemon.StartedByHarness() {
		return
	}
	fmt.Println("Stopping daemon")
	if err := daemon.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to stop daemon: %s\n", err)
	}
}

func newTestLogger(params commandParams) rpctest.TestLogger {
	console := rpctest.ConsoleTestLogger{
		DebugOutputOnFailure: params.debug || params.debugAll,
		DebugOutputOnSuccess: params.debugAll,
	}
	if params.jUnitFile == "" {
		return console
	}
	junit := rpctest.NewJUnitTestLogger(params.jUnitFile, "utlx conformance", runProperties(params), params.filters)
	return &rpctest.MultiTestLogger{Loggers: []rpctest.TestLogger{console, junit}}
}
