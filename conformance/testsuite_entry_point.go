package conformance

import (
	"fmt"
	"path/filepath"

	"github.com/grauwen/utlx-conformance-harness/data"
	"github.com/grauwen/utlx-conformance-harness/executor"
	"github.com/grauwen/utlx-conformance-harness/framework/harness"
	"github.com/grauwen/utlx-conformance-harness/framework/rpctest"
)

// InvalidFilesCategory is the top-level scope that files which failed validation are reported
// under.
const InvalidFilesCategory = "invalid test files"

// SuiteConfig is everything the suite needs besides the test files themselves.
type SuiteConfig struct {
	Transport data.Transport
	// TestRoot is the directory or file that the tests were loaded from.
	TestRoot string
	// Peer is used to start a peer process for each file on a stdio transport.
	Peer harness.PeerConfig
	// Daemon is the REST peer for the http transport.
	Daemon   *harness.Daemon
	Executor executor.Config
}

// RunConformanceSuite runs every loaded test file in its own scope, grouped by category.
// Files that failed validation are reported as failed tests, so they count in the summary
// and the exit status.
func RunConformanceSuite(
	loaded data.LoadResult,
	config SuiteConfig,
	filter rpctest.Filter,
	testLogger rpctest.TestLogger,
) rpctest.Results {
	if !config.Transport.IsStream() && config.Daemon == nil {
		return rpctest.Results{
			Failures: []rpctest.TestResult{
				{Errors: []error{fmt.Errorf("transport %s needs a daemon", config.Transport)}},
			},
		}
	}

	categories, byCategory := groupByCategory(loaded.Files)
	rpcConfig := rpctest.TestConfiguration{
		Filter:     filter,
		TestLogger: testLogger,
		Context:    SuiteContext{config: config},
	}
	return rpctest.Run(rpcConfig, func(t *rpctest.T) {
		if len(loaded.Invalid) > 0 {
			t.Run(InvalidFilesCategory, func(t *rpctest.T) {
				for _, ce := range loaded.Invalid {
					reportInvalidFile(t, config.TestRoot, ce)
				}
			})
		}
		for _, category := range categories {
			files := byCategory[category]
			t.Run(category, func(t *rpctest.T) {
				for _, tf := range files {
					t.Run(tf.DisplayName(), func(t *rpctest.T) { runTestFile(t, tf) })
				}
			})
		}
	})
}

// Categories keep the order in which their first file was loaded, which is sorted by path.
func groupByCategory(files []data.TestFile) ([]string, map[string][]data.TestFile) {
	var categories []string
	byCategory := make(map[string][]data.TestFile)
	for _, tf := range files {
		if _, ok := byCategory[tf.Category]; !ok {
			categories = append(categories, tf.Category)
		}
		byCategory[tf.Category] = append(byCategory[tf.Category], tf)
	}
	return categories, byCategory
}

func reportInvalidFile(t *rpctest.T, root string, ce *data.ConfigError) {
	name := ce.Path
	if rel, err := filepath.Rel(root, ce.Path); err == nil && rel != "." && !filepath.IsAbs(rel) {
		name = filepath.ToSlash(rel)
	}
	t.Run(name, func(t *rpctest.T) {
		t.Error(ce)
	})
}
