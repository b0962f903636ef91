package conformance

import (
	"github.com/grauwen/utlx-conformance-harness/framework/rpctest"
)

// SuiteContext is the rpctest context value for a conformance run.
type SuiteContext struct {
	config SuiteConfig
}

func requireContext(t *rpctest.T) SuiteContext {
	if c, ok := t.Context().(SuiteContext); ok {
		return c
	}
	panic("rpctest.T did not have a SuiteContext")
}
