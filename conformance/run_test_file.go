package conformance

import (
	"strings"

	"github.com/grauwen/utlx-conformance-harness/data"
	"github.com/grauwen/utlx-conformance-harness/executor"
	"github.com/grauwen/utlx-conformance-harness/framework/harness"
	"github.com/grauwen/utlx-conformance-harness/framework/rpctest"
)

// runTestFile runs one file's sequence against a fresh peer process, or against the shared
// daemon for the http transport. The process is torn down when the scope ends, whatever the
// outcome; teardown problems go to the debug log only.
func runTestFile(t *rpctest.T, tf data.TestFile) {
	config := requireContext(t).config

	for _, w := range tf.Warnings {
		t.Debug("warning: %s", w)
	}
	if tf.SkipReason != "" {
		t.SkipWithReason(tf.SkipReason)
	}
	if tf.Description != "" {
		t.Debug("%s", tf.Description)
	}

	ex, err := executor.New(
		executor.WithConfig(config.Executor),
		executor.WithLogger(t.DebugLogger()),
		executor.WithTemplateContext(tf.TemplateContext()),
	)
	if err != nil {
		t.Error(err)
		t.FailNow()
	}

	var session *harness.StdioSession
	var outcome executor.Outcome
	if config.Transport.IsStream() {
		session, err = harness.StartStdioSession(
			config.Peer,
			config.Transport.Framing(),
			config.Transport == data.TransportLSP,
			t.DebugLogger(),
		)
		if err != nil {
			t.Errorf("could not start peer: %s", err)
			t.FailNow()
		}
		t.Defer(func() {
			if err := session.Close(executor.IsFatal(outcome.Err())); err != nil {
				t.Debug("teardown: %s", err)
			}
		})
		err = ex.AttachRPC(session.Conn())
	} else {
		err = ex.AttachHTTP(config.Daemon.Client())
	}
	if err != nil {
		t.Error(err)
		t.FailNow()
	}

	outcome = ex.Run(tf.Sequence)
	if outcome.Passed() {
		t.Debug("%d step(s) passed in %s", outcome.StepsRun, outcome.Duration)
		return
	}
	if session != nil {
		if pending := session.Conn().UnconsumedNotifications(); len(pending) > 0 {
			t.Debug("notifications received but not expected: %s", strings.Join(pending, ", "))
		}
	}
	t.Error(outcome.Err())
}
