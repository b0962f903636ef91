// Package framework contains the low-level implementation of test harness infrastructure
// that does not depend on what the peer is. The base package contains shared types such as
// Logger; other components are in the subpackages harness and rpctest.
//
// The general model is:
//
// 1. The harness starts or connects to a peer: a process that speaks JSON-RPC over its stdio,
// or a daemon that answers REST calls.
//
// 2. Each test runs in a test scope which is similar to Go's testing.T, allowing pieces of test
// logic to be associated with a test identifier and to accumulate success/failure results.
//
// 3. Everything a test logs, including wire traffic and the peer's stderr, is captured per
// scope and only shown if the test fails or full debug output was requested.
//
// The domain-specific code that knows what is being tested is responsible for deciding what to
// send to the peer and what to expect back.
package framework
