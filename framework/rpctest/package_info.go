// Package rpctest contains a test runner framework that is similar to Go's testing package,
// but is run as regular Go application code rather than Go tests. Each conformance test file
// runs in its own scope; the scope collects failures, captures debug output such as wire
// traffic, and reports to one or more TestLoggers.
package rpctest
