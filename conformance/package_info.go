// Package conformance runs loaded test files against a peer.
//
// Tests in this package use other packages as follows:
//
// data: the test file schema and loader
//
// rpctest: the basic test scope framework
//
// harness: peer processes and the REST daemon
//
// executor: running one file's steps over a connection
package conformance
