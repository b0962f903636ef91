package data

import (
	"fmt"
	"strings"

	"github.com/grauwen/utlx-conformance-harness/jsonrpc"
)

// Transport says how the harness talks to the peer.
type Transport string

const (
	// TransportLSP is JSON-RPC over stdio with Content-Length framing.
	TransportLSP Transport = "lsp"
	// TransportMCPStdio is JSON-RPC over stdio with one message per line.
	TransportMCPStdio Transport = "mcp-stdio"
	// TransportHTTP is REST calls to a daemon.
	TransportHTTP Transport = "http"
)

// AllTransports lists the valid transports.
var AllTransports = []Transport{TransportLSP, TransportMCPStdio, TransportHTTP} //nolint:gochecknoglobals

// ParseTransport accepts a transport name, ignoring case.
func ParseTransport(s string) (Transport, error) {
	for _, t := range AllTransports {
		if strings.EqualFold(s, string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown transport %q (must be one of %v)", s, AllTransports)
}

// IsStream returns true for the stdio transports.
func (t Transport) IsStream() bool {
	return t == TransportLSP || t == TransportMCPStdio
}

// Framing returns the stream framing for a stdio transport.
func (t Transport) Framing() jsonrpc.Framing {
	if t == TransportMCPStdio {
		return jsonrpc.FramingLine
	}
	return jsonrpc.FramingHeader
}

// Set, String and Type let a Transport be used as a command-line flag.
func (t *Transport) Set(s string) error {
	parsed, err := ParseTransport(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t Transport) String() string { return string(t) }

func (t *Transport) Type() string { return "transport" }
