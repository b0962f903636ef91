package jsonrpc

import (
	"errors"
	"fmt"
)

// ErrClosed is returned when writing to a codec that has already been closed.
var ErrClosed = errors.New("connection closed")

// TransportError means the underlying stream could not be read or written.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error during %s: %s", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError means the peer sent something that is not a valid frame or JSON-RPC message.
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol error: %s: %s", e.Reason, e.Err)
	}
	return "protocol error: " + e.Reason
}

func (e *ProtocolError) Unwrap() error { return e.Err }
