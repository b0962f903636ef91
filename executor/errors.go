package executor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/grauwen/utlx-conformance-harness/data"
	"github.com/grauwen/utlx-conformance-harness/jsonrpc"
	"github.com/grauwen/utlx-conformance-harness/pattern"
	"github.com/grauwen/utlx-conformance-harness/rpcconn"
)

// FailureKind classifies why a step failed.
type FailureKind string

const (
	FailureTransport       FailureKind = "transport"
	FailureProtocol        FailureKind = "protocol"
	FailureTimeout         FailureKind = "timeout"
	FailureUnexpectedError FailureKind = "unexpected error"
	FailureValidation      FailureKind = "validation"
	FailureConfig          FailureKind = "config"
)

// UnexpectedErrorResponse means the peer answered a request with an error when the step
// expected a result.
type UnexpectedErrorResponse struct {
	Method   string
	Response *jsonrpc.ResponseError
}

func (e *UnexpectedErrorResponse) Error() string {
	return fmt.Sprintf("unexpected error response to %s: %s", e.Method, e.Response)
}

// StepFailure describes the step that ended a sequence.
type StepFailure struct {
	// Index is 1-based.
	Index       int
	Method      string
	Description string
	Kind        FailureKind
	Err         error
	// Mismatches is non-empty for a validation failure.
	Mismatches []pattern.Mismatch
}

func (f *StepFailure) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "step %d", f.Index)
	if f.Method != "" {
		fmt.Fprintf(&b, " (%s)", f.Method)
	}
	fmt.Fprintf(&b, " failed [%s]: %s", f.Kind, f.Err)
	return b.String()
}

func (f *StepFailure) Unwrap() error { return f.Err }

func classify(err error) FailureKind {
	var (
		timeoutErr    *rpcconn.TimeoutError
		protocolErr   *jsonrpc.ProtocolError
		validationErr *pattern.ValidationError
		configErr     *data.ConfigError
		unexpectedErr *UnexpectedErrorResponse
	)
	switch {
	case errors.As(err, &validationErr):
		return FailureValidation
	case errors.As(err, &unexpectedErr):
		return FailureUnexpectedError
	case errors.As(err, &configErr):
		return FailureConfig
	case errors.As(err, &timeoutErr):
		// a connection that ended because of a malformed frame is reported as a protocol failure
		if errors.As(timeoutErr.Cause, &protocolErr) {
			return FailureProtocol
		}
		return FailureTimeout
	case errors.As(err, &protocolErr):
		return FailureProtocol
	default:
		return FailureTransport
	}
}
