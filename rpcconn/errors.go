package rpcconn

import (
	"errors"
	"fmt"
	"io"
	"time"
)

// ErrConnectionClosed is the cause recorded when the harness closes a connection itself.
var ErrConnectionClosed = errors.New("connection closed by harness")

// TimeoutError means that an expected message did not arrive. Closed is true if the wait ended
// early because the connection stopped; Cause is the reason it stopped.
type TimeoutError struct {
	What    string
	Timeout time.Duration
	Closed  bool
	Cause   error
}

func (e *TimeoutError) Error() string {
	if e.Closed {
		cause := e.Cause
		if errors.Is(cause, io.EOF) {
			return fmt.Sprintf("peer closed the connection while waiting for %s", e.What)
		}
		return fmt.Sprintf("connection ended while waiting for %s: %s", e.What, cause)
	}
	return fmt.Sprintf("timed out after %s waiting for %s", e.Timeout, e.What)
}

func (e *TimeoutError) Unwrap() error { return e.Cause }
