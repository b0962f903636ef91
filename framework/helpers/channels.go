package helpers

import (
	"time"

	"github.com/grauwen/utlx-conformance-harness/framework/opt"
)

// TryReceiveUnlessClosed waits up to timeout for a value, and gives up early if done is closed.
// A value that is already available on ch is still returned in that case, so a result
// that raced with the close is not lost.
func TryReceiveUnlessClosed[V any](ch <-chan V, done <-chan struct{}, timeout time.Duration) opt.Maybe[V] {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	select {
	case value := <-ch:
		return opt.Some(value)
	case <-done:
		select {
		case value := <-ch:
			return opt.Some(value)
		default:
			return opt.None[V]()
		}
	case <-deadline.C:
		return opt.None[V]()
	}
}
