package helpers

import (
	"testing"
	"time"

	"github.com/grauwen/utlx-conformance-harness/framework/opt"
	"github.com/stretchr/testify/assert"
)

func TestTryReceiveUnlessClosed(t *testing.T) {
	t.Run("value arrives", func(t *testing.T) {
		ch := make(chan int, 1)
		done := make(chan struct{})
		ch <- 1
		assert.Equal(t, opt.Some(1), TryReceiveUnlessClosed(ch, done, time.Second))
	})

	t.Run("closed before value", func(t *testing.T) {
		ch := make(chan int, 1)
		done := make(chan struct{})
		close(done)
		start := time.Now()
		assert.Equal(t, opt.None[int](), TryReceiveUnlessClosed(ch, done, time.Hour))
		assert.Less(t, time.Since(start), time.Second)
	})

	t.Run("value already buffered when closed", func(t *testing.T) {
		ch := make(chan int, 1)
		done := make(chan struct{})
		close(done)
		for i := 0; i < 20; i++ {
			// select picks randomly between ready cases; the buffered value must win every time
			ch <- 2
			assert.Equal(t, opt.Some(2), TryReceiveUnlessClosed(ch, done, time.Hour))
		}
	})

	t.Run("timeout", func(t *testing.T) {
		ch := make(chan int)
		done := make(chan struct{})
		assert.Equal(t, opt.None[int](), TryReceiveUnlessClosed(ch, done, 10*time.Millisecond))
	})
}
