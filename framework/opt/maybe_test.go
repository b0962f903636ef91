package opt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNone(t *testing.T) {
	assert.False(t, None[string]().IsDefined())
	assert.Equal(t, 0, None[int]().Value())
	assert.Equal(t, "[none]", None[int]().String())

	_, ok := None[float64]().Get()
	assert.False(t, ok)
}

func TestSome(t *testing.T) {
	assert.True(t, Some("").IsDefined())
	assert.Equal(t, "x", Some("x").Value())
	assert.Equal(t, "3", Some(3).String())
	assert.Equal(t, "2s", Some(2*time.Second).String())

	v, ok := Some(1.5).Get()
	assert.True(t, ok)
	assert.Equal(t, 1.5, v)
}

func TestOrElse(t *testing.T) {
	assert.Equal(t, 3, None[int]().OrElse(3))
	assert.Equal(t, 4, Some(4).OrElse(3))
}
