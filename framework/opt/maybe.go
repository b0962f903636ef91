// Package opt provides an optional value type.
package opt

import "fmt"

// Maybe holds a value that may be absent, such as a per-step timeout that a test file did
// not set.
type Maybe[V any] struct {
	value   V
	defined bool
}

func Some[V any](value V) Maybe[V] { return Maybe[V]{value: value, defined: true} }

func None[V any]() Maybe[V] { return Maybe[V]{} }

func (m Maybe[V]) IsDefined() bool { return m.defined }

// Value returns the value, or the zero V when absent.
func (m Maybe[V]) Value() V { return m.value }

// Get returns the value and whether it is present, like a map lookup.
func (m Maybe[V]) Get() (V, bool) { return m.value, m.defined }

// OrElse returns the value if present, and fallback otherwise.
func (m Maybe[V]) OrElse(fallback V) V {
	if !m.defined {
		return fallback
	}
	return m.value
}

func (m Maybe[V]) String() string {
	if !m.defined {
		return "[none]"
	}
	return fmt.Sprint(m.value)
}
