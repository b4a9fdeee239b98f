// Package gate shapes how often a boolean trigger's "true" may propagate.
//
// Switch suppresses a trigger until a quiet period has elapsed since the last
// accepted "true"; Latch accepts a trigger's "true" exactly once.
//
// Both are generic over their capabilities so that, instantiated with concrete
// types, Get compiles to direct calls with no interface dispatch or closure
// allocation. Neither type is safe for concurrent use; poll each instance from
// a single goroutine.
package gate

// Trigger is the predicate a gate wraps. Fire may have side effects; gates
// call it zero or one times per Get, and call frequency is unbounded, so it
// should be cheap.
type Trigger interface {
	Fire() bool
}

// TriggerFunc adapts a plain function to Trigger.
type TriggerFunc func() bool

// Fire implements Trigger.
func (f TriggerFunc) Fire() bool { return f() }

// AlwaysTrue always reports true. Wrapped in a Switch it turns the switch into
// a pulse generator firing once per threshold window.
func AlwaysTrue() bool { return true }

// Always is the zero-size Trigger form of AlwaysTrue.
type Always struct{}

// Fire implements Trigger.
func (Always) Fire() bool { return true }
