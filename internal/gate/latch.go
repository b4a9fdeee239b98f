package gate

const (
	// StateOpen means the latch still evaluates its trigger on every Get.
	StateOpen State = "OPEN"
	// StateFired is terminal: the trigger is never evaluated again.
	StateFired State = "FIRED"
)

// Latch accepts its trigger's "true" exactly once. After that Get returns
// false forever and the trigger is never evaluated again. It carries no clock,
// which makes it the cheap choice for one-time events such as a debug button.
type Latch[T Trigger] struct {
	trigger T
	fired   bool
}

// NewLatch creates an open Latch.
func NewLatch[T Trigger](trigger T) *Latch[T] {
	return &Latch[T]{trigger: trigger}
}

// Get evaluates the trigger until it first returns true, and reports that
// single true.
func (l *Latch[T]) Get() bool {
	if l.fired {
		return false
	}
	if !l.trigger.Fire() {
		return false
	}
	l.fired = true
	return true
}

// Fired reports whether the latch has already accepted its trigger.
func (l *Latch[T]) Fired() bool {
	return l.fired
}

// State reports StateOpen or StateFired.
func (l *Latch[T]) State() State {
	if l.fired {
		return StateFired
	}
	return StateOpen
}
