package gate

import "github.com/sweeney/ctr-sensor/internal/timer"

// State is the gating state of a Switch.
type State string

const (
	// StateArmed means the next Get will evaluate the trigger.
	StateArmed State = "ARMED"
	// StateCooling means Get returns false without evaluating the trigger.
	StateCooling State = "COOLING"
)

// Switch passes its trigger's "true" through at most once per threshold
// window. After an accepted "true" the switch cools for threshold ticks;
// while cooling the trigger is not evaluated at all.
//
// A threshold of 0 disables gating: every Get evaluates the trigger.
type Switch[T Trigger, S timer.Source] struct {
	trigger   T
	elapsed   timer.Elapsed[S]
	threshold int64
}

// New creates a Switch that is armed immediately, for any threshold including
// math.MaxInt64 (a switch that fires once). Negative thresholds are clamped
// to 0.
func New[T Trigger, S timer.Source](trigger T, src S, threshold int64) *Switch[T, S] {
	threshold = clamp(threshold)
	return &Switch[T, S]{
		trigger:   trigger,
		elapsed:   timer.NewElapsed(src, timer.AddSat(threshold, 1)),
		threshold: threshold,
	}
}

// NewMillis creates a Switch whose threshold is in milliseconds.
func NewMillis[T Trigger](trigger T, threshold int64) *Switch[T, timer.Millis] {
	return New(trigger, timer.Millis{}, threshold)
}

// NewMicros creates a Switch whose threshold is in microseconds.
func NewMicros[T Trigger](trigger T, threshold int64) *Switch[T, timer.Micros] {
	return New(trigger, timer.Micros{}, threshold)
}

// SetThreshold changes the gating window immediately. The elapsed count is
// shifted by the change so the remaining wait (threshold - elapsed) is the
// same before and after; retuning alone never arms or disarms the switch.
// Negative thresholds are clamped to 0. The shifted count saturates at the
// int64 limits.
func (s *Switch[T, S]) SetThreshold(threshold int64) {
	threshold = clamp(threshold)
	s.elapsed.Reset(timer.AddSat(s.elapsed.Value(), threshold-s.threshold))
	s.threshold = threshold
}

// Threshold returns the current gating window in ticks.
func (s *Switch[T, S]) Threshold() int64 {
	return s.threshold
}

// TimeSinceLastEvent returns the elapsed ticks since the last accepted
// trigger. Diagnostic only; decisions belong to Get.
func (s *Switch[T, S]) TimeSinceLastEvent() int64 {
	return s.elapsed.Value()
}

// State reports whether the switch is armed or cooling without evaluating
// the trigger.
func (s *Switch[T, S]) State() State {
	if s.elapsed.Value() < s.threshold {
		return StateCooling
	}
	return StateArmed
}

// Get returns true if the switch is armed and the trigger fires, restarting
// the cooling window. Each call may consume the single "true", so one Switch
// serves one consumer.
func (s *Switch[T, S]) Get() bool {
	if s.elapsed.Value() < s.threshold {
		return false
	}
	if !s.trigger.Fire() {
		return false
	}
	s.elapsed.Reset(0)
	return true
}

func clamp(threshold int64) int64 {
	if threshold < 0 {
		return 0
	}
	return threshold
}
