// Package timer provides tick sources and the elapsed-time accumulator used by
// the gating primitives in internal/gate.
// Ticks are plain int64 counts; the unit is whatever the source reports.
package timer

import "time"

// Source supplies the current tick count. Readings must be non-decreasing.
type Source interface {
	Ticks() int64
}

// epoch anchors Millis and Micros. time.Since uses the monotonic clock, so
// wall-clock steps (NTP, manual changes) do not move the tick count.
var epoch = time.Now()

// Millis reports milliseconds since process start.
type Millis struct{}

// Ticks implements Source.
func (Millis) Ticks() int64 { return time.Since(epoch).Milliseconds() }

// Micros reports microseconds since process start.
type Micros struct{}

// Ticks implements Source.
func (Micros) Ticks() int64 { return time.Since(epoch).Microseconds() }

// SourceFunc adapts a function to Source.
type SourceFunc func() int64

// Ticks implements Source.
func (f SourceFunc) Ticks() int64 { return f() }

// Unit is the resolution of a tick source.
type Unit string

const (
	UnitMillis Unit = "ms"
	UnitMicros Unit = "us"
)

// Resolution returns the duration of one tick in the given unit.
// Unknown units report milliseconds.
func (u Unit) Resolution() time.Duration {
	if u == UnitMicros {
		return time.Microsecond
	}
	return time.Millisecond
}

// ToTicks converts d to ticks of unit u, rounding up so a positive duration
// never becomes a shorter (or zero) window.
func (u Unit) ToTicks(d time.Duration) int64 {
	res := u.Resolution()
	ticks := int64(d / res)
	if d%res > 0 {
		ticks++
	}
	return ticks
}

// Exact reports whether d is a whole number of ticks of unit u.
func (u Unit) Exact(d time.Duration) bool {
	return d%u.Resolution() == 0
}

// ToDuration converts a tick count of unit u back to a duration.
func (u Unit) ToDuration(ticks int64) time.Duration {
	return time.Duration(ticks) * u.Resolution()
}

// ForUnit returns the process clock for the given unit.
func ForUnit(u Unit) Source {
	if u == UnitMicros {
		return Micros{}
	}
	return Millis{}
}

// FromClock builds a source of unit u from a wall clock function, counting
// from start. The daemon's run loop uses this so gates and event timestamps
// share one injectable clock.
func FromClock(now func() time.Time, start time.Time, u Unit) SourceFunc {
	res := u.Resolution()
	return func() int64 {
		return int64(now().Sub(start) / res)
	}
}
