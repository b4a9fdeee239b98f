package timer

import "math"

// Elapsed counts ticks since a reference point. It is a value type meant to be
// embedded in its owner; the count is computed from the live source on every
// read and never cached.
type Elapsed[S Source] struct {
	src   S
	start int64 // source reading at the last Reset
	base  int64 // value at the last Reset
}

// NewElapsed returns an accumulator that currently reads initial.
func NewElapsed[S Source](src S, initial int64) Elapsed[S] {
	e := Elapsed[S]{src: src}
	e.Reset(initial)
	return e
}

// Reset re-anchors the reference so Value reads v immediately.
func (e *Elapsed[S]) Reset(v int64) {
	e.start = e.src.Ticks()
	e.base = v
}

// Value returns the ticks elapsed since the reference point. Source
// wraparound follows plain int64 subtraction; the sum saturates at the int64
// limits instead of wrapping.
func (e Elapsed[S]) Value() int64 {
	return AddSat(e.base, e.src.Ticks()-e.start)
}

// AddSat returns a+b clamped to [math.MinInt64, math.MaxInt64].
func AddSat(a, b int64) int64 {
	s := a + b
	switch {
	case a > 0 && b > 0 && s < 0:
		return math.MaxInt64
	case a < 0 && b < 0 && s >= 0:
		return math.MinInt64
	}
	return s
}
