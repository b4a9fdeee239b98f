package timer

// FakeSource is a test double whose tick count only moves when told to.
type FakeSource struct {
	// Now is the current tick count returned by Ticks.
	Now int64

	// Reads counts calls to Ticks.
	Reads int
}

// NewFakeSource creates a FakeSource starting at the given tick.
func NewFakeSource(start int64) *FakeSource {
	return &FakeSource{Now: start}
}

// Ticks returns the scripted tick count.
func (f *FakeSource) Ticks() int64 {
	f.Reads++
	return f.Now
}

// Advance moves the clock forward by n ticks.
func (f *FakeSource) Advance(n int64) {
	f.Now += n
}

// Set jumps the clock to tick t.
func (f *FakeSource) Set(t int64) {
	f.Now = t
}
