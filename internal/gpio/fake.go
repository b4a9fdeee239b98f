package gpio

import "fmt"

// FakeReader is a test double that returns scripted GPIO levels per pin.
type FakeReader struct {
	// Samples contains scripted levels for each pin.
	// Each call to Read(pin) consumes the next level for that pin.
	Samples map[int][]bool

	// index tracks the current position in each pin's samples
	index map[int]int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Read()
	ReadError error

	// Reads counts Read calls per pin.
	Reads map[int]int
}

// NewFakeReader creates a FakeReader with the given per-pin samples.
func NewFakeReader(samples map[int][]bool) *FakeReader {
	return &FakeReader{
		Samples: samples,
		index:   make(map[int]int),
		Reads:   make(map[int]int),
	}
}

// Read returns the next scripted level for pin.
// If a pin's samples are exhausted, the last level repeats.
func (f *FakeReader) Read(pin int) (bool, error) {
	f.Reads[pin]++

	if f.ReadError != nil {
		return false, f.ReadError
	}

	levels := f.Samples[pin]
	if len(levels) == 0 {
		return false, fmt.Errorf("no samples configured for pin %d", pin)
	}

	i := f.index[pin]
	if i < len(levels)-1 {
		f.index[pin] = i + 1
	}
	return levels[i], nil
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.Closed = true
	return nil
}

// Reset rewinds every pin to its first sample.
func (f *FakeReader) Reset() {
	f.index = make(map[int]int)
	f.Reads = make(map[int]int)
	f.Closed = false
}
