package gate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/ctr-sensor/internal/timer"
)

// countingTrigger returns a fixed value and counts evaluations.
type countingTrigger struct {
	value bool
	calls int
}

func (c *countingTrigger) Fire() bool {
	c.calls++
	return c.value
}

func TestNewSwitchIsArmed(t *testing.T) {
	src := timer.NewFakeSource(0)
	trig := &countingTrigger{value: true}
	s := New(trig, src, 100)

	assert.Equal(t, int64(101), s.TimeSinceLastEvent())
	assert.Equal(t, StateArmed, s.State())
	assert.True(t, s.Get(), "switch must fire on the first call after construction")
	assert.Equal(t, 1, trig.calls)
}

func TestSwitchScenario(t *testing.T) {
	src := timer.NewFakeSource(0)
	trig := TriggerFunc(func() bool { return src.Now == 150 || src.Now == 260 })
	s := New(trig, src, 100)

	var fired []int64
	for tick := int64(0); tick <= 300; tick++ {
		src.Set(tick)
		if s.Get() {
			fired = append(fired, tick)
		}
	}

	assert.Equal(t, []int64{150, 260}, fired)
}

func TestSwitchCoolingSkipsTrigger(t *testing.T) {
	src := timer.NewFakeSource(0)
	trig := &countingTrigger{value: true}
	s := New(trig, src, 100)

	require.True(t, s.Get())
	require.Equal(t, 1, trig.calls)

	for i := 0; i < 99; i++ {
		src.Advance(1)
		assert.False(t, s.Get(), "tick %d", src.Now)
		assert.Equal(t, StateCooling, s.State())
	}
	assert.Equal(t, 1, trig.calls, "trigger must not be evaluated while cooling")

	src.Advance(1)
	assert.Equal(t, StateArmed, s.State())
	assert.True(t, s.Get())
	assert.Equal(t, 2, trig.calls)
}

func TestSwitchFalseTriggerLeavesElapsed(t *testing.T) {
	src := timer.NewFakeSource(0)
	trig := &countingTrigger{value: false}
	s := New(trig, src, 10)

	for i := 0; i < 5; i++ {
		src.Advance(1)
		assert.False(t, s.Get())
	}
	assert.Equal(t, int64(16), s.TimeSinceLastEvent())
	assert.Equal(t, 5, trig.calls, "armed switch re-evaluates the trigger on every call")
}

func TestSwitchAlwaysTruePulse(t *testing.T) {
	const threshold = 25
	src := timer.NewFakeSource(0)
	s := New(Always{}, src, threshold)

	results := make([]bool, 0, 500)
	for tick := int64(0); tick < 500; tick++ {
		src.Set(tick)
		results = append(results, s.Get())
	}

	for start := 0; start+threshold <= len(results); start++ {
		n := 0
		for _, r := range results[start : start+threshold] {
			if r {
				n++
			}
		}
		assert.Equal(t, 1, n, "window starting at tick %d", start)
	}
}

func TestSwitchAlwaysTrueFunc(t *testing.T) {
	src := timer.NewFakeSource(0)
	s := New(TriggerFunc(AlwaysTrue), src, 10)

	assert.True(t, s.Get())
	assert.False(t, s.Get())
	src.Advance(10)
	assert.True(t, s.Get())
}

func TestSwitchNeverFiresOnFalseTrigger(t *testing.T) {
	src := timer.NewFakeSource(0)
	s := New(&countingTrigger{value: false}, src, 3)

	for i := 0; i < 1000; i++ {
		src.Advance(int64(i % 7))
		assert.False(t, s.Get())
	}
}

func TestSwitchZeroThresholdPassesThrough(t *testing.T) {
	src := timer.NewFakeSource(0)
	pattern := []bool{true, true, false, true, false, false, true, true, true}
	i := 0
	trig := TriggerFunc(func() bool {
		v := pattern[i]
		i++
		return v
	})
	s := New(trig, src, 0)

	for n, want := range pattern {
		assert.Equal(t, want, s.Get(), "call %d", n)
	}
}

func TestSwitchNegativeThresholdClamps(t *testing.T) {
	src := timer.NewFakeSource(0)
	trig := &countingTrigger{value: true}
	s := New(trig, src, -50)

	assert.Equal(t, int64(0), s.Threshold())
	for i := 0; i < 5; i++ {
		assert.True(t, s.Get())
	}

	s.SetThreshold(-1)
	assert.Equal(t, int64(0), s.Threshold())
	assert.True(t, s.Get())
}

func TestSetThresholdPreservesRemainingWait(t *testing.T) {
	tests := []struct {
		name         string
		newThreshold int64
	}{
		{"raise", 200},
		{"lower", 50},
		{"zero", 0},
		{"same", 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := timer.NewFakeSource(0)
			trig := &countingTrigger{value: true}
			s := New(trig, src, 100)
			require.True(t, s.Get())

			src.Advance(30)
			before := s.Threshold() - s.TimeSinceLastEvent()
			require.Equal(t, int64(70), before)

			s.SetThreshold(tt.newThreshold)
			assert.Equal(t, tt.newThreshold, s.Threshold())
			assert.Equal(t, before, s.Threshold()-s.TimeSinceLastEvent())

			src.Advance(69)
			assert.False(t, s.Get(), "still cooling one tick before the original deadline")
			src.Advance(1)
			assert.True(t, s.Get(), "armed at the original deadline")
		})
	}
}

func TestSetThresholdKeepsArmedSwitchArmed(t *testing.T) {
	src := timer.NewFakeSource(0)
	trig := &countingTrigger{value: false}
	s := New(trig, src, 100)
	src.Advance(50)

	s.SetThreshold(10000)
	assert.Equal(t, StateArmed, s.State())

	trig.value = true
	assert.True(t, s.Get())
	assert.Equal(t, StateCooling, s.State())

	src.Advance(9999)
	assert.False(t, s.Get())
	src.Advance(1)
	assert.True(t, s.Get())
}

func TestSwitchConvenienceConstructors(t *testing.T) {
	ms := NewMillis(Always{}, 1000)
	us := NewMicros(Always{}, 1000)

	assert.Equal(t, int64(1000), ms.Threshold())
	assert.Equal(t, int64(1000), us.Threshold())
	assert.True(t, ms.Get())
	assert.True(t, us.Get())
	assert.False(t, ms.Get(), "second call inside one second must be suppressed")
}

func TestSwitchGetDoesNotAllocate(t *testing.T) {
	src := timer.NewFakeSource(0)
	s := New(&countingTrigger{value: true}, src, 5)

	allocs := testing.AllocsPerRun(100, func() {
		src.Advance(1)
		s.Get()
	})
	assert.Zero(t, allocs)
}

func TestSwitchMaxThresholdFiresOnce(t *testing.T) {
	src := timer.NewFakeSource(0)
	trig := &countingTrigger{value: true}
	s := New(trig, src, math.MaxInt64)

	assert.Equal(t, StateArmed, s.State())
	assert.Equal(t, int64(math.MaxInt64), s.TimeSinceLastEvent())

	src.Advance(1000)
	require.Equal(t, StateArmed, s.State(), "elapsed must not wrap while waiting for the first event")
	assert.True(t, s.Get())

	src.Advance(1 << 40)
	assert.False(t, s.Get())
	assert.Equal(t, StateCooling, s.State())
	assert.Equal(t, 1, trig.calls)
}

func TestSetThresholdSaturates(t *testing.T) {
	src := timer.NewFakeSource(0)
	s := New(Always{}, src, 10)
	src.Advance(1000)

	// Armed with elapsed 1011; raising to the max keeps it armed.
	s.SetThreshold(math.MaxInt64)
	assert.Equal(t, int64(math.MaxInt64), s.TimeSinceLastEvent())
	assert.Equal(t, StateArmed, s.State())
	assert.True(t, s.Get())

	// Just fired with an effectively infinite wait; lowering keeps the wait.
	s.SetThreshold(100)
	assert.Equal(t, StateCooling, s.State())
	assert.Less(t, s.TimeSinceLastEvent(), int64(0))
}
