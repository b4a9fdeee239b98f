package logic

import (
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/ctr-sensor/internal/gate"
	"github.com/sweeney/ctr-sensor/internal/timer"
)

// pinTrigger reads one pin as a gate trigger. A read error counts as
// "not active" and is kept for the caller to report.
type pinTrigger struct {
	r         PinReader
	pin       int
	activeLow bool
	err       error
}

func (p *pinTrigger) Fire() bool {
	v, err := p.r.Read(p.pin)
	p.err = err
	if err != nil {
		return false
	}
	return v != p.activeLow
}

// The gates take timer.Source as their source type because the unit is chosen
// per channel at run time. Clock reads go through the interface; at poll
// rates that cost is negligible next to the pin read. Code that fixes the unit
// at compile time should use gate.NewMillis or gate.NewMicros.
type channel struct {
	spec    ChannelSpec
	trigger *pinTrigger
	sw      *gate.Switch[*pinTrigger, timer.Source] // ModeSwitch
	latch   *gate.Latch[*pinTrigger]                // ModeOnce
	count   int
	lastErr error
}

func (c *channel) get() bool {
	if c.latch != nil {
		return c.latch.Get()
	}
	return c.sw.Get()
}

// Monitor polls a fixed set of channels. Not safe for concurrent use: drive it
// from one loop.
type Monitor struct {
	channels  []*channel
	byName    map[string]*channel
	startTime time.Time
	heartbeat *gate.Switch[gate.Always, timer.Source]
}

// ValidateSpecs checks channel specs for empty or duplicate names, unknown
// modes, unknown units and thresholds finer than the channel's tick.
func ValidateSpecs(specs []ChannelSpec) error {
	seen := make(map[string]bool, len(specs))
	for i, s := range specs {
		if s.Name == "" {
			return fmt.Errorf("channel %d: empty name", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("channel %q: duplicate name", s.Name)
		}
		seen[s.Name] = true

		switch s.Mode {
		case ModeSwitch, ModeOnce:
		default:
			return fmt.Errorf("channel %q: unknown mode %q", s.Name, s.Mode)
		}

		switch s.Unit {
		case timer.UnitMillis, timer.UnitMicros:
		default:
			return fmt.Errorf("channel %q: unknown unit %q", s.Name, s.Unit)
		}

		if s.Mode == ModeSwitch && !s.Unit.Exact(s.Threshold) {
			return fmt.Errorf("channel %q: threshold %v is not a whole number of %s ticks", s.Name, s.Threshold, s.Unit)
		}
	}
	return nil
}

// NewMonitor builds a channel for each spec, reading pins through r and time
// through clock. A heartbeat interval <= 0 disables heartbeats; a positive
// interval is rounded up to whole milliseconds.
func NewMonitor(specs []ChannelSpec, r PinReader, clock Clock, startTime time.Time, heartbeat time.Duration) (*Monitor, error) {
	if err := ValidateSpecs(specs); err != nil {
		return nil, err
	}

	m := &Monitor{
		byName:    make(map[string]*channel, len(specs)),
		startTime: startTime,
	}

	for _, s := range specs {
		c := &channel{
			spec:    s,
			trigger: &pinTrigger{r: r, pin: s.Pin, activeLow: s.ActiveLow},
		}
		if s.Mode == ModeOnce {
			c.latch = gate.NewLatch(c.trigger)
		} else {
			c.sw = gate.New(c.trigger, clock(s.Unit), s.Unit.ToTicks(s.Threshold))
		}
		m.channels = append(m.channels, c)
		m.byName[s.Name] = c
	}

	if heartbeat > 0 {
		m.heartbeat = gate.New(gate.Always{}, clock(timer.UnitMillis), timer.UnitMillis.ToTicks(heartbeat))
		// New switches start armed; consume that pulse so the first
		// heartbeat lands one interval after startup.
		m.heartbeat.Get()
	}

	return m, nil
}

// Poll evaluates every channel's gate once, in configuration order, and
// returns an event for each accepted trigger. Pin read errors do not stop the
// poll; they are joined into the returned error.
func (m *Monitor) Poll(now time.Time) ([]Event, error) {
	var events []Event
	var errs []error

	for _, c := range m.channels {
		c.trigger.err = nil
		fired := c.get()
		c.lastErr = c.trigger.err
		if c.lastErr != nil {
			errs = append(errs, fmt.Errorf("channel %s: %w", c.spec.Name, c.lastErr))
		}
		if !fired {
			continue
		}

		c.count++
		typ := EventTriggered
		if c.spec.Mode == ModeOnce {
			typ = EventOnce
		}
		events = append(events, Event{
			Timestamp: now,
			Channel:   c.spec.Name,
			Pin:       c.spec.Pin,
			Type:      typ,
			Count:     c.count,
		})
	}

	return events, errors.Join(errs...)
}

// SetThreshold retunes a switch channel. The remaining wait on the channel is
// preserved; see gate.Switch.SetThreshold. A threshold finer than the
// channel's tick is rounded up to the next whole tick.
func (m *Monitor) SetThreshold(name string, d time.Duration) error {
	c, ok := m.byName[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownChannel, name)
	}
	if c.sw == nil {
		return fmt.Errorf("%w: %q is %s", ErrNoThreshold, name, c.spec.Mode)
	}
	c.sw.SetThreshold(c.spec.Unit.ToTicks(d))
	return nil
}

// Channels returns the current status of every channel in configuration order.
// It never evaluates triggers.
func (m *Monitor) Channels() []ChannelStatus {
	out := make([]ChannelStatus, 0, len(m.channels))
	for _, c := range m.channels {
		cs := ChannelStatus{
			Name:  c.spec.Name,
			Pin:   c.spec.Pin,
			Mode:  c.spec.Mode,
			Unit:  c.spec.Unit,
			Count: c.count,
		}
		if c.lastErr != nil {
			cs.LastError = c.lastErr.Error()
		}
		if c.latch != nil {
			cs.State = c.latch.State()
		} else {
			cs.State = c.sw.State()
			cs.Threshold = c.spec.Unit.ToDuration(c.sw.Threshold())
			cs.SinceLast = c.spec.Unit.ToDuration(c.sw.TimeSinceLastEvent())
		}
		out = append(out, cs)
	}
	return out
}

// Counts returns accepted events per channel since startup.
func (m *Monitor) Counts() map[string]int {
	counts := make(map[string]int, len(m.channels))
	for _, c := range m.channels {
		counts[c.spec.Name] = c.count
	}
	return counts
}

// CheckHeartbeat returns heartbeat data once per heartbeat interval, or nil.
// Always nil when heartbeats are disabled.
func (m *Monitor) CheckHeartbeat(now time.Time) *HeartbeatData {
	if m.heartbeat == nil || !m.heartbeat.Get() {
		return nil
	}
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(m.startTime),
		Counts:    m.Counts(),
	}
}
