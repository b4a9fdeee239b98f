// Package logic contains the polling core of the daemon: named input channels,
// each gated by a gate.Switch or gate.Latch.
// This package has NO hardware or network dependencies. Pins are read through
// PinReader and time comes from injected tick sources.
package logic

import (
	"errors"
	"time"

	"github.com/sweeney/ctr-sensor/internal/gate"
	"github.com/sweeney/ctr-sensor/internal/timer"
)

// Mode selects the gate wrapped around a channel's pin.
type Mode string

const (
	// ModeSwitch rate-limits the channel: an active pin is reported at most
	// once per threshold window.
	ModeSwitch Mode = "switch"
	// ModeOnce reports the first time the pin reads active and never again.
	ModeOnce Mode = "once"
)

// EventType identifies what produced an event.
type EventType string

const (
	EventTriggered EventType = "TRIGGERED"
	EventOnce      EventType = "ONCE"
)

var (
	// ErrUnknownChannel is returned for a channel name that is not configured.
	ErrUnknownChannel = errors.New("unknown channel")
	// ErrNoThreshold is returned when retuning a channel that has no window.
	ErrNoThreshold = errors.New("channel has no threshold")
)

// ChannelSpec configures one input channel.
type ChannelSpec struct {
	Name      string
	Pin       int
	Mode      Mode
	Threshold time.Duration // ignored for ModeOnce
	Unit      timer.Unit    // tick resolution of the switch
	ActiveLow bool          // pin low = active
}

// Event is an accepted trigger to be published.
type Event struct {
	Timestamp time.Time
	Channel   string
	Pin       int
	Type      EventType
	Count     int // accepted events on this channel since startup, including this one
}

// ChannelStatus is a diagnostic view of one channel.
type ChannelStatus struct {
	Name      string
	Pin       int
	Mode      Mode
	Unit      timer.Unit
	State     gate.State
	Threshold time.Duration
	// SinceLast is time since the last accepted event, or since startup
	// plus one threshold if nothing has fired yet. Zero for ModeOnce.
	SinceLast time.Duration
	Count     int
	LastError string
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    map[string]int
}

// PinReader reads a raw pin level. gpio.Reader satisfies it.
type PinReader interface {
	Read(pin int) (bool, error)
}

// Clock returns the tick source for a unit.
type Clock func(u timer.Unit) timer.Source
