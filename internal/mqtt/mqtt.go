// Package mqtt publishes channel events and receives threshold commands, with
// an abstraction for testing.
package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/ctr-sensor/internal/logic"
)

// DefaultTopicPrefix is the topic root used when none is configured.
const DefaultTopicPrefix = "ctr/sensor"

// Topics holds the topics the daemon uses under one prefix.
type Topics struct {
	Events  string // accepted channel events
	System  string // lifecycle events (STARTUP, SHUTDOWN, HEARTBEAT, OFFLINE)
	Control string // inbound threshold commands
}

// TopicsFor derives the topic set for a prefix.
func TopicsFor(prefix string) Topics {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{
		Events:  prefix + "/events",
		System:  prefix + "/system",
		Control: prefix + "/control",
	}
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a channel event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// ControlSource delivers threshold commands. The handler is called from the
// MQTT client's goroutine; callers must hand commands to their own loop.
type ControlSource interface {
	SubscribeControl(handler func(Command)) error
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Event EventPayload `json:"event"`
}

// EventPayload contains the channel event details.
type EventPayload struct {
	Timestamp string `json:"timestamp"`
	Channel   string `json:"channel"`
	Pin       int    `json:"pin"`
	Type      string `json:"type"`
	Count     int    `json:"count"`
}

// FormatPayload creates the JSON payload for a channel event.
func FormatPayload(event logic.Event) ([]byte, error) {
	payload := Payload{
		Event: EventPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339Nano),
			Channel:   event.Channel,
			Pin:       event.Pin,
			Type:      string(event.Type),
			Count:     event.Count,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// Command retunes a switch channel's threshold.
//
//	{"channel": "door", "threshold": "2s"}
type Command struct {
	Channel   string        `json:"channel"`
	Threshold time.Duration `json:"-"`
}

type commandJSON struct {
	Channel   string `json:"channel"`
	Threshold string `json:"threshold"`
}

// ParseCommand decodes and validates a control message. Negative thresholds
// are accepted; the switch clamps them to zero.
func ParseCommand(data []byte) (Command, error) {
	var raw commandJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return Command{}, fmt.Errorf("decode command: %w", err)
	}
	if raw.Channel == "" {
		return Command{}, errors.New("command: missing channel")
	}
	if raw.Threshold == "" {
		return Command{}, errors.New("command: missing threshold")
	}
	d, err := time.ParseDuration(raw.Threshold)
	if err != nil {
		return Command{}, fmt.Errorf("command threshold: %w", err)
	}
	return Command{Channel: raw.Channel, Threshold: d}, nil
}
