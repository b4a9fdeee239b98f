// Package config loads the daemon configuration from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	yaml "github.com/goccy/go-yaml"

	"github.com/sweeney/ctr-sensor/internal/gpio"
	"github.com/sweeney/ctr-sensor/internal/logic"
	"github.com/sweeney/ctr-sensor/internal/timer"
)

// Config mirrors the YAML file. Durations are Go duration strings ("250ms").
type Config struct {
	Poll        string    `yaml:"poll"`
	Heartbeat   string    `yaml:"heartbeat"`
	Broker      string    `yaml:"broker"`
	TopicPrefix string    `yaml:"topic_prefix"`
	ClientID    string    `yaml:"client_id"`
	HTTP        string    `yaml:"http"`
	Chip        string    `yaml:"chip"`
	LogLevel    string    `yaml:"log_level"`
	Channels    []Channel `yaml:"channels"`
}

// Channel is one input channel in the YAML file.
type Channel struct {
	Name      string `yaml:"name"`
	Pin       int    `yaml:"pin"`
	Mode      string `yaml:"mode"`      // switch (default) | once
	Threshold string `yaml:"threshold"` // switch only; negative clamps to 0
	Unit      string `yaml:"unit"`      // ms (default) | us
	ActiveLow bool   `yaml:"active_low"`
	Bias      string `yaml:"bias"` // pull-down (default) | pull-up | disabled
}

// Default returns the built-in configuration: the two boiler inputs as
// 250ms switches.
func Default() Config {
	return Config{
		Poll:        "100ms",
		Heartbeat:   "15m",
		Broker:      "tcp://192.168.1.200:1883",
		TopicPrefix: "ctr/sensor",
		ClientID:    "ctr-sensor",
		HTTP:        ":80",
		Chip:        gpio.DefaultChip,
		LogLevel:    "info",
		Channels: []Channel{
			{Name: "ch", Pin: 26, Mode: string(logic.ModeSwitch), Threshold: "250ms", ActiveLow: true},
			{Name: "hw", Pin: 16, Mode: string(logic.ModeSwitch), Threshold: "250ms", ActiveLow: true},
		},
	}
}

// Load reads YAML from path over the defaults. An empty path returns the
// defaults. Keys absent from the file keep their default values; a channels
// list in the file replaces the default channels.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Durations returns the parsed poll and heartbeat intervals.
// A poll interval must be positive; a heartbeat of 0 disables heartbeats and
// any other heartbeat must be whole milliseconds.
func (c Config) Durations() (poll, heartbeat time.Duration, err error) {
	poll, err = time.ParseDuration(c.Poll)
	if err != nil {
		return 0, 0, fmt.Errorf("poll: %w", err)
	}
	if poll <= 0 {
		return 0, 0, fmt.Errorf("poll: must be positive, got %v", poll)
	}
	heartbeat, err = time.ParseDuration(c.Heartbeat)
	if err != nil {
		return 0, 0, fmt.Errorf("heartbeat: %w", err)
	}
	if !timer.UnitMillis.Exact(heartbeat) {
		return 0, 0, fmt.Errorf("heartbeat: %v is not a whole number of milliseconds", heartbeat)
	}
	return poll, heartbeat, nil
}

// Specs converts the channel list to monitor specs, applying defaults and
// validating the result.
func (c Config) Specs() ([]logic.ChannelSpec, error) {
	specs := make([]logic.ChannelSpec, 0, len(c.Channels))
	for i, ch := range c.Channels {
		s := logic.ChannelSpec{
			Name:      ch.Name,
			Pin:       ch.Pin,
			Mode:      logic.Mode(ch.Mode),
			Unit:      timer.Unit(ch.Unit),
			ActiveLow: ch.ActiveLow,
		}
		if s.Mode == "" {
			s.Mode = logic.ModeSwitch
		}
		if s.Unit == "" {
			s.Unit = timer.UnitMillis
		}
		if ch.Threshold != "" {
			d, err := time.ParseDuration(ch.Threshold)
			if err != nil {
				return nil, fmt.Errorf("channel %d (%s): threshold: %w", i, ch.Name, err)
			}
			if d < 0 {
				d = 0
			}
			s.Threshold = d
		}
		specs = append(specs, s)
	}
	if err := logic.ValidateSpecs(specs); err != nil {
		return nil, err
	}
	return specs, nil
}

// Lines returns the GPIO lines to request, one per distinct pin.
func (c Config) Lines() ([]gpio.Line, error) {
	lines := make([]gpio.Line, 0, len(c.Channels))
	seen := make(map[int]bool)
	for _, ch := range c.Channels {
		if seen[ch.Pin] {
			continue
		}
		seen[ch.Pin] = true

		b := gpio.Bias(ch.Bias)
		switch b {
		case "":
			b = gpio.BiasPullDown
		case gpio.BiasPullDown, gpio.BiasPullUp, gpio.BiasDisabled:
		default:
			return nil, fmt.Errorf("channel %s: unknown bias %q", ch.Name, ch.Bias)
		}
		lines = append(lines, gpio.Line{Pin: ch.Pin, Bias: b})
	}
	return lines, nil
}
