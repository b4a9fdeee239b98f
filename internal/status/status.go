// Package status provides a thread-safe status tracker for the ctr-sensor daemon.
// It is written by the poll loop and read by HTTP handlers.
package status

import (
	"net/http"
	"sync"
	"time"

	"github.com/emirpasic/gods/maps/treemap"

	"github.com/sweeney/ctr-sensor/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs      int64
	HeartbeatMs int64
	Broker      string
	TopicPrefix string
	HTTPAddr    string
	ConfigPath  string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type; safe to use after the lock is released.
type Snapshot struct {
	Channels      []logic.ChannelStatus // sorted by name
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// TotalEvents sums accepted events over all channels.
func (s Snapshot) TotalEvents() int {
	n := 0
	for _, c := range s.Channels {
		n += c.Count
	}
	return n
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu       sync.RWMutex
	snap     Snapshot
	channels *treemap.Map // name -> logic.ChannelStatus
	metrics  *Metrics
	now      func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		channels: treemap.NewWithStringComparator(),
		metrics:  NewMetrics(),
		now:      time.Now,
	}
}

// Update replaces the per-channel status rows.
// Called from runLoop on every tick.
func (t *Tracker) Update(channels []logic.ChannelStatus) {
	t.mu.Lock()
	for _, c := range channels {
		t.channels.Put(c.Name, c)
	}
	t.mu.Unlock()
	t.metrics.update(channels)
}

// RecordEvents counts accepted events in the metrics.
func (t *Tracker) RecordEvents(events []logic.Event) {
	t.metrics.recordEvents(events)
}

// RecordReadError counts a failed poll in the metrics.
func (t *Tracker) RecordReadError() {
	t.metrics.readErrors.Inc()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
	t.metrics.setConnected(connected)
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Channels = make([]logic.ChannelStatus, 0, t.channels.Size())
	it := t.channels.Iterator()
	for it.Next() {
		s.Channels = append(s.Channels, it.Value().(logic.ChannelStatus))
	}
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}

// MetricsHandler serves the tracker's Prometheus metrics.
func (t *Tracker) MetricsHandler() http.Handler {
	return t.metrics.Handler()
}
