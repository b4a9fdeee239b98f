package status

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/ctr-sensor/internal/gate"
	"github.com/sweeney/ctr-sensor/internal/logic"
)

// Metrics exposes channel activity to Prometheus. Each Tracker owns its own
// registry so tests can build trackers freely.
type Metrics struct {
	registry   *prometheus.Registry
	events     *prometheus.CounterVec
	threshold  *prometheus.GaugeVec
	armed      *prometheus.GaugeVec
	readErrors prometheus.Counter
	connected  prometheus.Gauge
}

// NewMetrics creates and registers the collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ctr_sensor_events_total",
			Help: "Accepted channel events.",
		}, []string{"channel", "type"}),
		threshold: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ctr_sensor_threshold_seconds",
			Help: "Current gating window of each switch channel.",
		}, []string{"channel"}),
		armed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ctr_sensor_channel_armed",
			Help: "1 if the channel will evaluate its pin on the next poll.",
		}, []string{"channel"}),
		readErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ctr_sensor_poll_errors_total",
			Help: "Polls that returned at least one pin read error.",
		}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ctr_sensor_mqtt_connected",
			Help: "1 while the MQTT connection is up.",
		}),
	}
	m.registry.MustRegister(m.events, m.threshold, m.armed, m.readErrors, m.connected)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) recordEvents(events []logic.Event) {
	for _, e := range events {
		m.events.WithLabelValues(e.Channel, string(e.Type)).Inc()
	}
}

func (m *Metrics) update(channels []logic.ChannelStatus) {
	for _, c := range channels {
		armed := 0.0
		if c.State == gate.StateArmed || c.State == gate.StateOpen {
			armed = 1
		}
		m.armed.WithLabelValues(c.Name).Set(armed)
		if c.Mode == logic.ModeSwitch {
			m.threshold.WithLabelValues(c.Name).Set(c.Threshold.Seconds())
		}
	}
}

func (m *Metrics) setConnected(connected bool) {
	v := 0.0
	if connected {
		v = 1
	}
	m.connected.Set(v)
}
