package replica

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vczyh/mysql-cdc/binlog"
)

const (
	metricsNamespace = "mysql_cdc"
	metricsSubsystem = "replica"
)

type metrics struct {
	source string

	events     *prometheus.CounterVec
	bytes      *prometheus.CounterVec
	reconnects *prometheus.CounterVec
	state      *prometheus.GaugeVec
	lastEvent  *prometheus.GaugeVec
}

// newMetrics builds the session collectors, labelled by source address.
// They are registered with registerer when it is not nil.
func newMetrics(registerer prometheus.Registerer, source string) *metrics {
	m := &metrics{
		source: source,
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "events_total",
			Help:      "Binlog events received, by event type.",
		}, []string{"source", "type"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "received_bytes_total",
			Help:      "Bytes of binlog events received.",
		}, []string{"source"}),
		reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "reconnects_total",
			Help:      "Reconnects after the stream was interrupted.",
		}, []string{"source"}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "state",
			Help:      "Session state: 0 disconnected, 1 connecting, 2 authenticating, 3 registering, 4 streaming, 5 reconnecting, 6 closed.",
		}, []string{"source"}),
		lastEvent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "last_event_timestamp_seconds",
			Help:      "Timestamp of the last event written by the source.",
		}, []string{"source"}),
	}
	if registerer != nil {
		m.events = register(registerer, m.events)
		m.bytes = register(registerer, m.bytes)
		m.reconnects = register(registerer, m.reconnects)
		m.state = register(registerer, m.state)
		m.lastEvent = register(registerer, m.lastEvent)
	}
	return m
}

func register[T prometheus.Collector](registerer prometheus.Registerer, c T) T {
	if err := registerer.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
	}
	return c
}

func (m *metrics) received(n int) {
	m.bytes.WithLabelValues(m.source).Add(float64(n))
}

func (m *metrics) observe(e binlog.Event) {
	h := e.Header()
	m.events.WithLabelValues(m.source, h.EventType.String()).Inc()
	// heartbeats and fake rotates carry no timestamp
	if h.Timestamp != 0 {
		m.lastEvent.WithLabelValues(m.source).Set(float64(h.Timestamp))
	}
}

func (m *metrics) reconnected() {
	m.reconnects.WithLabelValues(m.source).Inc()
}

func (m *metrics) setState(s State) {
	m.state.WithLabelValues(m.source).Set(float64(s))
}
