package realtime

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the realtime collectors. A nil *Metrics records nothing.
type Metrics struct {
	connections *prometheus.GaugeVec
	rejections  *prometheus.CounterVec
	handshakes  *prometheus.CounterVec
	evictions   prometheus.Counter
	delivered   prometheus.Counter
	dropped     prometheus.Counter
}

// NewMetrics builds the collectors and registers them on reg when reg is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		connections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "parley",
			Subsystem: "realtime",
			Name:      "connections",
			Help:      "Open realtime connections by route pattern.",
		}, []string{"route"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parley",
			Subsystem: "realtime",
			Name:      "upgrade_rejections_total",
			Help:      "Rejected upgrade requests by reason.",
		}, []string{"reason"}),
		handshakes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parley",
			Subsystem: "realtime",
			Name:      "handshakes_total",
			Help:      "In-band authenticate handshakes by result.",
		}, []string{"result"}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parley",
			Subsystem: "realtime",
			Name:      "liveness_evictions_total",
			Help:      "Connections terminated for missing a liveness probe.",
		}),
		delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parley",
			Subsystem: "realtime",
			Name:      "messages_delivered_total",
			Help:      "Message frames queued to recipients, echo excluded.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parley",
			Subsystem: "realtime",
			Name:      "messages_dropped_total",
			Help:      "Message frames dropped because a send queue was full.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.connections, m.rejections, m.handshakes, m.evictions, m.delivered, m.dropped)
	}
	return m
}

func (m *Metrics) connOpened(route string) {
	if m != nil {
		m.connections.WithLabelValues(route).Inc()
	}
}

func (m *Metrics) connClosed(route string) {
	if m != nil {
		m.connections.WithLabelValues(route).Dec()
	}
}

func (m *Metrics) rejected(reason string) {
	if m != nil {
		m.rejections.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) handshake(result string) {
	if m != nil {
		m.handshakes.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) evicted() {
	if m != nil {
		m.evictions.Inc()
	}
}

func (m *Metrics) deliveredN(n int) {
	if m != nil && n > 0 {
		m.delivered.Add(float64(n))
	}
}

func (m *Metrics) droppedOne() {
	if m != nil {
		m.dropped.Inc()
	}
}
