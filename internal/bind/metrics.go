package bind

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus collectors updated by a Binder.
type Metrics struct {
	attempts  *prometheus.CounterVec
	failures  *prometheus.CounterVec
	listening prometheus.Gauge
}

// NewMetrics creates the bind collectors and registers them with reg.
// A nil reg leaves them unregistered, which is handy in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "listend_bind_attempts_total",
			Help: "Total number of bind candidates tried",
		}, []string{"family"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "listend_bind_failures_total",
			Help: "Total number of failed bind requests",
		}, []string{"kind"}),
		listening: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "listend_listening_sockets",
			Help: "Number of open listening sockets",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.attempts, m.failures, m.listening)
	}
	return m
}

func (m *Metrics) recordAttempt(f Family) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(f.String()).Inc()
}

func (m *Metrics) recordFailure(err error) {
	if m == nil {
		return
	}
	var kind Kind = BindFailed
	if f, ok := err.(*BindFailure); ok {
		kind = f.Kind
	}
	m.failures.WithLabelValues(kind.String()).Inc()
}

func (m *Metrics) socketOpened() {
	if m == nil {
		return
	}
	m.listening.Inc()
}

func (m *Metrics) socketClosed() {
	if m == nil {
		return
	}
	m.listening.Dec()
}
