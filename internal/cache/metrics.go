package cache

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts cache lookups and limiter waits. A nil *Metrics records nothing.
type Metrics struct {
	lookups  *prometheus.CounterVec
	waits    *prometheus.CounterVec
	waitTime *prometheus.CounterVec
}

// NewMetrics registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "etfsentinel",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache lookups by source and result (hit, miss, stale).",
		}, []string{"source", "result"}),
		waits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "etfsentinel",
			Subsystem: "limiter",
			Name:      "waits_total",
			Help:      "Calls that had to wait for their rate limit slot.",
		}, []string{"operation"}),
		waitTime: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "etfsentinel",
			Subsystem: "limiter",
			Name:      "wait_seconds_total",
			Help:      "Total time spent waiting for rate limit slots.",
		}, []string{"operation"}),
	}
	if reg != nil {
		reg.MustRegister(m.lookups, m.waits, m.waitTime)
	}
	return m
}

func (m *Metrics) lookup(source, result string) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(source, result).Inc()
}

func (m *Metrics) waited(op string, d time.Duration) {
	if m == nil {
		return
	}
	m.waits.WithLabelValues(op).Inc()
	m.waitTime.WithLabelValues(op).Add(d.Seconds())
}
