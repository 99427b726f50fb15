package api

import (
	"time"

	"git.sr.ht/~jakintosh/sso/pkg/sso"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus metrics of the HTTP binding
type Metrics struct {
	CallsTotal   *prometheus.CounterVec
	CallDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers the call metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		CallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sso_calls_total",
				Help: "Total number of sso calls by outcome",
			},
			[]string{"call", "status"},
		),
		CallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sso_call_duration_seconds",
				Help:    "sso call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"call"},
		),
	}

	registry.MustRegister(
		m.CallsTotal,
		m.CallDuration,
	)

	return m
}

func (m *Metrics) RecordCall(
	call sso.Call,
	status sso.Status,
	duration time.Duration,
) {
	m.CallsTotal.WithLabelValues(string(call), string(status)).Inc()
	m.CallDuration.WithLabelValues(string(call)).Observe(duration.Seconds())
}
