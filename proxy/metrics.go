package proxy

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks invocation outcomes and listener rebinds.
//
// Metrics:
//   - serverless_proxy_invocations_total: invocations by reply status code
//   - serverless_proxy_invocation_duration_seconds: time from entry to reply
//   - serverless_proxy_rebinds_total: listener rebinds after bind conflicts or
//     serve failures
type Metrics struct {
	invocationsTotal   *prometheus.CounterVec
	invocationDuration prometheus.Histogram
	rebindsTotal       prometheus.Counter
}

// NewMetrics creates the proxy metrics and registers them with registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		invocationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "serverless",
				Subsystem: "proxy",
				Name:      "invocations_total",
				Help:      "Total number of invocations answered by the proxy",
			},
			[]string{"status"},
		),

		invocationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "serverless",
				Subsystem: "proxy",
				Name:      "invocation_duration_seconds",
				Help:      "Duration of invocations in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
		),

		rebindsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "serverless",
				Subsystem: "proxy",
				Name:      "rebinds_total",
				Help:      "Total number of times the backing listener moved to a new endpoint",
			},
		),
	}

	registerer.MustRegister(m.invocationsTotal, m.invocationDuration, m.rebindsTotal)

	return m
}

func (m *Metrics) recordInvocation(status int, duration time.Duration) {
	if m == nil {
		return
	}

	m.invocationsTotal.WithLabelValues(strconv.Itoa(status)).Inc()
	m.invocationDuration.Observe(duration.Seconds())
}

func (m *Metrics) recordRebind() {
	if m == nil {
		return
	}

	m.rebindsTotal.Inc()
}
