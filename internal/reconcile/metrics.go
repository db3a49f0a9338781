package reconcile

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes the engine's operational counters. Pass a nil registerer
// to keep them unregistered (the engine still counts, nothing scrapes it).
type Metrics struct {
	Passes         prometheus.Counter
	EffectOps      *prometheus.CounterVec
	EntityFailures prometheus.Counter
	PassDuration   prometheus.Histogram
}

// NewMetrics builds the metric set and optionally registers it.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Passes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bivouac_reconcile_passes_total",
			Help: "Completed reconciliation passes.",
		}),
		EffectOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bivouac_effect_ops_total",
			Help: "Effect operations issued by reconciliation.",
		}, []string{"verb"}),
		EntityFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bivouac_reconcile_entity_failures_total",
			Help: "Entities skipped in a pass due to effect port errors.",
		}),
		PassDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bivouac_reconcile_pass_duration_seconds",
			Help:    "Wall time of one reconciliation pass.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Passes, m.EffectOps, m.EntityFailures, m.PassDuration)
	}
	return m
}
