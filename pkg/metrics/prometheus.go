package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	fetches      *prometheus.CounterVec
	fallbacks    *prometheus.CounterVec
	cacheOps     *prometheus.CounterVec
	drops        *prometheus.CounterVec
	backoffArmed prometheus.Counter
	lastPrice    *prometheus.GaugeVec
	latency      *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		fetches: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quotepulse_fetches_total",
				Help: "Total provider fetch attempts by outcome",
			},
			[]string{"provider", "outcome"},
		),
		fallbacks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quotepulse_fallbacks_total",
				Help: "Total fallback transitions between data tiers",
			},
			[]string{"from", "to", "reason"},
		),
		cacheOps: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quotepulse_cache_ops_total",
				Help: "Cache reads by tier and outcome (hit, miss, expired)",
			},
			[]string{"tier", "outcome"},
		),
		drops: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quotepulse_pipeline_drops_total",
				Help: "Updates dropped or rejected in the push pipeline by stage",
			},
			[]string{"stage"},
		),
		backoffArmed: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "quotepulse_backoff_armed_total",
				Help: "Times the global backoff window was armed",
			},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "quotepulse_last_price",
				Help: "Last resolved price for a symbol",
			},
			[]string{"symbol"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quotepulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordFetch records one provider attempt.
func (r *Recorder) RecordFetch(provider, outcome string) {
	r.fetches.WithLabelValues(provider, outcome).Inc()
}

// RecordFallback records one tier-to-tier fallback transition.
func (r *Recorder) RecordFallback(from, to, reason string) {
	r.fallbacks.WithLabelValues(from, to, reason).Inc()
}

// RecordCache records a cache read outcome for a tier.
func (r *Recorder) RecordCache(tier, outcome string) {
	r.cacheOps.WithLabelValues(tier, outcome).Inc()
}

// RecordLastPrice records the last resolved price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordDrop counts rejected or dropped pipeline updates.
func (r *Recorder) RecordDrop(stage string) {
	r.drops.WithLabelValues(stage).Inc()
}

// RecordBackoffArmed counts global backoff activations.
func (r *Recorder) RecordBackoffArmed() {
	r.backoffArmed.Inc()
}
