// Package metrics exposes sampler progress as Prometheus collectors.
package metrics

import (
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the sampler collectors. A nil *Metrics records nothing.
type Metrics struct {
	RoundsTotal      *prometheus.CounterVec
	RoundDuration    *prometheus.HistogramVec
	LocalAcceptance  *prometheus.GaugeVec
	GlobalAcceptance *prometheus.GaugeVec
	LastLoss         prometheus.Gauge
	PoolSize         prometheus.Gauge
}

// New registers the sampler collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RoundsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowmc",
			Subsystem: "sampler",
			Name:      "rounds_total",
			Help:      "Total completed sampling rounds",
		}, []string{"phase"}),

		RoundDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "flowmc",
			Subsystem: "sampler",
			Name:      "round_duration_seconds",
			Help:      "Sampling round duration including flow training",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"phase"}),

		LocalAcceptance: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "flowmc",
			Subsystem: "sampler",
			Name:      "local_acceptance",
			Help:      "Mean local acceptance of the last round",
		}, []string{"phase"}),

		GlobalAcceptance: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "flowmc",
			Subsystem: "sampler",
			Name:      "global_acceptance",
			Help:      "Mean global acceptance of the last round",
		}, []string{"phase"}),

		LastLoss: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "flowmc",
			Subsystem: "trainer",
			Name:      "last_loss",
			Help:      "Mean batch loss of the last training epoch",
		}),

		PoolSize: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "flowmc",
			Subsystem: "trainer",
			Name:      "pool_size",
			Help:      "Number of points the flow was last trained on",
		}),
	}
}

// ObserveRound records one finished round. A NaN acceptance leaves its
// gauge untouched.
func (m *Metrics) ObserveRound(phase string, d time.Duration, localAcc, globalAcc float64) {
	if m == nil {
		return
	}
	m.RoundsTotal.WithLabelValues(phase).Inc()
	m.RoundDuration.WithLabelValues(phase).Observe(d.Seconds())
	if !math.IsNaN(localAcc) {
		m.LocalAcceptance.WithLabelValues(phase).Set(localAcc)
	}
	if !math.IsNaN(globalAcc) {
		m.GlobalAcceptance.WithLabelValues(phase).Set(globalAcc)
	}
}

// ObserveTraining records the pool size and the final epoch loss.
func (m *Metrics) ObserveTraining(poolSize int, losses []float64) {
	if m == nil {
		return
	}
	m.PoolSize.Set(float64(poolSize))
	if len(losses) > 0 {
		m.LastLoss.Set(losses[len(losses)-1])
	}
}
