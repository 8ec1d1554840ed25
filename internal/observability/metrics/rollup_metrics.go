package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	RollupResultSuccess = "success"
	RollupResultFailure = "failure"
)

// RollupMetrics tracks the daily usage rollup worker.
type RollupMetrics struct {
	runs     prometheus.Counter
	tenants  *prometheus.CounterVec
	duration prometheus.Histogram
}

func NewRollupMetrics(reg prometheus.Registerer) (*RollupMetrics, error) {
	runs := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wadesk_usage_rollup_runs_total",
		Help: "Number of daily usage rollup runs.",
	})
	tenants := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wadesk_usage_rollup_tenants_total",
		Help: "Tenants aggregated by the rollup worker, by result.",
	}, []string{"result"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "wadesk_usage_rollup_duration_seconds",
		Help:    "Wall time of a rollup run.",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 600},
	})

	var err error
	if runs, err = registerCounter(reg, runs); err != nil {
		return nil, err
	}
	if tenants, err = registerCounterVec(reg, tenants); err != nil {
		return nil, err
	}
	if duration, err = registerHistogram(reg, duration); err != nil {
		return nil, err
	}

	return &RollupMetrics{runs: runs, tenants: tenants, duration: duration}, nil
}

func (m *RollupMetrics) ObserveRun(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.runs.Inc()
	m.duration.Observe(elapsed.Seconds())
}

func (m *RollupMetrics) ObserveTenant(result string) {
	if m == nil {
		return
	}
	m.tenants.WithLabelValues(result).Inc()
}
