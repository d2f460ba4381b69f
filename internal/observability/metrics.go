package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for sync cycles. Each Metrics owns
// its registry so a short-lived process can push exactly these series.
type Metrics struct {
	Registry *prometheus.Registry

	CyclesTotal   *prometheus.CounterVec // labels: outcome
	ApplyActions  *prometheus.CounterVec // labels: state={clear,rain}, result={success,error}
	FetchErrors   *prometheus.CounterVec // labels: kind={transport,api_status,unparseable}
	FetchDuration prometheus.Histogram
	CycleDuration prometheus.Histogram

	// State gauges.
	CurrentState       *prometheus.GaugeVec // labels: state; 1 for the classified state
	LastSuccessSeconds prometheus.Gauge
}

// NewMetrics creates all cycle metrics registered on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		CyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weathersync",
			Name:      "cycles_total",
			Help:      "Sync cycles by outcome.",
		}, []string{"outcome"}),
		ApplyActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weathersync",
			Name:      "apply_actions_total",
			Help:      "Remote weather commands by weather type and result.",
		}, []string{"state", "result"}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weathersync",
			Name:      "fetch_errors_total",
			Help:      "Observation fetch failures by kind.",
		}, []string{"kind"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "weathersync",
			Name:      "fetch_duration_seconds",
			Help:      "OpenWeatherMap request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "weathersync",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a complete fetch-classify-apply-persist cycle.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		CurrentState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "weathersync",
			Name:      "state",
			Help:      "1 for the sync state classified by the last cycle, 0 otherwise.",
		}, []string{"state"}),
		LastSuccessSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "weathersync",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last cycle that completed without a fetch failure.",
		}),
	}

	m.Registry.MustRegister(
		m.CyclesTotal,
		m.ApplyActions,
		m.FetchErrors,
		m.FetchDuration,
		m.CycleDuration,
		m.CurrentState,
		m.LastSuccessSeconds,
	)

	return m
}
