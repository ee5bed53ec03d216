package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pipeline's prometheus collectors. Each Metrics owns its
// registry so several pipelines (and tests) never collide.
type Metrics struct {
	Registry *prometheus.Registry

	StageDuration *prometheus.HistogramVec
	StageFailures *prometheus.CounterVec
	CacheRequests *prometheus.CounterVec
	Reports       prometheus.Counter
}

// NewMetrics creates and registers the pipeline collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "stock_analyzer",
				Subsystem: "pipeline",
				Name:      "stage_duration_seconds",
				Help:      "Duration of each analysis stage",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"stage"},
		),
		StageFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stock_analyzer",
				Subsystem: "pipeline",
				Name:      "stage_failures_total",
				Help:      "Stages that produced no output",
			},
			[]string{"stage"},
		),
		CacheRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stock_analyzer",
				Subsystem: "cache",
				Name:      "requests_total",
				Help:      "Prediction cache lookups by result",
			},
			[]string{"result"},
		),
		Reports: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stock_analyzer",
			Subsystem: "pipeline",
			Name:      "reports_total",
			Help:      "Reports produced",
		}),
	}
	m.Registry.MustRegister(m.StageDuration, m.StageFailures, m.CacheRequests, m.Reports)
	return m
}

func (m *Metrics) observeStage(stage string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
	if err != nil {
		m.StageFailures.WithLabelValues(stage).Inc()
	}
}

func (m *Metrics) cacheResult(result string) {
	if m == nil {
		return
	}
	m.CacheRequests.WithLabelValues(result).Inc()
}

func (m *Metrics) reportDone() {
	if m == nil {
		return
	}
	m.Reports.Inc()
}
