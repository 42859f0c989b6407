package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels requests that produced a result.
	OutcomeSuccess = "success"
	// OutcomeError labels requests that failed.
	OutcomeError = "error"
	// OutcomeCached labels dashboard requests served from cache.
	OutcomeCached = "cached"
)

var (
	dashboardRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mirador_netlog",
			Name:      "dashboard_requests_total",
			Help:      "Dashboard statistics requests, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	analysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mirador_netlog",
			Name:      "analyses_total",
			Help:      "Uploaded log analyses, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	analysisDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "mirador_netlog",
			Name:      "analysis_seconds",
			Help:      "Log analysis latency in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)

	rowsClassifiedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mirador_netlog",
			Name:      "rows_classified_total",
			Help:      "Uploaded rows classified, partitioned by predicted label.",
		},
		[]string{"label"},
	)

	rowsSkippedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mirador_netlog",
			Name:      "rows_skipped_total",
			Help:      "Uploaded rows skipped because of missing required fields.",
		},
	)
)

// Register attaches mirador-netlog collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		dashboardRequestsTotal,
		analysesTotal,
		analysisDurationSeconds,
		rowsClassifiedTotal,
		rowsSkippedTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveDashboard counts a dashboard request.
func ObserveDashboard(outcome string) {
	switch outcome {
	case OutcomeError, OutcomeCached:
	default:
		outcome = OutcomeSuccess
	}
	dashboardRequestsTotal.WithLabelValues(outcome).Inc()
}

// ObserveAnalysis records an analysis duration and outcome label.
func ObserveAnalysis(duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	analysesTotal.WithLabelValues(label).Inc()
	if duration < 0 {
		duration = 0
	}
	analysisDurationSeconds.Observe(duration.Seconds())
}

// ObserveRows records the per-label row counts of one analysis.
func ObserveRows(byLabel map[string]int, skipped int) {
	for label, n := range byLabel {
		rowsClassifiedTotal.WithLabelValues(label).Add(float64(n))
	}
	if skipped > 0 {
		rowsSkippedTotal.Add(float64(skipped))
	}
}
