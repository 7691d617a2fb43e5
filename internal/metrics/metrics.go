package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels evaluations that produced a version.
	OutcomeSuccess = "success"
	// OutcomeRejected labels evaluations refused for invalid input.
	OutcomeRejected = "rejected"
	// OutcomeError labels evaluations that failed on storage or dependencies.
	OutcomeError = "error"

	// UnknownStandard labels evaluations whose standard is not in the catalog.
	UnknownStandard = "unknown"
)

var (
	evaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "soilrisk",
			Name:      "evaluations_total",
			Help:      "Total number of evaluations handled, partitioned by standard and outcome.",
		},
		[]string{"standard", "outcome"},
	)

	evaluationDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "soilrisk",
			Name:      "evaluation_seconds",
			Help:      "Evaluation latency in seconds, from datapoint fetch to committed version.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	versionConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "soilrisk",
			Name:      "version_conflicts_total",
			Help:      "Version number allocations that lost to a concurrent writer and were retried.",
		},
	)

	unratedValuesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "soilrisk",
			Name:      "unrated_values_total",
			Help:      "Datapoint values that contributed no rating, partitioned by reason.",
		},
		[]string{"reason"},
	)

	reportsRenderedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "soilrisk",
			Name:      "reports_rendered_total",
			Help:      "Report documents assembled, partitioned by kind (version or preview).",
		},
		[]string{"kind"},
	)
)

// Register attaches soilrisk collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		evaluationsTotal,
		evaluationDurationSeconds,
		versionConflictsTotal,
		unratedValuesTotal,
		reportsRenderedTotal,
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

// ObserveEvaluation records an evaluation duration and outcome label.
func ObserveEvaluation(standardID string, duration time.Duration, outcome string) {
	switch outcome {
	case OutcomeSuccess, OutcomeRejected:
	default:
		outcome = OutcomeError
	}
	evaluationsTotal.WithLabelValues(standardID, outcome).Inc()
	if duration < 0 {
		duration = 0
	}
	evaluationDurationSeconds.Observe(duration.Seconds())
}

// IncVersionConflict counts one lost allocation race.
func IncVersionConflict() {
	versionConflictsTotal.Inc()
}

// AddUnrated counts unrated values by reason.
func AddUnrated(reason string, n int) {
	if n <= 0 {
		return
	}
	unratedValuesTotal.WithLabelValues(reason).Add(float64(n))
}

// IncReport counts one assembled report.
func IncReport(preview bool) {
	kind := "version"
	if preview {
		kind = "preview"
	}
	reportsRenderedTotal.WithLabelValues(kind).Inc()
}
