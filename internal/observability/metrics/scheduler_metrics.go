// Package metrics exposes Prometheus instrumentation for the billing
// scheduler.
package metrics

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rebill",
		Subsystem: "scheduler",
		Name:      "job_runs_total",
		Help:      "Scheduler job runs by job name and result.",
	}, []string{"job", "result"})

	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "rebill",
		Subsystem: "scheduler",
		Name:      "job_duration_seconds",
		Help:      "Scheduler job duration by job name.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"job"})

	JobErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rebill",
		Subsystem: "scheduler",
		Name:      "job_errors_total",
		Help:      "Scheduler job errors by job name and error class.",
	}, []string{"job", "class"})

	TasksDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rebill",
		Subsystem: "scheduler",
		Name:      "tasks_dispatched_total",
		Help:      "Billing and termination tasks emitted by the dispatcher.",
	}, []string{"kind"})

	RunLoopLag = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "rebill",
		Subsystem: "scheduler",
		Name:      "run_loop_lag_seconds",
		Help:      "Delay between the scheduled tick and the actual run start.",
	})
)

// ClassifyError maps an error onto a low-cardinality class label.
func ClassifyError(err error) string {
	if err == nil {
		return "none"
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "55P03":
			return "lock_not_available"
		case "40001":
			return "serialization_failure"
		case "23505":
			return "unique_violation"
		default:
			return "database"
		}
	}
	return "other"
}

// ObserveJob records one job run.
func ObserveJob(job string, seconds float64, err error) {
	result := "ok"
	if err != nil {
		result = "error"
		JobErrors.WithLabelValues(job, ClassifyError(err)).Inc()
	}
	JobRuns.WithLabelValues(job, result).Inc()
	JobDuration.WithLabelValues(job).Observe(seconds)
}
