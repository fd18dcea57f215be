package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type DBMetrics struct {
	QueryDuration *prometheus.HistogramVec
}

type BusinessMetrics struct {
	SchedulesGeneratedTotal    prometheus.Counter
	ContractsLockedTotal       prometheus.Counter
	PaymentsDeferredTotal      prometheus.Counter
	PaymentsEditedTotal        prometheus.Counter
	ReconciliationDriftWarning prometheus.Counter
}

var (
	DB = DBMetrics{
		QueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "schedule_engine_db_query_duration_seconds",
				Help:    "Histogram of database query latencies.",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"query_name", "status"},
		),
	}

	Business = BusinessMetrics{
		SchedulesGeneratedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "schedule_engine_schedules_generated_total",
				Help: "Total number of schedule previews generated.",
			},
		),
		ContractsLockedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "schedule_engine_contracts_locked_total",
				Help: "Total number of contracts submitted and locked.",
			},
		),
		PaymentsDeferredTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "schedule_engine_payments_deferred_total",
				Help: "Total number of payments deferred.",
			},
		),
		PaymentsEditedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "schedule_engine_payments_edited_total",
				Help: "Total number of manual payment edits.",
			},
		),
		ReconciliationDriftWarning: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "schedule_engine_reconciliation_drift_warnings_total",
				Help: "Total number of schedules whose final-payment adjustment exceeded tolerance.",
			},
		),
	}
)

func RecordDBQuery(queryName, status string, duration time.Duration) {
	DB.QueryDuration.WithLabelValues(queryName, status).Observe(duration.Seconds())
}
