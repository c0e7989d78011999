package reindex

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragd_reindex_jobs_total",
			Help: "Total number of reindex jobs by terminal status and trigger type.",
		},
		[]string{"status", "trigger"},
	)

	jobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ragd_reindex_duration_seconds",
			Help:    "Duration of completed reindex jobs.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		},
	)

	staleDocRate = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ragd_reindex_stale_doc_rate",
			Help: "Stale document rate observed by the most recent completed reindex.",
		},
	)

	slaViolations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ragd_reindex_sla_violations_total",
			Help: "Number of completed reindex jobs whose stale document rate breached the SLA threshold.",
		},
	)
)
