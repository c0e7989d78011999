// Package testdata provides a standalone metrics generator for testing
// Grafana dashboards against ragd's metric surface without real traffic.
package main

import (
	"context"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Mirrors the metric names registered by internal/reindex and the OTel
// HTTP instruments as they appear after Prometheus export.
var (
	reindexJobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragd_reindex_jobs_total",
			Help: "Total reindex jobs by terminal status",
		},
		[]string{"status", "trigger"},
	)
	reindexDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ragd_reindex_duration_seconds",
			Help:    "Reindex run duration",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		},
	)
	staleDocRate = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ragd_reindex_stale_doc_rate",
			Help: "Stale document rate observed by the latest run",
		},
	)
	slaViolations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ragd_reindex_sla_violations_total",
			Help: "Runs that completed above the staleness threshold",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragd_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ragd_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	queries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragd_engine_queries_total",
			Help: "Total engine queries by result",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(
		reindexJobs,
		reindexDuration,
		staleDocRate,
		slaViolations,
		httpRequests,
		httpDuration,
		queries,
	)
}

func main() {
	generateHistoricalData()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go generateContinuousData(ctx)

	http.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: ":9091"}
	go func() {
		log.Println("serving test metrics on :9091/metrics")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("metrics server: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	cancel()
	_ = srv.Shutdown(context.Background())
}

func generateHistoricalData() {
	statuses := []string{"completed", "completed", "completed", "failed"}
	triggers := []string{"manual", "scheduled"}
	for i := 0; i < 50; i++ {
		reindexJobs.WithLabelValues(randomChoice(statuses), randomChoice(triggers)).Inc()
		reindexDuration.Observe(rand.Float64() * 30.0)
	}
	staleDocRate.Set(rand.Float64() * 0.02)
	for i := 0; i < 3; i++ {
		slaViolations.Inc()
	}

	paths := []string{"/api/v1/query", "/api/v1/documents", "/api/v1/reindex/status", "/health"}
	methods := []string{"GET", "POST"}
	codes := []string{"200", "200", "200", "400", "502"}
	for i := 0; i < 200; i++ {
		path := randomChoice(paths)
		method := randomChoice(methods)
		httpRequests.WithLabelValues(method, path, randomChoice(codes)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(rand.Float64() * 0.5)
	}

	results := []string{"ok", "ok", "ok", "insufficient_context", "validation_error", "generation_error"}
	for i := 0; i < 100; i++ {
		queries.WithLabelValues(randomChoice(results)).Inc()
	}
}

func generateContinuousData(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if rand.Float64() > 0.7 {
				status := "completed"
				if rand.Float64() > 0.9 {
					status = "failed"
				}
				reindexJobs.WithLabelValues(status, "scheduled").Inc()
				reindexDuration.Observe(rand.Float64() * 20.0)
				staleDocRate.Set(rand.Float64() * 0.015)
				if rand.Float64() > 0.95 {
					slaViolations.Inc()
				}
			}
			if rand.Float64() > 0.3 {
				httpRequests.WithLabelValues("POST", "/api/v1/query", "200").Inc()
				httpDuration.WithLabelValues("POST", "/api/v1/query").Observe(rand.Float64() * 0.8)
				queries.WithLabelValues("ok").Inc()
			}
			if rand.Float64() > 0.8 {
				queries.WithLabelValues("insufficient_context").Inc()
			}
		}
	}
}

func randomChoice(choices []string) string {
	return choices[rand.Intn(len(choices))]
}
