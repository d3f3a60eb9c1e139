// Package telemetry provides Prometheus metrics and optional OpenTelemetry
// tracing for the watchers.
package telemetry

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Cycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discordbot_watch_cycles_total",
		Help: "Number of completed watcher cycles",
	}, []string{"kind"})

	CycleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "discordbot_watch_cycle_duration_seconds",
		Help:    "Watcher cycle duration seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	AuthFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discordbot_watch_auth_failures_total",
		Help: "Cycles aborted because no credential could be obtained",
	}, []string{"kind"})

	FetchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discordbot_watch_fetch_failures_total",
		Help: "Entity checks skipped after the fetch failed",
	}, []string{"kind"})

	FetchRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discordbot_watch_fetch_retries_total",
		Help: "Fetch retry attempts",
	}, []string{"kind"})

	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discordbot_watch_transitions_total",
		Help: "Evaluated entity transitions",
	}, []string{"kind", "transition"})

	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discordbot_watch_notifications_total",
		Help: "Notifications by delivery result",
	}, []string{"kind", "result"})
)

// ObserveCycle records a finished cycle
func ObserveCycle(kind string, d time.Duration) {
	Cycles.WithLabelValues(kind).Inc()
	CycleDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// StartServer serves /metrics and /health on addr. An empty addr disables it.
func StartServer(addr string) *http.Server {
	if addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("Metrics server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server error", "error", err)
		}
	}()

	return srv
}
