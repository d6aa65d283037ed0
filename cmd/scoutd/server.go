package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"scoutengine/internal/config"
	"scoutengine/internal/scheduler"
)

// HealthResponse is the liveness-probe body.
type HealthResponse struct {
	Status string `json:"status"`
}

// ScoutsHealthResponse lists the registered cron jobs and their next fire
// times, the scout-engine analogue of the teacher's /health/channels.
type ScoutsHealthResponse struct {
	Scheduled []scheduler.JobStatus `json:"scheduled"`
}

// startServer starts the combined metrics/health HTTP server in the
// background: /metrics for Prometheus, /health as the liveness probe, and
// /health/scouts for the scheduler snapshot.
func startServer(ctx context.Context, cfg *config.EngineConfig, sched *scheduler.Scheduler, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(HealthResponse{Status: "healthy"})
	})
	mux.HandleFunc("/health/scouts", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(ScoutsHealthResponse{Scheduled: sched.Snapshot()})
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("metrics server starting", slog.Int("port", cfg.MetricsPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", slog.Any("error", err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownServer(server, logger)
	}()

	return server
}

// shutdownServer gracefully stops the metrics server, allowing in-flight
// requests to complete.
func shutdownServer(server *http.Server, logger *slog.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown error", slog.Any("error", err))
	}
}
