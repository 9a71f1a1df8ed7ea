package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/plainlaw/internal/bootstrap"
	"github.com/kirillkom/plainlaw/internal/config"
	"github.com/kirillkom/plainlaw/internal/infrastructure/queue/nats"
	"github.com/kirillkom/plainlaw/internal/observability/logging"
	"github.com/kirillkom/plainlaw/internal/observability/metrics"
)

const serviceName = "plainlaw-worker"

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	app, err := bootstrap.NewWorker(cfg, bootstrap.Hooks{
		Observer:      workerMetrics.Pipeline(),
		OnBreakerTrip: workerMetrics.Pipeline().RecordBreakerTransition,
	})
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_server_failed", "error", err)
		}
	}()

	hooks := nats.ServeHooks{
		OnStart: func(req nats.ProcessRequest) {
			workerMetrics.StartRequest()
			if !req.PublishedAt.IsZero() {
				workerMetrics.ObserveQueueLag(serviceName, time.Since(req.PublishedAt))
			}
		},
		OnFinish: func(req nats.ProcessRequest, duration time.Duration, err error) {
			workerMetrics.FinishRequest(serviceName, duration, err)
			slog.Info("queue_request_processed",
				"request_id", req.RequestID,
				"source_type", req.SourceType,
				"duration_ms", duration.Milliseconds(),
				"ok", err == nil,
			)
		},
	}

	processor := metrics.RecordingProcessor(app.Processor, workerMetrics.Pipeline())
	if err := app.Queue.Serve(ctx, processor, cfg.WorkerConcurrency, hooks); err != nil {
		slog.Error("worker_serve_failed", "error", err)
		shutdownMetrics(metricsServer)
		os.Exit(1)
	}
	shutdownMetrics(metricsServer)
}

func shutdownMetrics(server *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("worker_metrics_shutdown_failed", "error", err)
	}
}
