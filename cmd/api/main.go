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

	httpadapter "github.com/kirillkom/plainlaw/internal/adapters/http"
	"github.com/kirillkom/plainlaw/internal/bootstrap"
	"github.com/kirillkom/plainlaw/internal/config"
	"github.com/kirillkom/plainlaw/internal/observability/logging"
	"github.com/kirillkom/plainlaw/internal/observability/metrics"
)

const serviceName = "plainlaw-api"

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics(serviceName)
	hooks := bootstrap.Hooks{
		Observer:      httpMetrics.Pipeline(),
		OnBreakerTrip: httpMetrics.Pipeline().RecordBreakerTransition,
	}

	build := bootstrap.New
	if cfg.APIProcessViaNATS {
		build = bootstrap.NewRemote
	}
	app, err := build(cfg, hooks)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	router := httpadapter.NewRouter(cfg, app.Processor, httpMetrics).Handler()
	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		// Long enough for a full pipeline run plus encoding the answer.
		WriteTimeout: time.Duration(cfg.PipelineTimeoutSeconds+30) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("api_listening", "port", cfg.APIPort, "via_nats", cfg.APIProcessViaNATS)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api_shutdown_failed", "error", err)
	}
}
