package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	ingesthandler "github.com/ThinkBeDo/drip-iv-dashboard-sub000/internal/domain/ingest/handler"
	"github.com/ThinkBeDo/drip-iv-dashboard-sub000/pkg/config"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	deps, err := InitDependencies(cfg, logger)
	if err != nil {
		return err
	}
	defer deps.DB.Close()

	if err := deps.Scheduler.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer deps.Scheduler.Stop()

	mux := http.NewServeMux()
	deps.IngestHandler.Register(mux)

	var handler http.Handler = mux
	handler = ingesthandler.RateLimit(cfg.Server.RateLimitPerSecond, cfg.Server.RateLimitBurst)(handler)
	handler = cors.New(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	var metricsServer *http.Server
	if cfg.Observability.MetricsEnabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.HandlerFor(deps.PromRegistry, promhttp.HandlerOpts{}))
		metricsServer = &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Observability.MetricsPort),
			Handler: metricsMux,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("addr", metricsServer.Addr))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", slog.Any("error", err))
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("shutting down", slog.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if metricsServer != nil {
		_ = metricsServer.Shutdown(ctx)
	}
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
