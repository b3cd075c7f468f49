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

	"querybatch/internal/api"
	"querybatch/internal/catalog"
	"querybatch/internal/clickhouse"
	"querybatch/internal/config"
	"querybatch/internal/engine"
	"querybatch/internal/tracing"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.LoadDotEnv(".env"); err != nil {
		return err
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := clickhouse.Open(ctx, cfg.ClickHouseDSN)
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck

	cat := catalog.New()
	if cfg.CatalogPath != "" {
		if err := cat.MergeYAMLFile(cfg.CatalogPath); err != nil {
			return err
		}
		logger.Info("merged catalog file", "path", cfg.CatalogPath)
	}

	eng, err := engine.New(cat, store, engine.Options{
		Tracer:           tracing.NewOTel("querybatch"),
		Logger:           logger,
		GroupConcurrency: cfg.GroupConcurrency,
	})
	if err != nil {
		return err
	}

	handler := api.NewHandler(eng, cat, nil, logger)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           http.TimeoutHandler(handler.Routes(), cfg.QueryTimeout, `{"error":"request timed out"}`),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("query service listening", "addr", cfg.ListenAddr, "types", cat.Len())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
