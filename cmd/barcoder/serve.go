package main

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"barcoder/internal/adapters/httpapi"
	"barcoder/internal/barcode"
	"barcoder/internal/blob"
	"barcoder/internal/config"
	"barcoder/internal/core"
	"barcoder/internal/registry"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(root *rootOptions) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the label API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := root.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Listen = listen
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
	cmd.Flags().StringVarP(&listen, "listen", "l", "", "address to listen on, overrides the config")
	return cmd
}

func newMetrics(kind string) (core.MetricsRecorder, http.Handler) {
	switch strings.ToLower(kind) {
	case "expvar":
		return core.NewExpvarMetricsRecorder(""), expvar.Handler()
	case "none":
		return nil, nil
	default:
		rec := core.NewPrometheusMetricsRecorder()
		return rec, rec.Handler()
	}
}

func newRegistry(cfg config.Config, logger *slog.Logger) registry.Registry {
	if cfg.UsesMemoryRegistry() {
		logger.Warn("using an empty in-memory sample registry")
		return registry.NewMemory()
	}
	return registry.NewClient(cfg.Registry.URL, cfg.Registry.APIKey, cfg.Registry.Timeout)
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	dir, err := core.OpenDirectory(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("open directory: %w", err)
	}
	defer dir.Close()

	store, err := blob.Open(ctx, cfg.Blob)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}

	metrics, metricsHandler := newMetrics(cfg.Metrics)
	creator := barcode.NewCreator(cfg.Paths, barcode.WithLogger(logger), barcode.WithCounter(metrics))
	svc := core.NewService(newRegistry(cfg, logger), dir, creator,
		core.WithServiceLogger(logger),
		core.WithMetrics(metrics),
		core.WithArchive(blob.NewArchive(store)),
	)
	svc.Start()

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           httpapi.NewHandler(svc, httpapi.WithLogger(logger), httpapi.WithMetricsHandler(metricsHandler)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Listen, "storage", string(cfg.Storage.Driver), "blob", string(store.Driver()))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			_ = svc.Stop(context.Background())
			return err
		}
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	return svc.Stop(shutdownCtx)
}
