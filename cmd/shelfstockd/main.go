// Command shelfstockd serves the grocery catalog API: transactional buy and
// restock operations over a persisted record table, aggregated catalog
// queries, CSV/PNG exports, and a change event feed.
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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"shelfstock/internal/adapters/exports"
	"shelfstock/internal/adapters/httpapi"
	"shelfstock/internal/blob"
	"shelfstock/internal/catalog"
	"shelfstock/internal/infra/persistence/csvfile"
	"shelfstock/internal/notify"
)

// slogAdapter bridges *slog.Logger to the catalog Logger interface.
type slogAdapter struct{ logger *slog.Logger }

func (l slogAdapter) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l slogAdapter) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l slogAdapter) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l slogAdapter) Error(msg string, args ...any) { l.logger.Error(msg, args...) }

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "shelfstockd:", err)
		os.Exit(1)
	}
}

func run() error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := catalog.OpenPersistentStore(catalog.NewDefaultRulesEngine())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = store.Close() }()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := catalog.NewPrometheusMetricsRecorder(registry)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	broadcaster := notify.NewBroadcaster()
	service := catalog.NewService(store,
		catalog.WithLogger(slogAdapter{logger: logger}),
		catalog.WithMetricsRecorder(metrics),
		catalog.WithNotifier(broadcaster),
	)

	if err := seedIfEmpty(ctx, service, logger); err != nil {
		return err
	}

	blobStore, err := blob.Open(ctx)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}
	artifacts := exports.NewBlobObjectStore(blobStore)
	worker := exports.NewWorker(service, artifacts, nil)
	worker.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = worker.Stop(stopCtx)
	}()

	api := httpapi.NewHandler(service)
	api.Exports = worker
	api.Artifacts = artifacts
	api.Events = broadcaster
	api.Logger = slogAdapter{logger: logger}

	mux := http.NewServeMux()
	mux.Handle("/api/v1/", api)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	addr := os.Getenv("SHELFSTOCK_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}
	return nil
}

// seedIfEmpty loads the table named by SHELFSTOCK_SEED_CSV into an empty
// store. A populated store is left untouched so restarts keep mutations.
func seedIfEmpty(ctx context.Context, service *catalog.Service, logger *slog.Logger) error {
	path := os.Getenv("SHELFSTOCK_SEED_CSV")
	if path == "" {
		return nil
	}
	if len(service.SnapshotRecords()) > 0 {
		logger.Debug("store already populated, skipping seed", "path", path)
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed table: %w", err)
	}
	records, err := csvfile.DecodeTable(data)
	if err != nil {
		return fmt.Errorf("decode seed table: %w", err)
	}
	if err := service.ImportRecords(ctx, records); err != nil {
		return fmt.Errorf("import seed records: %w", err)
	}
	logger.Info("seeded catalog", "path", path, "records", len(records))
	return nil
}
