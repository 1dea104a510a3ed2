// Package metrics exposes Prometheus counters for the watcher.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	BlocksProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "evmwatch_blocks_processed_total",
		Help: "Blocks scanned for native transfers.",
	}, []string{"network"})

	LogsScanned = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "evmwatch_transfer_logs_total",
		Help: "Transfer logs returned by reconciliation queries.",
	}, []string{"network"})

	Notifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "evmwatch_notifications_total",
		Help: "Notifications handed to the chat transport.",
	}, []string{"network", "kind", "direction"})

	ProviderErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "evmwatch_provider_errors_total",
		Help: "Failed chain RPC calls by operation.",
	}, []string{"network", "op"})

	CursorHeight = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "evmwatch_cursor_height",
		Help: "Last block height covered by token reconciliation.",
	}, []string{"network"})
)

func init() {
	prometheus.MustRegister(BlocksProcessed, LogsScanned, Notifications, ProviderErrors, CursorHeight)
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("metrics listening", "component", "metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
