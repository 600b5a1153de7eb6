package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/migadu/sievelint/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StartServer serves the Prometheus endpoint on addr until ctx is done.
// Failures other than a clean shutdown are sent to errChan.
func StartServer(ctx context.Context, addr, path string, errChan chan<- error) {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down metrics server", "addr", addr)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Error shutting down metrics server", "error", err)
		}
	}()

	logger.Info("Metrics server listening", "addr", addr, "path", path)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		errChan <- fmt.Errorf("metrics server failed: %w", err)
	}
}
