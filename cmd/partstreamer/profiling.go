package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/arl/statsviz"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func debugHandler(reg *prometheus.Registry) (http.Handler, error) {
	mux := http.NewServeMux()
	if err := statsviz.Register(mux, statsviz.Root("/debug/statsviz")); err != nil {
		return nil, fmt.Errorf("failed registering statsviz: %w", err)
	}
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return mux, nil
}

// listenDebug serves statsviz and the metrics of reg until ctx is done.
func listenDebug(ctx context.Context, address string, reg *prometheus.Registry) error {
	handler, err := debugHandler(reg)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              address,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Debug listening on", "Address", address)
		errChan <- server.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("failed listening: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed shutting down: %w", err)
	}
	if err := <-errChan; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed listening: %w", err)
	}
	return nil
}
