// Package shutdownmanager provides graceful shutdown coordination for services
// with timeout handling and cleanup actions.
package shutdownmanager

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"
)

var ErrShutdownTimeout = errors.New("shutdown timed out")

var logger = slog.With("Module", "ShutdownManager")

// ShutdownManager coordinates graceful shutdown of services with timeout handling.
// It uses a WaitGroup to track active services and provides timeout-based shutdown.
type ShutdownManager struct {
	wg            sync.WaitGroup
	cancel        context.CancelFunc
	timeout       time.Duration
	timeoutAction func()
}

// NewShutdownManager creates a new ShutdownManager with the specified timeout duration and timeout action.
// It returns the manager and a context that will be cancelled when shutdown begins.
func NewShutdownManager(parent context.Context, timeout time.Duration, timeoutAction func()) (*ShutdownManager, context.Context) {
	ctx, cancel := context.WithCancel(parent)
	return &ShutdownManager{
		cancel:        cancel,
		timeout:       timeout,
		timeoutAction: timeoutAction,
	}, ctx
}

// AddService registers a new service with the shutdown manager.
// Must be called before the service starts.
func (sm *ShutdownManager) AddService() {
	sm.wg.Add(1)
}

// ServiceDone marks a service as completed.
func (sm *ShutdownManager) ServiceDone() {
	sm.wg.Done()
}

// Go runs a service until it returns, registering it with the manager.
func (sm *ShutdownManager) Go(name string, service func() error) {
	sm.AddService()
	go func() {
		defer sm.ServiceDone()
		if err := service(); err != nil {
			logger.Error("Service stopped with error", "service", name, "err", err)
			return
		}
		logger.Debug("Service stopped", "service", name)
	}()
}

// Shutdown cancels the context and waits for all services to complete within the configured timeout.
// If the timeout occurs, the timeout action is executed and ErrShutdownTimeout returned.
func (sm *ShutdownManager) Shutdown() error {
	sm.cancel() // Signal all services to stop

	done := make(chan struct{})
	go func() {
		sm.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("Clean shutdown completed")
		return nil
	case <-time.After(sm.timeout):
		logger.Warn("Shutdown timed out", "timeout", sm.timeout)
		if sm.timeoutAction != nil {
			sm.timeoutAction()
		}
		return ErrShutdownTimeout
	}
}

// ShutdownAndExit runs Shutdown, then os.Exit is called with the code
func (sm *ShutdownManager) ShutdownAndExit(code int) {
	//nolint:errcheck // a timeout is already logged
	_ = sm.Shutdown()
	os.Exit(code)
}
