// Package webdav presents files read-only over WebDAV.
package webdav

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/net/webdav"
)

var logger = slog.With("Module", "Webdav")

const shutdownTimeout = 5 * time.Second

type Options struct {
	Address string
	// Basic auth is enabled when Username is set
	Username string
	Password string
}

// Handler serves fs, logging failed requests.
func Handler(fs *FS, options Options) http.Handler {
	var handler http.Handler = &webdav.Handler{
		FileSystem: fs,
		LockSystem: webdav.NewMemLS(),
		Logger: func(r *http.Request, err error) {
			if err != nil {
				logger.Debug("Request failed", "method", r.Method, "path", r.URL.Path, "err", err)
			}
		},
	}

	if options.Username != "" {
		handler = basicAuth(handler, options.Username, options.Password)
	}
	return handler
}

func basicAuth(next http.Handler, username, password string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(user), []byte(username)) != 1 ||
			subtle.ConstantTimeCompare([]byte(pass), []byte(password)) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="partstreamer"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Listen serves fs until ctx is cancelled.
func Listen(ctx context.Context, fs *FS, options Options) error {
	server := &http.Server{
		Addr:              options.Address,
		Handler:           Handler(fs, options),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Webdav listening on", "Address", options.Address)
		errChan <- server.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("failed listening: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed shutting down: %w", err)
	}
	if err := <-errChan; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed listening: %w", err)
	}
	return nil
}
