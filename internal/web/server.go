// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"go.astrophena.name/openclaw/internal/logger"
)

// Server is used to configure the HTTP server started by
// [Server.ListenAndServe].
//
// All fields of Server can't be modified after [Server.ListenAndServe]
// is called.
type Server struct {
	// Addr is a network address to listen on (in the form of "host:port").
	Addr string
	// Mux is a http.ServeMux to serve.
	Mux *http.ServeMux
	// Ready specifies an optional function to be called when the server is
	// ready to serve requests.
	Ready func()
	// OnShutdown is called after the server stopped accepting requests and
	// before ListenAndServe returns. It is used to wait for background work.
	OnShutdown func(context.Context)
	// ShutdownTimeout limits graceful shutdown. Zero means 30 seconds.
	ShutdownTimeout time.Duration
}

var (
	errNoAddr = errors.New("server.Addr is empty")
	errNilMux = errors.New("server.Mux is nil")
)

// ListenAndServe starts the HTTP server and blocks until ctx is cancelled,
// then shuts it down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.Addr == "" {
		return errNoAddr
	}
	if s.Mux == nil {
		return errNilMux
	}
	log := logger.Get(ctx)

	l, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	defer l.Close()
	log.Info("listening", "addr", l.Addr().String())

	Health(s.Mux)

	httpSrv := &http.Server{
		ErrorLog:          slog.NewLogLogger(log.Handler(), slog.LevelError),
		Handler:           withLogger(log, s.Mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if s.Ready != nil {
		s.Ready()
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("gracefully shutting down")
	timeout := s.ShutdownTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if s.OnShutdown != nil {
		s.OnShutdown(shutdownCtx)
	}
	return nil
}

// withLogger makes the logger available to handlers via [logger.Get].
func withLogger(l *logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(logger.Put(r.Context(), l)))
	})
}
