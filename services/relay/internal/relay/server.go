package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/appetiteclub/apt"
)

const shutdownWait = 5 * time.Second

// stopContext returns ctx while it is live. Stop hooks are called with the
// run context after it was canceled, so a done ctx is swapped for a fresh
// one bounded by shutdownWait.
func stopContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx.Err() == nil {
		return ctx, func() {}
	}
	return context.WithTimeout(context.Background(), shutdownWait)
}

// Server owns the relay listener. A failure of the listening socket is
// reported to onFatal; the relay has no restart logic of its own.
type Server struct {
	settings Settings
	handler  http.Handler
	onFatal  func(error)
	logger   apt.Logger

	mu  sync.Mutex
	srv *http.Server
	ln  net.Listener
}

func NewServer(settings Settings, handler http.Handler, onFatal func(error), logger apt.Logger) *Server {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	if onFatal == nil {
		onFatal = func(error) {}
	}
	return &Server{
		settings: settings,
		handler:  handler,
		onFatal:  onFatal,
		logger:   logger,
	}
}

// Start binds the listener synchronously so bind errors fail startup.
func (s *Server) Start(ctx context.Context) error {
	addr := s.settings.Addr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("cannot listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.mu.Lock()
	s.srv = srv
	s.ln = ln
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("relay listener failed", "addr", addr, "error", err)
			s.onFatal(err)
		}
	}()

	s.logger.Info("relay listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Stop stops accepting connections. Upgraded sockets are closed by the hub.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	ctx, cancel := stopContext(ctx)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("cannot shut down relay listener: %w", err)
	}
	return nil
}
