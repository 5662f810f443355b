package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/croftja/parley/internal/dependencies/clock"
	"github.com/croftja/parley/internal/services/auth"
	"github.com/croftja/parley/internal/storage"
)

// ServerConfig holds configuration for the chat server
type ServerConfig struct {
	Host string
	Port int

	// MaxSessions is the hard admission cap: while this many sessions are
	// live, further connections are simply not accepted until room frees
	// up. Clamped to 1..100.
	MaxSessions int

	ShutdownTimeout time.Duration
}

// DefaultServerConfig returns sensible defaults for server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "",
		Port:            1234,
		MaxSessions:     10,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Server is the bounded-capacity accept loop. Each accepted connection
// gets a fresh transient id from a monotonically increasing counter
// (never reused) and one goroutine running the session state machine.
type Server struct {
	cfg      ServerConfig
	registry *Registry
	router   *Router
	auth     *auth.Service
	storage  storage.Storage
	clock    clock.Clock
	logger   *slog.Logger

	listener net.Listener
	sem      chan struct{}
	nextID   atomic.Int64
	wg       sync.WaitGroup
	closed   atomic.Bool
}

// NewServer creates the chat server
func NewServer(cfg ServerConfig, registry *Registry, router *Router, authSvc *auth.Service, store storage.Storage, clk clock.Clock, logger *slog.Logger) *Server {
	if cfg.MaxSessions < 1 || cfg.MaxSessions > 100 {
		cfg.MaxSessions = DefaultServerConfig().MaxSessions
	}
	return &Server{
		cfg:      cfg,
		registry: registry,
		router:   router,
		auth:     authSvc,
		storage:  store,
		clock:    clk,
		logger:   logger.With(slog.String("component", "acceptor")),
		sem:      make(chan struct{}, cfg.MaxSessions),
	}
}

// Start binds the listen address and runs the accept loop. It returns
// once the listener is closed via Shutdown.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Listen binds the configured address without accepting yet. After it
// returns, Addr reports the bound address.
func (s *Server) Listen() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	s.listener = listener
	s.logger.Info("chat server listening",
		slog.String("addr", listener.Addr().String()),
		slog.Int("max_sessions", s.cfg.MaxSessions))
	return nil
}

// Serve runs the accept loop on the bound listener.
func (s *Server) Serve(ctx context.Context) error {
	for {
		// Admission gate: do not even accept while at capacity.
		s.sem <- struct{}{}

		conn, err := s.listener.Accept()
		if err != nil {
			<-s.sem
			if s.closed.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Error("accept failed", slog.Any("error", err))
			continue
		}

		id := strconv.FormatInt(s.nextID.Add(1), 10)
		session := NewSession(conn, id, s.registry, s.router, s.auth, s.storage, s.clock, s.logger)
		if err := s.registry.Insert(id, session); err != nil {
			// Ids are never reused, so this cannot happen.
			s.logger.Error("registry insert failed", slog.String("id", id), slog.Any("error", err))
			_ = conn.Close()
			<-s.sem
			continue
		}

		s.logger.Info("client connected",
			slog.String("id", id),
			slog.String("remote", conn.RemoteAddr().String()))

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() { <-s.sem }()
			session.Run(ctx)
		}()
	}
}

// Addr returns the bound listen address, useful when Port was 0.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// SessionCount returns the number of live sessions.
func (s *Server) SessionCount() int {
	return len(s.sem)
}

// Shutdown stops accepting, closes every live session's connection, and
// waits for the session goroutines to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down chat server")
	s.closed.Store(true)

	if s.listener != nil {
		_ = s.listener.Close()
	}

	s.registry.ForEach(func(session *Session) {
		_ = session.Close()
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()

	select {
	case <-done:
		s.logger.Info("chat server stopped")
		return nil
	case <-shutdownCtx.Done():
		return fmt.Errorf("shutdown timed out: %w", shutdownCtx.Err())
	}
}
