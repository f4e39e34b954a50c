package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"securemeet/relaygate/pkg/config"
)

// ShutdownHook runs after the HTTP server has drained.
type ShutdownHook func(ctx context.Context) error

// Server runs one HTTP listener with graceful shutdown.
type Server struct {
	name       string
	config     *config.ServerConfig
	handler    http.Handler
	logger     *slog.Logger
	httpServer *http.Server
	listener   net.Listener
	hooks      []ShutdownHook
	certs      *certReloader

	shutdownOnce sync.Once
	shutdownErr  error
	mu           sync.RWMutex
	isRunning    bool
}

// New creates a server named name (used in logs) for handler.
func New(name string, cfg *config.ServerConfig, handler http.Handler) *Server {
	return &Server{
		name:    name,
		config:  cfg,
		handler: handler,
		logger:  slog.Default().With("component", "server", "server", name),
	}
}

// OnShutdown registers a hook run, in registration order, after in-flight
// requests have drained.
func (s *Server) OnShutdown(hook ShutdownHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, hook)
}

// Listen binds the configured address. Start calls it when needed; calling
// it first lets the caller learn the bound address through Addr.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return nil
	}

	s.httpServer = &http.Server{
		Addr:           s.config.ListenAddress,
		Handler:        s.handler,
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		IdleTimeout:    s.config.IdleTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	if s.config.TLS.Enabled {
		certs, tlsConfig, err := configureTLS(s.config.TLS, s.logger)
		if err != nil {
			return fmt.Errorf("failed to configure TLS: %w", err)
		}
		s.certs = certs
		s.httpServer.TLSConfig = tlsConfig
	}

	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}
	s.listener = ln
	return nil
}

// Addr returns the bound address, or "" before Listen.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Start serves until ctx is canceled or the listener fails, then shuts
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("%s server is already running", s.name)
	}
	s.isRunning = true
	srv, ln, certs := s.httpServer, s.listener, s.certs
	s.mu.Unlock()

	if certs != nil {
		go certs.watch(ctx)
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting server",
			"address", ln.Addr().String(),
			"tls_enabled", s.config.TLS.Enabled,
		)

		var err error
		if s.config.TLS.Enabled {
			err = srv.ServeTLS(ln, "", "")
		} else {
			err = srv.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("%s server error: %w", s.name, err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		s.Shutdown(context.Background())
		return err
	}
}

// Shutdown drains in-flight requests for up to ShutdownTimeout and then runs
// the shutdown hooks. It is safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx := ctx
		if s.config.ShutdownTimeout > 0 {
			var cancel context.CancelFunc
			shutdownCtx, cancel = context.WithTimeout(ctx, s.config.ShutdownTimeout)
			defer cancel()
		}

		s.mu.RLock()
		srv, ln, hooks := s.httpServer, s.listener, s.hooks
		running := s.isRunning
		s.mu.RUnlock()

		var errs []error
		switch {
		case running:
			if err := srv.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("error during server shutdown", "error", err)
				errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
			}
		case ln != nil:
			ln.Close()
		}

		// Hooks get their own grace period: a drain that used up
		// shutdownCtx must not cancel the final capture flush.
		hookCtx, cancelHooks := s.hookContext(ctx)
		defer cancelHooks()
		for _, hook := range hooks {
			if err := hook(hookCtx); err != nil {
				s.logger.Error("shutdown hook failed", "error", err)
				errs = append(errs, err)
			}
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.shutdownErr = errors.Join(errs...)
		s.logger.Info("server stopped")
	})

	return s.shutdownErr
}

func (s *Server) hookContext(ctx context.Context) (context.Context, context.CancelFunc) {
	base := context.WithoutCancel(ctx)
	if s.config.ShutdownTimeout > 0 {
		return context.WithTimeout(base, s.config.ShutdownTimeout)
	}
	return context.WithCancel(base)
}

// IsRunning reports whether the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

func configureTLS(cfg config.TLSConfig, logger *slog.Logger) (*certReloader, *tls.Config, error) {
	if cfg.CertFile == "" {
		return nil, nil, fmt.Errorf("TLS cert file not specified")
	}
	if cfg.KeyFile == "" {
		return nil, nil, fmt.Errorf("TLS key file not specified")
	}

	certs := newCertReloader(cfg.CertFile, cfg.KeyFile, cfg.ReloadInterval, logger)
	if err := certs.load(); err != nil {
		return nil, nil, err
	}

	return certs, &tls.Config{
		MinVersion:     tls.VersionTLS13,
		GetCertificate: certs.getCertificate,
	}, nil
}
