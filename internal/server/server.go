// Package server exposes a session's index over a local HTTP JSON API. The
// response bodies use the same field names as the query engine's results,
// so the CLI's --json output and the API are interchangeable.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aidanlsb/cstudio/internal/observe"
	"github.com/aidanlsb/cstudio/internal/query"
	"github.com/aidanlsb/cstudio/internal/session"
)

// shutdownTimeout bounds graceful shutdown once the context is cancelled.
const shutdownTimeout = 5 * time.Second

// maxDocumentBytes caps the body of a validate request.
const maxDocumentBytes = 4 << 20

// Config configures a Server.
type Config struct {
	// Session is the live index. Required.
	Session *session.Session

	// Query is the engine configuration used for every request. Its
	// Metrics defaults to the session's.
	Query query.Options

	// Addr is the listen address, e.g. "127.0.0.1:7777".
	Addr string

	// RateLimit is the sustained requests per second; Burst the bucket
	// size. Zero RateLimit disables limiting.
	RateLimit float64
	Burst     int

	// MetricsHandler serves /metrics. Default: promhttp.Handler().
	MetricsHandler http.Handler

	Logger *slog.Logger
}

// Server is the HTTP API.
type Server struct {
	session *session.Session
	opts    query.Options
	addr    string
	logger  *slog.Logger
	handler http.Handler
}

// New builds the routes and middleware chain.
func New(cfg Config) (*Server, error) {
	if cfg.Session == nil {
		return nil, fmt.Errorf("session is required")
	}
	s := &Server{
		session: cfg.Session,
		opts:    cfg.Query,
		addr:    cfg.Addr,
		logger:  cfg.Logger,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With(slog.String("component", "server"))
	if s.opts.Metrics == nil {
		s.opts.Metrics = cfg.Session.Metrics()
	}
	if s.opts.Schemas == nil {
		s.opts.Schemas = cfg.Session.Schemas()
	}

	metricsHandler := cfg.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/search", s.handleSearch)
	mux.HandleFunc("GET /api/dependencies/{type}/{id}", s.handleDependencies)
	mux.HandleFunc("GET /api/analytics", s.handleAnalytics)
	mux.HandleFunc("POST /api/validate", s.handleValidate)
	mux.HandleFunc("POST /api/rebuild", s.handleRebuild)
	mux.HandleFunc("POST /api/rebuild-one", s.handleRebuildOne)
	mux.HandleFunc("GET /api/events", s.handleEvents)
	mux.Handle("GET /metrics", metricsHandler)

	health := NewHealth(Checker{Name: "index", Check: s.indexReady})
	health.Register(mux)

	var h http.Handler = mux
	if cfg.RateLimit > 0 {
		h = RateLimitMiddleware(h, NewRateLimiter(cfg.RateLimit, cfg.Burst))
	}
	h = observe.Middleware(s.opts.Metrics, s.logger)(h)
	s.handler = h
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.handler }

// engine returns a query engine over the current snapshot. Each request
// sees one consistent index even if a rebuild swaps mid-request.
func (s *Server) engine() *query.Engine {
	return query.New(s.session.Index(), s.opts)
}

func (s *Server) indexReady(context.Context) error {
	if !s.session.Ready() {
		return errors.New("initial build not complete")
	}
	return nil
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", slog.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down: %w", err)
		}
		<-errCh
		return nil
	}
}
