package rest

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/saltkeeper/internal/logging"
	"github.com/dmitrijs2005/saltkeeper/internal/server/config"
	"github.com/dmitrijs2005/saltkeeper/internal/server/ratelimit"
)

const (
	shutdownTimeout     = 10 * time.Second
	limiterEvictionTick = 10 * time.Minute
)

// Server is the custodian REST endpoint.
type Server struct {
	addr         string
	handler      http.Handler
	logger       logging.Logger
	readLimiter  *ratelimit.Limiter
	writeLimiter *ratelimit.Limiter
}

// NewServer wires routes and middleware. Writes go through a stricter rate
// limiter and a body size cap.
func NewServer(cfg *config.Config, svc SaltService, logger logging.Logger) *Server {
	s := &Server{
		addr:         cfg.EndpointAddrHTTP,
		logger:       logger,
		readLimiter:  ratelimit.New(cfg.ReadRatePerMinute),
		writeLimiter: ratelimit.New(cfg.WriteRatePerMinute),
	}

	h := &handlers{svc: svc, logger: logger}
	secret := []byte(cfg.SecretKey)

	authed := requireAuth(secret, logger)
	read := rateLimit(s.readLimiter)
	write := rateLimit(s.writeLimiter)
	body := limitBody(cfg.MaxBodyBytes)

	mux := http.NewServeMux()
	mux.Handle("POST /salts", chain(http.HandlerFunc(h.store), write, authed, body))
	mux.Handle("GET /salts/stats", chain(http.HandlerFunc(h.stats), read, authed))
	mux.Handle("POST /salts/cleanup", chain(http.HandlerFunc(h.cleanup), write, authed))
	mux.Handle("GET /salts/{id}", chain(http.HandlerFunc(h.fetch), read, authed))
	mux.Handle("DELETE /salts/{id}", chain(http.HandlerFunc(h.delete), write, authed))
	mux.Handle("GET /health", chain(http.HandlerFunc(h.health), read))

	s.handler = chain(mux, recoverPanics(logger), logRequests(logger))
	return s
}

// Handler exposes the routed handler, mostly for httptest.
func (s *Server) Handler() http.Handler { return s.handler }

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, lis)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go s.readLimiter.RunCleanup(ctx, limiterEvictionTick)
	go s.writeLimiter.RunCleanup(ctx, limiterEvictionTick)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "REST server listening", "addr", lis.Addr().String())
		errCh <- srv.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Info(ctx, "REST server shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
