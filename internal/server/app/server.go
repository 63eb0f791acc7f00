// Package app собирает HTTP сервер: маршруты, middleware и graceful shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/iudanet/shoetrack/internal/server/handlers"
	"github.com/iudanet/shoetrack/internal/server/jwt"
	"github.com/iudanet/shoetrack/internal/server/middleware"
	"github.com/iudanet/shoetrack/internal/server/storage"
)

// Storage всё, что сервер требует от хранилища
type Storage interface {
	storage.UserStorage
	storage.RecordStorage
	handlers.Pinger
}

// Options параметры сервера
type Options struct {
	Addr            string
	ShutdownTimeout time.Duration
	RateLimitRPS    float64
	RateLimitBurst  int
}

// Server HTTP сервер записей
type Server struct {
	logger  *slog.Logger
	limiter *middleware.RateLimiter
	handler http.Handler
	opts    Options
}

// New создает сервер и регистрирует маршруты
func New(logger *slog.Logger, st Storage, tokens *jwt.Service, opts Options) *Server {
	authHandler := handlers.NewAuthHandler(logger, st, tokens)
	recordsHandler := handlers.NewRecordsHandler(logger, st)
	healthHandler := handlers.NewHealthHandler(logger, st)

	requireAuth := middleware.AuthMiddleware(logger, tokens)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/health", healthHandler.Health)
	mux.HandleFunc("POST /api/v1/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/v1/auth/login", authHandler.Login)

	mux.Handle("GET /api/v1/records/{type}", requireAuth(http.HandlerFunc(recordsHandler.List)))
	mux.Handle("POST /api/v1/records/{type}", requireAuth(http.HandlerFunc(recordsHandler.Create)))
	mux.Handle("GET /api/v1/records/{type}/{id}", requireAuth(http.HandlerFunc(recordsHandler.Get)))
	mux.Handle("PUT /api/v1/records/{type}/{id}", requireAuth(http.HandlerFunc(recordsHandler.Update)))
	mux.Handle("DELETE /api/v1/records/{type}/{id}", requireAuth(http.HandlerFunc(recordsHandler.Delete)))

	limiter := middleware.NewRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst, logger)

	// Порядок: recovery снаружи, чтобы паника в любом слое превратилась в 500
	var h http.Handler = mux
	h = limiter.Middleware(h)
	h = middleware.LoggingWithSkip(logger, []string{"/api/v1/health"})(h)
	h = middleware.RecoveryMiddleware(logger)(h)

	return &Server{
		logger:  logger,
		limiter: limiter,
		handler: h,
		opts:    opts,
	}
}

// Handler возвращает корневой handler (для тестов)
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run слушает Addr до отмены ctx, затем завершает активные запросы
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.opts.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve обслуживает готовый listener до отмены ctx
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer s.limiter.Stop()

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server started", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	timeout := s.opts.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}
