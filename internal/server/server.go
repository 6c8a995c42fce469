package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	tgmodels "github.com/go-telegram/bot/models"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/region23/sessionboard/internal/auth"
	"github.com/region23/sessionboard/internal/config"
	"github.com/region23/sessionboard/internal/middleware"
	"github.com/region23/sessionboard/internal/service"
	"github.com/region23/sessionboard/internal/storage"
	"github.com/region23/sessionboard/pkg/logger"
)

// UpdateHandler обрабатывает обновление Telegram, полученное через webhook
type UpdateHandler func(ctx context.Context, update *tgmodels.Update)

// Options содержит зависимости HTTP сервера
type Options struct {
	Config  *config.Config
	Service *service.Service
	// Store проверяется в /health
	Store storage.Storage
	// Credentials защищают админ-маршруты, nil оставляет их открытыми
	Credentials *auth.Credentials
	// OnUpdate включает /webhook
	OnUpdate UpdateHandler
	Logger   *logger.Logger
	Version  string
}

// Server представляет HTTP сервер с middleware
type Server struct {
	httpServer  *http.Server
	config      *config.Config
	svc         *service.Service
	logger      *logger.Logger
	rateLimiter *middleware.RateLimiter
	health      *HealthChecker
	creds       *auth.Credentials
	onUpdate    UpdateHandler
}

// New создает новый HTTP сервер
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}

	s := &Server{
		config:   opts.Config,
		svc:      opts.Service,
		logger:   opts.Logger,
		health:   NewHealthChecker(opts.Store, opts.Version),
		creds:    opts.Credentials,
		onUpdate: opts.OnUpdate,
	}
	if opts.Config.Server.RateLimit > 0 {
		s.rateLimiter = middleware.NewRateLimiter(opts.Config.Server.RateLimit, time.Minute, opts.Logger)
	}

	s.httpServer = &http.Server{
		Addr:           ":" + opts.Config.Server.Port,
		Handler:        s.Handler(),
		ReadTimeout:    opts.Config.Server.ReadTimeout,
		WriteTimeout:   opts.Config.Server.WriteTimeout,
		IdleTimeout:    opts.Config.Server.IdleTimeout,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	return s
}

// Handler возвращает маршруты вместе с middleware
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/week", s.handleWeek)
	mux.HandleFunc("POST /api/week/next", s.handleNextWeek)
	mux.HandleFunc("POST /api/week/prev", s.handlePrevWeek)
	mux.HandleFunc("GET /api/slots", s.handleSlots)
	mux.HandleFunc("POST /api/sessions/{sessionID}/slots", s.handleSignUp)
	mux.HandleFunc("PUT /api/slots/{slotID}", s.handleEditSignUp)
	mux.HandleFunc("DELETE /api/slots/{slotID}", s.handleCancelSignUp)

	mux.Handle("GET /api/admin/sessions", s.requireAuth(http.HandlerFunc(s.handleAdminSessions)))
	mux.Handle("POST /api/admin/canceled/{date}", s.requireAuth(s.handleCancelSession(false)))
	mux.Handle("DELETE /api/admin/canceled/{date}", s.requireAuth(s.handleCancelSession(true)))

	mux.HandleFunc("GET /calendar.ics", s.handleCalendar)
	mux.HandleFunc("GET /health", s.health.HealthHandler)
	mux.Handle("GET /metrics", promhttp.Handler())

	if s.onUpdate != nil {
		mux.Handle("POST /webhook", s.telegramAuthMiddleware(http.HandlerFunc(s.handleWebhook)))
	}

	return s.applyMiddleware(mux)
}

// applyMiddleware применяет middleware (последний применяется первым)
func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	h := handler

	h = middleware.PrometheusMiddleware(h)
	h = s.loggingMiddleware(h)

	if s.rateLimiter != nil {
		h = middleware.HTTPRateLimitMiddleware(s.rateLimiter)(h)
	}

	h = s.recoveryMiddleware(h)
	h = s.securityHeadersMiddleware(h)
	h = s.requestIDMiddleware(h)

	return h
}

// Start запускает сервер и блокируется до отмены ctx
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server",
		logger.String("addr", s.httpServer.Addr),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server failed to start: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown корректно завершает работу сервера
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if s.rateLimiter != nil {
		s.rateLimiter.Close()
	}

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("Error during server shutdown", logger.Error(err))
		return err
	}

	s.logger.Info("HTTP server shut down successfully")
	return nil
}
