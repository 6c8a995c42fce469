package server

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/region23/sessionboard/internal/middleware"
	"github.com/region23/sessionboard/pkg/logger"
	"github.com/region23/sessionboard/pkg/metrics"
)

const requestIDHeader = "X-Request-ID"

// requestIDMiddleware присваивает запросу идентификатор и кладет его в контекст
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}

		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logger.ContextWithRequestID(r.Context(), id)))
	})
}

// loggingMiddleware логирует HTTP запросы
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := middleware.NewResponseWriter(w)

		next.ServeHTTP(wrapped, r)

		log := s.logger.WithContext(r.Context())
		fields := []logger.Field{
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status_code", wrapped.Status()),
			logger.Int64("duration_ms", time.Since(start).Milliseconds()),
		}
		if wrapped.Status() >= http.StatusInternalServerError {
			log.Error("HTTP request failed", fields...)
			return
		}
		log.Debug("HTTP request completed", fields...)
	})
}

// recoveryMiddleware превращает панику обработчика в ответ 500
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			s.logger.WithContext(r.Context()).Error("Panic in HTTP handler",
				logger.Any("panic", rec),
				logger.String("path", r.URL.Path),
				logger.String("stack", string(debug.Stack())),
			)
			metrics.RecordError("http", "panic")
			writeJSON(w, http.StatusInternalServerError, errorResponse{
				Code:    "INTERNAL",
				Message: "internal server error",
			})
		}()
		next.ServeHTTP(w, r)
	})
}

// securityHeadersMiddleware добавляет заголовки безопасности
func (s *Server) securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy", "default-src 'none'")

		next.ServeHTTP(w, r)
	})
}
