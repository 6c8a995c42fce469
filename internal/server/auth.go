package server

import (
	"crypto/subtle"
	"net/http"

	"github.com/region23/sessionboard/internal/middleware"
	"github.com/region23/sessionboard/pkg/logger"
	"github.com/region23/sessionboard/pkg/metrics"
)

const telegramSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// telegramAuthMiddleware проверяет секретный токен webhook от Telegram
func (s *Server) telegramAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		secret := s.config.Telegram.SecretToken
		if secret == "" {
			next.ServeHTTP(w, r)
			return
		}

		provided := r.Header.Get(telegramSecretHeader)
		if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			s.logger.Warn("Invalid Telegram secret token",
				logger.String("ip", middleware.RealIP(r)),
				logger.String("user_agent", r.UserAgent()),
			)
			metrics.RecordError("webhook", "unauthorized")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requireAuth требует Basic Auth для админ-маршрутов, если задан файл учетных данных
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.creds == nil {
			next.ServeHTTP(w, r)
			return
		}

		user, pass, ok := r.BasicAuth()
		passMatch := false
		if ok {
			var err error
			passMatch, err = s.creds.Verify(user, pass)
			if err != nil {
				s.logger.Error("Error verifying password", logger.Error(err))
				passMatch = false
			}
		}

		if !passMatch {
			s.logger.WithContext(r.Context()).Warn("Failed auth attempt",
				logger.String("ip", middleware.RealIP(r)),
				logger.String("user", user),
				logger.String("path", r.URL.Path),
			)
			metrics.RecordError("http", "unauthorized")

			w.Header().Set("WWW-Authenticate", `Basic realm="sessionboard admin"`)
			writeJSON(w, http.StatusUnauthorized, errorResponse{
				Code:    "UNAUTHORIZED",
				Message: "authentication required",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}
