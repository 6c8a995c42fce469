package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/region23/sessionboard/pkg/metrics"
)

// PrometheusMiddleware добавляет метрики Prometheus для HTTP запросов.
// Эндпоинт берется из шаблона маршрута, чтобы идентификаторы в пути
// не размножали серии.
func PrometheusMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := NewResponseWriter(w)
		next.ServeHTTP(wrapped, r)

		endpoint := r.Pattern
		if endpoint == "" {
			endpoint = "unmatched"
		}
		status := strconv.Itoa(wrapped.Status())

		metrics.RecordHTTPRequest(r.Method, endpoint, status)
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	})
}

// ResponseWriter оборачивает http.ResponseWriter для захвата статус-кода
type ResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

// NewResponseWriter создает обертку со статусом 200 по умолчанию
func NewResponseWriter(w http.ResponseWriter) *ResponseWriter {
	if rw, ok := w.(*ResponseWriter); ok {
		return rw
	}
	return &ResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

// WriteHeader захватывает статус-код ответа
func (rw *ResponseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.statusCode = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

// Write отмечает неявный статус 200
func (rw *ResponseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// Status возвращает записанный статус-код
func (rw *ResponseWriter) Status() int {
	return rw.statusCode
}

// Unwrap открывает исходный writer для http.ResponseController
func (rw *ResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
