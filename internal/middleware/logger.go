package middleware

import (
	"net/http"
	"time"

	"app/internal/metrics"

	"github.com/rs/zerolog"
)

// statusWriter captures the response status for logging and metrics.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// LoggerMiddleware logs each request with its status and duration, and feeds
// the status counter.
func LoggerMiddleware(logger zerolog.Logger, collector *metrics.Collector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()

			next.ServeHTTP(sw, r)

			collector.RecordHTTPStatus(sw.status)
			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.RequestURI()).
				Int("status", sw.status).
				Dur("duration", time.Since(start)).
				Msg("Request handled")
		})
	}
}
