package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/wingspan-tracker/internal/common"
	"github.com/joseph-ayodele/wingspan-tracker/internal/metrics"
)

const requestIDHeader = "X-Request-ID"

// instrument tags the request with an id and records latency per route.
func (s *Server) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rid := r.Header.Get(requestIDHeader)
		if rid == "" {
			rid = uuid.New().String()
		}
		w.Header().Set(requestIDHeader, rid)
		r = r.WithContext(common.WithRequestID(r.Context(), rid))

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(wrapped, r)

		elapsed := time.Since(start)
		metrics.RecordHTTPRequest(route, r.Method, strconv.Itoa(wrapped.statusCode), float64(elapsed.Milliseconds()))
		s.logger.Debug("http.request",
			"req_id", rid,
			"route", route,
			"method", r.Method,
			"status", wrapped.statusCode,
			"elapsed_ms", elapsed.Milliseconds(),
		)
	}
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
