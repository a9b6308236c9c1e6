package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Yoshida-JJJ/tc-app-sub001/internal/metrics"
)

// RequestLogger logs basic request details and latency through slog and
// records the HTTP Prometheus metrics.
func RequestLogger(next http.Handler, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		pattern := routePattern(r)
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, pattern, strconv.Itoa(rec.status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, pattern).Observe(elapsed.Seconds())

		logger.Info("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("duration", elapsed),
		)
	})
}

// routePattern returns the matched mux pattern so metric labels stay
// low-cardinality; unmatched requests collapse into "unmatched".
func routePattern(r *http.Request) string {
	if p := r.Pattern; p != "" {
		// Strip the method prefix ("POST /orders/{id}/ship").
		if _, after, found := strings.Cut(p, " "); found {
			return after
		}
		return p
	}
	return "unmatched"
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// userIDHeader carries the authenticated user id, set by the upstream auth
// gateway. The service trusts it only behind that gateway.
const userIDHeader = "X-User-ID"

func actorID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(userIDHeader))
}
