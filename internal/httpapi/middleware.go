package httpapi

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/ad-compliance-analyzer/internal/metrics"
)

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

// withMetrics is middleware that emits per-request EMF metrics:
// RequestLatencyMs, RequestCount (with an Endpoint dimension).
func withMetrics(namespace string, out io.Writer, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(sr, r)

		elapsed := time.Since(start)
		endpoint := normalizeEndpoint(r.URL.Path)

		log.Debug().
			Str("method", r.Method).
			Str("endpoint", endpoint).
			Int("status", sr.statusCode).
			Dur("elapsed", elapsed).
			Msg("Request served")

		metrics.NewWithWriter(namespace, out).
			Dimension("Endpoint", endpoint).
			Metric("RequestLatencyMs", float64(elapsed.Milliseconds()), metrics.UnitMilliseconds).
			Count("RequestCount").
			Property("method", r.Method).
			Property("statusCode", sr.statusCode).
			Property("path", r.URL.Path).
			Flush()
	})
}

// normalizeEndpoint maps request paths to low-cardinality endpoint names
// to avoid creating excessive CloudWatch metric dimensions.
func normalizeEndpoint(path string) string {
	switch {
	case path == "/api/health", path == "/api/analyze", path == "/api/fix",
		path == "/api/batch", path == "/api/assets":
		return path
	case strings.HasPrefix(path, "/api/batch/") && strings.HasSuffix(path, "/status"):
		return "/api/batch/{job}/status"
	case strings.HasPrefix(path, "/api/batch/") && strings.HasSuffix(path, "/results"):
		return "/api/batch/{job}/results"
	default:
		return "other"
	}
}
