package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// otherPath is the metrics label for requests that match no known route.
const otherPath = "other"

// staticRoutes are recorded under their own path.
var staticRoutes = map[string]bool{
	"/":                   true,
	"/search/legislators": true,
	"/search/bills":       true,
	"/search/ws":          true,
	"/layout":             true,
	"/health":             true,
	"/ready":              true,
	"/metrics":            true,
}

// normalizePath converts paths with dynamic segments to route patterns to prevent
// cardinality explosion in metrics. This maps paths like /legislators/Wood/votes
// to /legislators/{author}/votes. Unknown paths collapse into a single label.
func normalizePath(path string) string {
	if staticRoutes[path] {
		return path
	}

	// /legislators/{author}/votes
	if strings.HasPrefix(path, "/legislators/") {
		parts := strings.Split(path, "/")
		if len(parts) == 4 && parts[2] != "" && parts[3] == "votes" {
			return "/legislators/{author}/votes"
		}
	}

	return otherPath
}

// HTTPMetrics is a middleware that records HTTP request metrics.
// It captures duration, request/response sizes, and request counts.
// Health check endpoints (/health, /ready) are excluded from metrics to avoid noise
// from probes.
func HTTPMetrics(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" || r.URL.Path == "/ready" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rw := newResponseWriter(w)

			// Request size from Content-Length; GET bodies are empty.
			requestSize := r.ContentLength
			if requestSize < 0 {
				requestSize = 0
			}

			next.ServeHTTP(rw, r)

			metrics.ObserveHTTPRequest(
				r.Method,
				normalizePath(r.URL.Path),
				strconv.Itoa(rw.statusCode),
				time.Since(start).Seconds(),
				requestSize,
				rw.size,
			)
		})
	}
}
