package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/onnwee/legvotes/internal/middleware"
)

// ServiceName identifies the API in traces and on its root endpoint.
const ServiceName = "legvotes-api"

// RouterConfig holds the handlers and middleware NewRouter wires together.
type RouterConfig struct {
	Search     *SearchHandlers
	LiveSearch *LiveSearchHandlers
	Layout     *LayoutHandlers
	Votes      *VotesHandlers
	Health     *HealthHandlers

	// MetricsHandler serves GET /metrics.
	MetricsHandler http.Handler

	Logger      *slog.Logger
	HTTPMetrics *middleware.Metrics
	CORS        middleware.CORSConfig

	// SearchLimiter wraps the search endpoints. Nil disables rate limiting.
	SearchLimiter func(http.Handler) http.Handler
}

// NewRouter returns the API's root handler.
//
// Requests pass RequestID, Tracing, HTTPMetrics, Logging and CORS before
// reaching a route. The live search WebSocket only passes RequestID and
// Logging, so long-lived connections are neither traced nor timed as one
// request.
func NewRouter(cfg RouterConfig) http.Handler {
	limit := cfg.SearchLimiter
	if limit == nil {
		limit = func(next http.Handler) http.Handler { return next }
	}

	mux := http.NewServeMux()
	mux.Handle("GET /search/legislators", limit(http.HandlerFunc(cfg.Search.SearchLegislators)))
	mux.Handle("GET /search/bills", limit(http.HandlerFunc(cfg.Search.SearchBills)))
	mux.HandleFunc("GET /layout", cfg.Layout.Layout)
	mux.HandleFunc("GET /legislators/{author}/votes", cfg.Votes.Votes)
	mux.HandleFunc("/health", cfg.Health.Health)
	mux.HandleFunc("/ready", cfg.Health.Ready)
	if cfg.MetricsHandler != nil {
		mux.Handle("GET /metrics", cfg.MetricsHandler)
	}
	mux.HandleFunc("/", root)

	var handler http.Handler = mux
	handler = middleware.CORS(cfg.CORS)(handler)
	handler = middleware.Logging(cfg.Logger)(handler)
	if cfg.HTTPMetrics != nil {
		handler = middleware.HTTPMetrics(cfg.HTTPMetrics)(handler)
	}
	handler = middleware.Tracing(ServiceName)(handler)
	handler = middleware.RequestID(handler)

	top := http.NewServeMux()
	top.Handle("GET /search/ws", middleware.RequestID(middleware.Logging(cfg.Logger)(http.HandlerFunc(cfg.LiveSearch.Serve))))
	top.Handle("/", handler)
	return top
}

// root answers GET / with the service name and everything else with a 404.
func root(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		WriteError(w, r.Context(), http.StatusNotFound, ErrCodeNotFound, "The requested resource was not found")
		return
	}
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]string{"service": ServiceName}); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}
