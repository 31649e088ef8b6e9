package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/legvotes/internal/legdata"
	"github.com/onnwee/legvotes/internal/search"
	"github.com/onnwee/legvotes/internal/tracing"
)

// Searchable catalogs.
const (
	KindLegislators = "legislators"
	KindBills       = "bills"
)

// Limits on the number of results per query.
const (
	MaxSearchLimit     = 50
	DefaultSearchLimit = 20
)

// ErrUnknownKind is returned for a search of a catalog that does not exist.
var ErrUnknownKind = errors.New("unknown search kind")

// SearchHandlers ranks catalog options against a query.
type SearchHandlers struct {
	source  legdata.Source
	matcher search.Matcher
	metrics *search.Metrics
}

// NewSearchHandlers creates a new SearchHandlers instance. metrics may be nil.
func NewSearchHandlers(source legdata.Source, matcher search.Matcher, metrics *search.Metrics) *SearchHandlers {
	return &SearchHandlers{
		source:  source,
		matcher: matcher,
		metrics: metrics,
	}
}

// SearchResponse is the body of a search request.
type SearchResponse struct {
	Results any    `json:"results"`
	Count   int    `json:"count"`
	Query   string `json:"query"`
}

// SearchLegislators handles GET /search/legislators.
func (h *SearchHandlers) SearchLegislators(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, KindLegislators)
}

// SearchBills handles GET /search/bills.
func (h *SearchHandlers) SearchBills(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, KindBills)
}

func (h *SearchHandlers) serve(w http.ResponseWriter, r *http.Request, kind string) {
	query := r.URL.Query()
	q := strings.TrimSpace(query.Get("q"))

	limit, err := parseLimit(query.Get("limit"))
	if err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	results, count, err := h.Search(r.Context(), kind, q, limit)
	if err != nil {
		slog.ErrorContext(r.Context(), "search failed", "kind", kind, "error", err)
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Search failed")
		return
	}

	writeResponse(w, r, http.StatusOK, SearchResponse{
		Results: results,
		Count:   count,
		Query:   q,
	})
}

// parseLimit reads the limit parameter. Values above MaxSearchLimit are
// clamped.
func parseLimit(raw string) (int, error) {
	if raw == "" {
		return DefaultSearchLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("limit must be a positive integer, got %q", raw)
	}
	return min(n, MaxSearchLimit), nil
}

// Search ranks the options of one catalog against q and returns at most
// limit of them along with how many were returned. Surrounding whitespace in
// q is ignored so every transport ranks the same query.
func (h *SearchHandlers) Search(ctx context.Context, kind, q string, limit int) (any, int, error) {
	q = strings.TrimSpace(q)
	tracing.SetAttributes(ctx,
		attribute.String("search.kind", kind),
		attribute.Int("search.limit", limit),
	)

	catalog, err := h.source.Catalog(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("load catalog: %w", err)
	}

	switch kind {
	case KindLegislators:
		ranked, err := rankOptions(h, ctx, kind, q, catalog.Legislators, limit)
		return ranked, len(ranked), err
	case KindBills:
		ranked, err := rankOptions(h, ctx, kind, q, catalog.Bills, limit)
		return ranked, len(ranked), err
	default:
		return nil, 0, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

func rankOptions[T search.Option](h *SearchHandlers, ctx context.Context, kind, q string, options []T, limit int) ([]T, error) {
	start := time.Now()
	ranked, err := search.Rank(q, options, h.matcher)
	if err != nil {
		return nil, err
	}
	if h.metrics != nil {
		h.metrics.ObserveRank(kind, len(options), len(ranked), time.Since(start).Seconds())
	}
	tracing.AddEvent(ctx, "ranked",
		attribute.Int("candidates", len(options)),
		attribute.Int("matches", len(ranked)),
	)
	return search.Limit(ranked, limit), nil
}
