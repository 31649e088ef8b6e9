package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/onnwee/legvotes/internal/legdata"
	"github.com/onnwee/legvotes/internal/search"
)

type legislatorResults struct {
	Results []legdata.Legislator `json:"results"`
	Count   int                  `json:"count"`
	Query   string               `json:"query"`
}

type billResults struct {
	Results []legdata.Bill `json:"results"`
	Count   int            `json:"count"`
	Query   string         `json:"query"`
}

func newSearchHandlers(t *testing.T, source legdata.Source) *SearchHandlers {
	t.Helper()
	matcher, err := search.NewMatcher(search.MatcherFuzzy, true)
	if err != nil {
		t.Fatal(err)
	}
	return NewSearchHandlers(source, matcher, nil)
}

func TestSearchLegislators(t *testing.T) {
	h := newSearchHandlers(t, newFakeSource())

	w := httptest.NewRecorder()
	h.SearchLegislators(w, httptest.NewRequest(http.MethodGet, "/search/legislators?q=wood", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var resp legislatorResults
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Count != 1 || len(resp.Results) != 1 || resp.Results[0].Author != "Wood" {
		t.Errorf("results = %+v", resp)
	}
	if resp.Query != "wood" {
		t.Errorf("query = %q", resp.Query)
	}
}

func TestSearchBills(t *testing.T) {
	h := newSearchHandlers(t, newFakeSource())

	w := httptest.NewRecorder()
	h.SearchBills(w, httptest.NewRequest(http.MethodGet, "/search/bills?q=budget", nil))

	var resp billResults
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Count != 1 || resp.Results[0].ID != "2025AB12" {
		t.Fatalf("results = %+v", resp)
	}
	if resp.Results[0].Subject == nil || *resp.Results[0].Subject != "Budget Act of 2025" {
		t.Errorf("subject = %v", resp.Results[0].Subject)
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	h := newSearchHandlers(t, newFakeSource())

	w := httptest.NewRecorder()
	h.SearchLegislators(w, httptest.NewRequest(http.MethodGet, "/search/legislators?q=+", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := w.Body.String(); got != `{"results":[],"count":0,"query":""}`+"\n" {
		t.Errorf("body = %s", got)
	}
}

func TestSearch_Limit(t *testing.T) {
	h := newSearchHandlers(t, newFakeSource())

	// "j" matches all three display names.
	w := httptest.NewRecorder()
	h.SearchLegislators(w, httptest.NewRequest(http.MethodGet, "/search/legislators?q=j&limit=2", nil))

	var resp legislatorResults
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Count != 2 || len(resp.Results) != 2 {
		t.Errorf("count = %d, results = %d, want 2", resp.Count, len(resp.Results))
	}
}

func TestSearch_InvalidLimit(t *testing.T) {
	h := newSearchHandlers(t, newFakeSource())

	for _, limit := range []string{"abc", "0", "-3", "1.5"} {
		w := httptest.NewRecorder()
		h.SearchBills(w, httptest.NewRequest(http.MethodGet, "/search/bills?q=ab&limit="+limit, nil))

		if w.Code != http.StatusBadRequest {
			t.Errorf("limit=%s: status = %d, want 400", limit, w.Code)
			continue
		}
		var resp ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if resp.Error.Code != ErrCodeValidation {
			t.Errorf("limit=%s: code = %q", limit, resp.Error.Code)
		}
	}
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"", DefaultSearchLimit},
		{"1", 1},
		{"50", 50},
		{"51", MaxSearchLimit},
		{"1000", MaxSearchLimit},
	}
	for _, tt := range tests {
		got, err := parseLimit(tt.raw)
		if err != nil {
			t.Errorf("parseLimit(%q) error = %v", tt.raw, err)
		}
		if got != tt.want {
			t.Errorf("parseLimit(%q) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}

func TestSearch_CBOR(t *testing.T) {
	h := newSearchHandlers(t, newFakeSource())

	req := httptest.NewRequest(http.MethodGet, "/search/bills?q=energy", nil)
	req.Header.Set("Accept", "application/cbor, application/json;q=0.5")
	w := httptest.NewRecorder()
	h.SearchBills(w, req)

	if ct := w.Header().Get("Content-Type"); ct != "application/cbor" {
		t.Fatalf("Content-Type = %q", ct)
	}
	var resp billResults
	if err := cbor.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode cbor: %v", err)
	}
	if resp.Count != 1 || resp.Results[0].Measure != "SBX1-3" || resp.Query != "energy" {
		t.Errorf("results = %+v", resp)
	}
}

func TestWantsCBOR(t *testing.T) {
	tests := []struct {
		accept string
		want   bool
	}{
		{"", false},
		{"application/json", false},
		{"application/cbor", true},
		{"text/html, application/cbor;q=0.9", true},
		{"application/cbor;q=0", false},
		{"application/cbor;q=0.0", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Accept", tt.accept)
		if got := wantsCBOR(req); got != tt.want {
			t.Errorf("wantsCBOR(%q) = %v, want %v", tt.accept, got, tt.want)
		}
	}
}

func TestSearch_Errors(t *testing.T) {
	failing := search.MatcherFunc(func(string, string) (float64, bool, error) {
		return 0, false, errors.New("matcher broke")
	})

	tests := []struct {
		name    string
		handler *SearchHandlers
	}{
		{"catalog error", newSearchHandlers(t, &fakeSource{catalogErr: errors.New("disk gone")})},
		{"matcher error", NewSearchHandlers(newFakeSource(), failing, nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.handler.SearchLegislators(w, httptest.NewRequest(http.MethodGet, "/search/legislators?q=doe", nil))
			if w.Code != http.StatusInternalServerError {
				t.Errorf("status = %d, want 500", w.Code)
			}
		})
	}
}

func TestSearch_UnknownKind(t *testing.T) {
	h := newSearchHandlers(t, newFakeSource())
	if _, _, err := h.Search(t.Context(), "motions", "x", 5); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("error = %v, want ErrUnknownKind", err)
	}
}

func TestSearch_RecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := search.NewMetrics()
	if err := metrics.Register(reg); err != nil {
		t.Fatal(err)
	}
	matcher, err := search.NewMatcher(search.MatcherFuzzy, false)
	if err != nil {
		t.Fatal(err)
	}
	h := NewSearchHandlers(newFakeSource(), matcher, metrics)

	h.SearchBills(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/search/bills?q=ab", nil))
	h.SearchLegislators(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/search/legislators?q=jane", nil))

	n, err := testutil.GatherAndCount(reg, search.MetricCandidates)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("got %d candidate series, want one per kind", n)
	}
}
