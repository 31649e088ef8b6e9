package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{path: "/", want: "/"},
		{path: "/search/legislators", want: "/search/legislators"},
		{path: "/search/bills", want: "/search/bills"},
		{path: "/search/ws", want: "/search/ws"},
		{path: "/layout", want: "/layout"},
		{path: "/metrics", want: "/metrics"},
		{path: "/legislators/Wood/votes", want: "/legislators/{author}/votes"},
		{path: "/legislators/Bauer-Kahan/votes", want: "/legislators/{author}/votes"},
		{path: "/legislators//votes", want: otherPath},
		{path: "/legislators/Wood", want: otherPath},
		{path: "/legislators/Wood/votes/extra", want: otherPath},
		{path: "/wp-admin/install.php", want: otherPath},
		{path: "/search/bills/", want: otherPath},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := normalizePath(tt.path); got != tt.want {
				t.Errorf("normalizePath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestHTTPMetrics(t *testing.T) {
	tests := []struct {
		name        string
		path        string
		status      int
		body        string
		wantPath    string
		wantMetrics bool
	}{
		{name: "search", path: "/search/bills?q=ab", status: http.StatusOK, body: `{"results":[]}`, wantPath: "/search/bills", wantMetrics: true},
		{name: "votes", path: "/legislators/Wood/votes", status: http.StatusOK, body: `{}`, wantPath: "/legislators/{author}/votes", wantMetrics: true},
		{name: "not found", path: "/nope", status: http.StatusNotFound, body: `{"error":{}}`, wantPath: otherPath, wantMetrics: true},
		{name: "health excluded", path: "/health", status: http.StatusOK, body: `{"status":"up"}`, wantMetrics: false},
		{name: "ready excluded", path: "/ready", status: http.StatusServiceUnavailable, body: `{}`, wantMetrics: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := NewMetrics()
			reg := prometheus.NewRegistry()
			if err := metrics.Register(reg); err != nil {
				t.Fatalf("Register() error = %v", err)
			}

			handler := HTTPMetrics(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.path, nil))

			total := testutil.CollectAndCount(metrics.httpRequestsTotal)
			if !tt.wantMetrics {
				if total != 0 {
					t.Errorf("recorded %d series for an excluded path", total)
				}
				return
			}

			got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues(http.MethodGet, tt.wantPath, strconv.Itoa(tt.status)))
			if got != 1 {
				t.Errorf("%s{path=%q} = %v, want 1", MetricHTTPRequestsTotal, tt.wantPath, got)
			}

			families, err := reg.Gather()
			if err != nil {
				t.Fatalf("Gather() error = %v", err)
			}
			size := findHistogram(families, MetricHTTPResponseSizeBytes)
			if size == nil {
				t.Fatalf("%s not gathered", MetricHTTPResponseSizeBytes)
			}
			if size.GetSampleSum() != float64(len(tt.body)) {
				t.Errorf("response size sum = %v, want %d", size.GetSampleSum(), len(tt.body))
			}
		})
	}
}

func findHistogram(families []*dto.MetricFamily, name string) *dto.Histogram {
	for _, f := range families {
		if f.GetName() == name && len(f.GetMetric()) > 0 {
			return f.GetMetric()[0].GetHistogram()
		}
	}
	return nil
}
