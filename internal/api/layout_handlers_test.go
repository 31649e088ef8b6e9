package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/onnwee/legvotes/internal/page"
)

func TestLayout(t *testing.T) {
	for _, prerender := range []bool{true, false} {
		provider := page.NewLayoutProvider(func() time.Time { return fixedNow }, prerender)
		w := httptest.NewRecorder()
		NewLayoutHandlers(provider).Layout(w, httptest.NewRequest(http.MethodGet, "/layout", nil))

		if w.Code != http.StatusOK {
			t.Fatalf("prerender=%v: status = %d", prerender, w.Code)
		}
		wantHeader := "false"
		if prerender {
			wantHeader = "true"
		}
		if got := w.Header().Get(PrerenderedHeader); got != wantHeader {
			t.Errorf("prerender=%v: %s = %q", prerender, PrerenderedHeader, got)
		}
		var data page.LayoutData
		if err := json.Unmarshal(w.Body.Bytes(), &data); err != nil {
			t.Fatal(err)
		}
		if data.CurrentTime != page.FormatTime(fixedNow) {
			t.Errorf("currentTime = %q", data.CurrentTime)
		}
	}
}

func TestLayout_SnapshotIsStable(t *testing.T) {
	now := fixedNow
	provider := page.NewLayoutProvider(func() time.Time { return now }, true)
	if _, err := provider.Build(context.Background()); err != nil {
		t.Fatal(err)
	}
	now = now.Add(time.Hour)

	w := httptest.NewRecorder()
	NewLayoutHandlers(provider).Layout(w, httptest.NewRequest(http.MethodGet, "/layout", nil))

	var data page.LayoutData
	if err := json.Unmarshal(w.Body.Bytes(), &data); err != nil {
		t.Fatal(err)
	}
	if data.CurrentTime != page.FormatTime(fixedNow) {
		t.Errorf("currentTime = %q, want the build time", data.CurrentTime)
	}
}

func TestLayout_LoaderError(t *testing.T) {
	loader := page.LoaderFunc[page.LayoutData](func(context.Context) (page.LayoutData, error) {
		return page.LayoutData{}, errors.New("clock unavailable")
	})
	w := httptest.NewRecorder()
	NewLayoutHandlers(page.NewProvider[page.LayoutData](loader, false)).Layout(w, httptest.NewRequest(http.MethodGet, "/layout", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}
