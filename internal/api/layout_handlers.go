package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/onnwee/legvotes/internal/page"
)

// PrerenderedHeader tells the client whether the layout data came from a
// build-time snapshot.
const PrerenderedHeader = "X-Prerendered"

// LayoutHandlers serves the root layout's bootstrap data.
type LayoutHandlers struct {
	provider *page.Provider[page.LayoutData]
}

// NewLayoutHandlers creates a new LayoutHandlers instance.
func NewLayoutHandlers(provider *page.Provider[page.LayoutData]) *LayoutHandlers {
	return &LayoutHandlers{provider: provider}
}

// Layout handles GET /layout.
func (h *LayoutHandlers) Layout(w http.ResponseWriter, r *http.Request) {
	data, err := h.provider.Data(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to load layout data", "error", err)
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Failed to load page data")
		return
	}

	w.Header().Set(PrerenderedHeader, strconv.FormatBool(h.provider.Prerender()))
	writeResponse(w, r, http.StatusOK, data)
}
