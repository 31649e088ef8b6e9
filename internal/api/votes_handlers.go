package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/onnwee/legvotes/internal/legdata"
)

// VotesHandlers serves per-legislator vote histories.
type VotesHandlers struct {
	source legdata.Source
}

// NewVotesHandlers creates a new VotesHandlers instance.
func NewVotesHandlers(source legdata.Source) *VotesHandlers {
	return &VotesHandlers{source: source}
}

// Votes handles GET /legislators/{author}/votes. The body is an object keyed
// by bill ID, most recently voted bill first.
func (h *VotesHandlers) Votes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	author := r.PathValue("author")

	if err := legdata.ValidateAuthor(author); err != nil {
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "Invalid legislator name")
		return
	}

	bills, err := h.source.Votes(ctx, author)
	if err != nil {
		switch {
		case errors.Is(err, legdata.ErrNotFound):
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Legislator not found")
		case errors.Is(err, legdata.ErrInvalidAuthor):
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "Invalid legislator name")
		default:
			slog.ErrorContext(ctx, "failed to load votes", "author", author, "error", err)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load votes")
		}
		return
	}

	data, err := legdata.MarshalVotes(bills)
	if err != nil {
		slog.ErrorContext(ctx, "failed to encode votes", "author", author, "error", err)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load votes")
		return
	}

	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
