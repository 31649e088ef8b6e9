package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/gorilla/websocket"

	"github.com/onnwee/legvotes/internal/middleware"
)

const (
	// maxLiveSearchMessage bounds one client message.
	maxLiveSearchMessage = 4096
	// liveSearchWriteWait bounds writing one reply.
	liveSearchWriteWait = 10 * time.Second
	// liveSearchIdle closes connections that send nothing for this long.
	liveSearchIdle = 5 * time.Minute
)

// LiveSearchRequest is one keystroke's query. Seq is echoed back so the
// client can drop replies to superseded queries.
type LiveSearchRequest struct {
	Kind  string `json:"kind"`
	Query string `json:"query"`
	Seq   int64  `json:"seq"`
	Limit int    `json:"limit,omitempty"`
}

// LiveSearchResult answers one LiveSearchRequest.
type LiveSearchResult struct {
	Seq     int64 `json:"seq"`
	Results any   `json:"results"`
	Count   int   `json:"count"`
}

// LiveSearchError reports a request that could not be answered. The
// connection stays open.
type LiveSearchError struct {
	Seq   int64       `json:"seq"`
	Error ErrorDetail `json:"error"`
}

// LiveSearchHandlers serves ranking over a WebSocket so clients can search
// as the user types without a request per keystroke.
type LiveSearchHandlers struct {
	search   *SearchHandlers
	upgrader websocket.Upgrader
}

// NewLiveSearchHandlers creates LiveSearchHandlers. Browsers may connect from
// the API's own origin or from any of allowedOrigins; "*" allows all.
func NewLiveSearchHandlers(search *SearchHandlers, allowedOrigins []string) *LiveSearchHandlers {
	return &LiveSearchHandlers{
		search: search,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
	}
}

func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if slices.Contains(allowed, "*") || slices.Contains(allowed, origin) {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	}
}

// Serve handles GET /search/ws.
func (h *LiveSearchHandlers) Serve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written an error response.
		slog.WarnContext(ctx, "failed to upgrade websocket connection", "error", err)
		return
	}
	defer conn.Close()

	requestID := middleware.GetRequestID(ctx)
	slog.DebugContext(ctx, "live search connected", "request_id", requestID)

	conn.SetReadLimit(maxLiveSearchMessage)
	for {
		_ = conn.SetReadDeadline(time.Now().Add(liveSearchIdle))
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.WarnContext(ctx, "live search connection closed unexpectedly",
					"error", err,
					"request_id", requestID,
				)
			}
			return
		}

		if err := conn.SetWriteDeadline(time.Now().Add(liveSearchWriteWait)); err != nil {
			return
		}
		if err := conn.WriteJSON(h.answer(r, data)); err != nil {
			slog.WarnContext(ctx, "failed to write live search reply", "error", err, "request_id", requestID)
			return
		}
	}
}

// answer ranks one message. Every message is independent of the ones before.
func (h *LiveSearchHandlers) answer(r *http.Request, data []byte) any {
	var req LiveSearchRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return liveSearchError(0, ErrCodeBadRequest, "Message must be a JSON search request")
	}

	limit := req.Limit
	switch {
	case limit == 0:
		limit = DefaultSearchLimit
	case limit < 0:
		return liveSearchError(req.Seq, ErrCodeValidation, "limit must be a positive integer")
	default:
		limit = min(limit, MaxSearchLimit)
	}

	results, count, err := h.search.Search(r.Context(), req.Kind, req.Query, limit)
	switch {
	case errors.Is(err, ErrUnknownKind):
		return liveSearchError(req.Seq, ErrCodeUnknownKind, err.Error())
	case err != nil:
		slog.ErrorContext(r.Context(), "live search failed", "kind", req.Kind, "error", err)
		return liveSearchError(req.Seq, ErrCodeInternal, "Search failed")
	}
	return LiveSearchResult{Seq: req.Seq, Results: results, Count: count}
}

func liveSearchError(seq int64, code, message string) LiveSearchError {
	return LiveSearchError{Seq: seq, Error: ErrorDetail{Code: code, Message: message}}
}
