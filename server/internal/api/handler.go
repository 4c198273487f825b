package api

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ragchat/answerrelay/pkg/relay"
	"github.com/ragchat/answerrelay/server/internal/httpx"
	"github.com/ragchat/answerrelay/server/internal/metrics"
	"github.com/ragchat/answerrelay/server/internal/store"
)

const pollPrefix = "/poll/"

// Handler is the HTTP handler for the poll and health endpoints.
type Handler struct {
	store *store.Store
	rec   *metrics.Recorder
	mux   *http.ServeMux
}

// New creates a Handler wired to the given answer store and registers all routes.
func New(st *store.Store, rec *metrics.Recorder) http.Handler {
	h := &Handler{store: st, rec: rec, mux: http.NewServeMux()}

	h.mux.HandleFunc("/health", h.health)
	h.mux.HandleFunc(pollPrefix, h.poll) // subtree — extracts {userId}

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// health returns GET /health.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.Error(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	httpx.JSON(w, http.StatusOK, BuildHealth(h.store))
}

// poll returns GET /poll/{userId} and claims the answer if one is pending.
func (h *Handler) poll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.Error(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	// The escaped form keeps %2F intact, so ids containing "/" round-trip.
	userID, err := url.PathUnescape(strings.TrimPrefix(r.URL.EscapedPath(), pollPrefix))
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid user id encoding")
		return
	}
	if userID == "" {
		httpx.Error(w, http.StatusBadRequest, "user id is required")
		return
	}

	e, ok := h.store.Take(userID)
	h.rec.Poll(ok)
	if !ok {
		httpx.JSON(w, http.StatusOK, relay.PollResponse{Status: relay.StatusNoMessages})
		return
	}

	httpx.Logger(r.Context()).Info("api: delivering answer", "user_id", userID)
	httpx.JSON(w, http.StatusOK, e.ToAnswer())
}

// BuildHealth assembles the health payload from the current store state.
func BuildHealth(st *store.Store) relay.HealthResponse {
	return relay.HealthResponse{
		Status:          relay.StatusHealthy,
		Timestamp:       time.Now().UTC().Format(relay.TimeFormat),
		StoredResponses: st.Count(),
	}
}
