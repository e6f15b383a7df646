// Package admin exposes the poller's operational HTTP API: inspecting the
// persisted poll state and triggering an out-of-band poll invocation.
package admin

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/priyadesai-k/sharded-stream-poller/internal/engine"
	"github.com/priyadesai-k/sharded-stream-poller/internal/state"
	perrors "github.com/priyadesai-k/sharded-stream-poller/pkg/errors"
)

// Poller is the engine surface the manual-trigger endpoint drives.
type Poller interface {
	Poll(ctx context.Context) (*engine.Batch, error)
}

// Handler serves the admin API.
type Handler struct {
	poller      Poller
	store       state.Store
	consumerKey string
	logger      *slog.Logger
}

// NewHandler creates an admin Handler.
func NewHandler(poller Poller, store state.Store, consumerKey string) *Handler {
	return &Handler{
		poller:      poller,
		store:       store,
		consumerKey: consumerKey,
		logger:      slog.Default().With("component", "admin-api"),
	}
}

// stateResponse is the wire shape of GET /api/v1/state.
type stateResponse struct {
	ConsumerKey         string            `json:"consumer_key"`
	Cursors             map[string]string `json:"cursors"`
	ShardCount          int               `json:"shard_count"`
	LastTopologyRefresh time.Time         `json:"last_topology_refresh"`
	RoundRobinIndex     int               `json:"round_robin_index"`
}

// State returns the persisted poll state for this consumer.
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	st, err := h.store.Load(r.Context(), h.consumerKey)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stateResponse{
		ConsumerKey:         h.consumerKey,
		Cursors:             st.Cursors,
		ShardCount:          len(st.Cursors),
		LastTopologyRefresh: st.LastTopologyRefresh,
		RoundRobinIndex:     st.RoundRobinIndex,
	})
}

// pollResponse is the wire shape of POST /api/v1/poll.
type pollResponse struct {
	Records int  `json:"records"`
	NoData  bool `json:"no_data"`
}

// TriggerPoll runs one poll invocation on demand. Intended for debugging;
// the caller must respect the single-invocation precondition and pause the
// runner (or accept the risk) before using this against a live consumer.
func (h *Handler) TriggerPoll(w http.ResponseWriter, r *http.Request) {
	batch, err := h.poller.Poll(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if batch == nil {
		h.writeJSON(w, http.StatusOK, pollResponse{NoData: true})
		return
	}
	h.writeJSON(w, http.StatusOK, pollResponse{Records: len(batch.Records)})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	h.logger.Error("request failed", "error", err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(perrors.HTTPStatusCode(err))
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
