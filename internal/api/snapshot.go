package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/dennisdiepolder/monti/rtmetrics/internal/cache"
	"github.com/dennisdiepolder/monti/rtmetrics/internal/publisher"
	"github.com/dennisdiepolder/monti/rtmetrics/internal/storage"
	"github.com/dennisdiepolder/monti/rtmetrics/internal/types"
	"github.com/rs/zerolog"
)

// Response headers describing the served snapshot
const (
	HeaderSnapshotID = "X-Snapshot-Id"
	HeaderCapturedAt = "X-Captured-At"
)

// SnapshotHandler serves the last published snapshot, from memory when the
// process has published one, otherwise from the store
type SnapshotHandler struct {
	cache  *cache.SnapshotCache
	store  storage.Store
	keys   publisher.Keys
	logger zerolog.Logger
}

// NewSnapshotHandler creates a new SnapshotHandler
func NewSnapshotHandler(c *cache.SnapshotCache, store storage.Store, keys publisher.Keys, logger zerolog.Logger) *SnapshotHandler {
	return &SnapshotHandler{
		cache:  c,
		store:  store,
		keys:   keys,
		logger: logger.With().Str("component", "api").Logger(),
	}
}

// HandleQueues handles GET /api/snapshot/queues
func (h *SnapshotHandler) HandleQueues(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	writeSnapshot(w, snap, snap.Queues)
}

// HandleAgents handles GET /api/snapshot/agents
func (h *SnapshotHandler) HandleAgents(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	writeSnapshot(w, snap, snap.Agents)
}

// snapshot writes the error response itself when no snapshot is available.
func (h *SnapshotHandler) snapshot(w http.ResponseWriter, r *http.Request) (types.Snapshot, bool) {
	if snap, ok := h.cache.Latest(); ok {
		return snap, true
	}

	snap, err := publisher.Load(r.Context(), h.store, h.keys)
	switch {
	case err == nil:
		return snap, true
	case errors.Is(err, storage.ErrNotFound):
		http.Error(w, "no snapshot published yet", http.StatusNotFound)
	default:
		h.logger.Error().Err(err).Msg("failed to load snapshot from store")
		http.Error(w, "snapshot store unavailable", http.StatusServiceUnavailable)
	}
	return types.Snapshot{}, false
}

func writeSnapshot[T any](w http.ResponseWriter, snap types.Snapshot, list []T) {
	if list == nil {
		list = []T{}
	}
	if snap.ID != "" {
		w.Header().Set(HeaderSnapshotID, snap.ID)
	}
	if !snap.CapturedAt.IsZero() {
		w.Header().Set(HeaderCapturedAt, snap.CapturedAt.UTC().Format(time.RFC3339))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(list)
}
