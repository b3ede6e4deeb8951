package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/dennisdiepolder/monti/rtmetrics/internal/esl"
	"github.com/dennisdiepolder/monti/rtmetrics/internal/poller"
)

// CycleReporter exposes the outcome of the most recent poll cycle
type CycleReporter interface {
	LastCycle() (poller.Status, bool)
}

// ConnectionState exposes the switch connection state
type ConnectionState interface {
	State() esl.State
}

// SnapshotAge exposes how old the latest published snapshot is
type SnapshotAge interface {
	Age(now time.Time) (time.Duration, bool)
}

// Health status values
const (
	StatusOK       = "ok"
	StatusStarting = "starting"
	StatusDegraded = "degraded"
)

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status             string     `json:"status"`
	Service            string     `json:"service"`
	ESLState           string     `json:"esl_state"`
	LastCycle          *CycleInfo `json:"last_cycle,omitempty"`
	SnapshotAgeSeconds *int64     `json:"snapshot_age_seconds,omitempty"`
}

// CycleInfo summarizes one poll cycle
type CycleInfo struct {
	SnapshotID string    `json:"snapshot_id"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
}

// HealthHandler reports liveness plus the poller's view of the switch. It
// always answers 200; a failing switch shows up as "degraded".
type HealthHandler struct {
	service   string
	cycles    CycleReporter
	conn      ConnectionState
	snapshots SnapshotAge
	now       func() time.Time
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(service string, cycles CycleReporter, conn ConnectionState, snapshots SnapshotAge) *HealthHandler {
	return &HealthHandler{
		service:   service,
		cycles:    cycles,
		conn:      conn,
		snapshots: snapshots,
		now:       time.Now,
	}
}

// ServeHTTP handles GET /health
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:   StatusStarting,
		Service:  h.service,
		ESLState: h.conn.State().String(),
	}

	if status, ok := h.cycles.LastCycle(); ok {
		resp.Status = StatusOK
		resp.LastCycle = &CycleInfo{
			SnapshotID: status.SnapshotID,
			StartedAt:  status.StartedAt.UTC(),
			DurationMS: status.Duration.Milliseconds(),
		}
		if status.Err != nil {
			resp.Status = StatusDegraded
			resp.LastCycle.Error = status.Err.Error()
		}
	}

	if age, ok := h.snapshots.Age(h.now()); ok {
		seconds := int64(age / time.Second)
		resp.SnapshotAgeSeconds = &seconds
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}
