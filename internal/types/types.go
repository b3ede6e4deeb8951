package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Agent status values reported by the call-center module
const (
	StatusAvailable         = "Available"
	StatusAvailableOnDemand = "Available (On Demand)"
	StatusOnBreak           = "On Break"
	StatusLoggedOut         = "Logged Out"
)

// Agent state values reported by the call-center module
const (
	StateIdle         = "Idle"
	StateWaiting      = "Waiting"
	StateReceiving    = "Receiving"
	StateInAQueueCall = "In a queue call"
)

// NotApplicable marks a metric that has no value in the agent's current state
const NotApplicable = "-"

// QueueMetrics is the per-queue row of the realtime queue snapshot
type QueueMetrics struct {
	Name         string  `json:"Name"`
	Online       int     `json:"Online"`
	InaQueueCall int     `json:"InaQueueCall"`
	OnBreak      int     `json:"OnBreak"`
	ACW          int     `json:"ACW"`
	LoggedOut    int     `json:"LoggedOut"`
	Available    int     `json:"Available"`
	Idle         int     `json:"Idle"`
	Waiting      int     `json:"Waiting"`
	Receiving    int     `json:"Receiving"`
	Handled      int     `json:"Handled"`
	Abandoned    int     `json:"Abandoned"`
	AHT          string  `json:"AHT"`  // HH:MM:SS
	SL60         float64 `json:"SL60"` // 0-100, two decimals
}

// AgentMetrics is the per-agent row of the realtime agent snapshot
type AgentMetrics struct {
	Name                 string         `json:"Name"`
	Type                 string         `json:"Type"`
	Status               string         `json:"Status"`
	StatusDuration       StatusDuration `json:"Statusduration"`
	Capacity             int            `json:"Capacity"`
	Availability         int            `json:"Availability"`
	ContactState         string         `json:"contact_state"`
	ContactStateDuration string         `json:"Contact_state_Duration"`
	Queue                string         `json:"Queue"`
	ACW                  string         `json:"ACW"`
	AgentNonResponse     string         `json:"Agent_non_response"`
	CallsHandled         string         `json:"Calls_handled"`
	LCHT                 string         `json:"LCHT"`
	Level                string         `json:"Level"`
	Position             string         `json:"Position"`
}

// StatusDuration is the time since an agent's last status change. The zero
// value means the switch never recorded a change and encodes as the number 0,
// which is what dashboards expect; set values encode as "HH:MM:SS".
type StatusDuration string

// StatusDurationUnset is the marker for an agent without a status change
const StatusDurationUnset StatusDuration = ""

// IsSet reports whether a duration is present.
func (d StatusDuration) IsSet() bool {
	return d != StatusDurationUnset
}

func (d StatusDuration) MarshalJSON() ([]byte, error) {
	if !d.IsSet() {
		return []byte("0"), nil
	}
	return json.Marshal(string(d))
}

func (d *StatusDuration) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("0")) || bytes.Equal(data, []byte("null")) {
		*d = StatusDurationUnset
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid Statusduration %s: %w", data, err)
	}
	*d = StatusDuration(s)
	return nil
}

// Snapshot is the outcome of one poll cycle
type Snapshot struct {
	ID         string         `json:"id"`
	CapturedAt time.Time      `json:"capturedAt"`
	Queues     []QueueMetrics `json:"queues"`
	Agents     []AgentMetrics `json:"agents"`
}

// SnapshotMessage is the envelope pushed to live subscribers
type SnapshotMessage struct {
	Type       string         `json:"type"` // always "snapshot"
	ID         string         `json:"id"`
	CapturedAt time.Time      `json:"capturedAt"`
	Queues     []QueueMetrics `json:"queues,omitempty"`
	Agents     []AgentMetrics `json:"agents,omitempty"`
}

// NewSnapshotMessage wraps a snapshot for live subscribers
func NewSnapshotMessage(snap Snapshot) SnapshotMessage {
	return SnapshotMessage{
		Type:       "snapshot",
		ID:         snap.ID,
		CapturedAt: snap.CapturedAt,
		Queues:     snap.Queues,
		Agents:     snap.Agents,
	}
}
