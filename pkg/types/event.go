package types

import "time"

type EventType string

const (
	EventStateChange EventType = "StateChange"
	EventSample      EventType = "Sample"
	EventRestart     EventType = "Restart"
)

// DetailStage is the Details key holding the connection stage number of a
// StateChange event.
const DetailStage = "stage"

type Event struct {
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"ts"`
	RunID     string         `json:"run_id,omitempty"`
	State     string         `json:"state,omitempty"`
	Phase     string         `json:"phase,omitempty"`
	Sample    *Sample        `json:"sample,omitempty"`
	Error     string         `json:"error,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}
