package audit

import "time"

// Event is an immutable, append-only audit record of something that happened
// at a desk.
//
// Invariants:
// - Events are never updated or deleted.
// - agent_id is required; every desk action belongs to one agent.
// - Audit is best-effort; a failed append never blocks a call.
//
// Storage (Postgres): table call_audit_events with an INSERT-only policy.
type Event struct {
	ID      string    `json:"id" db:"id"`
	AgentID string    `json:"agent_id" db:"agent_id"`
	Type    EventType `json:"type" db:"type"`

	// SessionID is empty for events not tied to a call.
	SessionID string `json:"session_id,omitempty" db:"session_id"`
	FromState string `json:"from_state,omitempty" db:"from_state"`
	ToState   string `json:"to_state,omitempty" db:"to_state"`
	Cause     string `json:"cause,omitempty" db:"cause"`
	Version   int64  `json:"version,omitempty" db:"version"`

	// Message is a short human-readable description for supervisors.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeTransition      EventType = "call_transition"
	EventTypeCallUpdated     EventType = "call_updated"
	EventTypeCallRecovered   EventType = "call_recovered"
	EventTypeWrapUpCompleted EventType = "wrapup_completed"
	EventTypeWrapUpAbandoned EventType = "wrapup_abandoned"
	EventTypeMissedCleared   EventType = "missed_cleared"
)
