package calls

import (
	"time"

	"github.com/google/uuid"
)

// SessionID identifies one call attempt. It is created at dial or ring time.
type SessionID string

func NewSessionID() SessionID { return SessionID(uuid.NewString()) }

type Direction string

const (
	DirectionOutgoing Direction = "outgoing"
	DirectionIncoming Direction = "incoming"
)

// CustomerRef is a weak reference to an external customer record.
// It is only displayed and recorded, never dereferenced.
type CustomerRef struct {
	ID          string `json:"id,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

func (r *CustomerRef) IsZero() bool { return r == nil || (r.ID == "" && r.DisplayName == "") }

// Session is the live state of one call.
//
// Invariants:
// - ConnectedAt >= StartedAt and EndedAt >= ConnectedAt when both are set.
// - Muted and SpeakerOn are only meaningful while State == StateConnected.
// - Version increases by one on every transition; checkpoints use it for ordering.
type Session struct {
	ID          SessionID    `json:"id"`
	AgentID     string       `json:"agent_id,omitempty"`
	Direction   Direction    `json:"direction"`
	PhoneNumber string       `json:"phone_number"`
	Customer    *CustomerRef `json:"customer,omitempty"`

	State   State   `json:"state"`
	Outcome Outcome `json:"outcome,omitempty"`

	StartedAt   time.Time  `json:"started_at"`
	ConnectedAt *time.Time `json:"connected_at,omitempty"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`

	Muted     bool `json:"muted"`
	SpeakerOn bool `json:"speaker_on"`

	FailureReason string `json:"failure_reason,omitempty"`
	Version       int64  `json:"version"`
}

// Clone returns a deep copy safe to hand to observers.
func (s Session) Clone() Session {
	out := s
	if s.Customer != nil {
		c := *s.Customer
		out.Customer = &c
	}
	if s.ConnectedAt != nil {
		t := *s.ConnectedAt
		out.ConnectedAt = &t
	}
	if s.EndedAt != nil {
		t := *s.EndedAt
		out.EndedAt = &t
	}
	return out
}

// TalkDuration is EndedAt - ConnectedAt, or zero if the call never connected or is still live.
func (s Session) TalkDuration() time.Duration {
	if s.ConnectedAt == nil || s.EndedAt == nil {
		return 0
	}
	d := s.EndedAt.Sub(*s.ConnectedAt)
	if d < 0 {
		return 0
	}
	return d
}

// CounterpartName is the best display name for the other party.
func (s Session) CounterpartName() string {
	if s.Customer != nil && s.Customer.DisplayName != "" {
		return s.Customer.DisplayName
	}
	return s.PhoneNumber
}
