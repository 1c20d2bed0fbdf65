package wrapup

import (
	"context"
	"time"

	"collections-dialer/internal/calls"
)

// Record is the durable disposition of one connected call.
// ID equals the session id so repeated saves of the same wrap-up collapse.
type Record struct {
	ID              string          `json:"id" db:"id"`
	AgentID         string          `json:"agent_id" db:"agent_id"`
	PhoneNumber     string          `json:"phone_number" db:"phone_number"`
	CounterpartName string          `json:"counterpart_name,omitempty" db:"counterpart_name"`
	Direction       calls.Direction `json:"direction" db:"direction"`

	SessionStart time.Time     `json:"session_start" db:"session_start"`
	SessionEnd   time.Time     `json:"session_end" db:"session_end"`
	Duration     time.Duration `json:"duration" db:"duration_ms"`

	Outcome      calls.Outcome `json:"outcome" db:"outcome"`
	Notes        string        `json:"notes,omitempty" db:"notes"`
	CallbackDate *time.Time    `json:"callback_date,omitempty" db:"callback_date"`
	AccountRef   string        `json:"account_ref,omitempty" db:"account_ref"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Request is what the operator submits at the end of a call.
type Request struct {
	Session      calls.Session
	Outcome      calls.Outcome
	Notes        string
	CallbackDate *time.Time
	AccountRef   string
}

// Store persists wrap-up records. Save must be idempotent per Record.ID.
type Store interface {
	Save(ctx context.Context, r Record) error
}

// CallbackSource lists callback_requested records due before a moment.
type CallbackSource interface {
	ListDueCallbacks(ctx context.Context, before time.Time, limit int) ([]Record, error)
}
