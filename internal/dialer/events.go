package dialer

import (
	"time"

	"collections-dialer/internal/calls"
	"collections-dialer/internal/heuristics"
)

type EventKind string

const (
	EventTransition      EventKind = "transition"
	EventUpdated         EventKind = "updated"
	EventRecovered       EventKind = "recovered"
	EventWrapUpCompleted EventKind = "wrapup_completed"
	EventWrapUpAbandoned EventKind = "wrapup_abandoned"
)

// Causes attached to events.
const (
	CauseOperator     = "operator"
	CauseSoftphone    = "softphone"
	CauseLaunchFailed = "launch_failed"
	CauseCollaborator = "collaborator"
	CauseCustomer     = "customer_resolved"
	CauseRecovered    = "recovered"
)

// HeuristicCause is the cause recorded when a heuristic drove a transition.
func HeuristicCause(k heuristics.Kind) string { return "heuristic:" + string(k) }

// Event is published after every controller change, in version order.
// Session is a snapshot taken right after the change.
type Event struct {
	Kind    EventKind     `json:"kind"`
	AgentID string        `json:"agent_id"`
	Session calls.Session `json:"session"`
	From    calls.State   `json:"from"`
	To      calls.State   `json:"to"`
	Cause   string        `json:"cause,omitempty"`
	At      time.Time     `json:"at"`
}
