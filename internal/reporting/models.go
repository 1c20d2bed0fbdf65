package reporting

import (
	"time"

	"collections-dialer/internal/calls"
)

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// SummaryRequest asks for one agent's call figures over a range.
type SummaryRequest struct {
	AgentID string    `json:"agent_id"`
	Range   TimeRange `json:"range"`
}

type Summary struct {
	AgentID string    `json:"agent_id"`
	Range   TimeRange `json:"range"`

	TotalCalls    int `json:"total_calls"`
	OutgoingCalls int `json:"outgoing_calls"`
	IncomingCalls int `json:"incoming_calls"`

	ConnectedCalls int `json:"connected_calls"`
	NoAnswerCalls  int `json:"no_answer_calls"`
	MissedCalls    int `json:"missed_calls"`
	RejectedCalls  int `json:"rejected_calls"`
	AbandonedCalls int `json:"abandoned_wrapups"`
	PendingWrapUps int `json:"pending_wrapups"`

	Outcomes map[calls.Outcome]int `json:"outcomes"`

	TotalTalkSeconds   int `json:"total_talk_seconds"`
	AverageTalkSeconds int `json:"average_talk_seconds"`

	ConnectionRate float64 `json:"connection_rate"`
	// PromiseRate is promises and payments over connected calls.
	PromiseRate float64 `json:"promise_rate"`

	CallbacksScheduled int `json:"callbacks_scheduled"`
}
