package reporting

import (
	"context"
	"errors"
	"time"

	"collections-dialer/internal/calls"
	"collections-dialer/internal/history"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository abstracts data access for reporting.
//
// IMPORTANT:
// - Methods must filter by agent.
// - Entries are the visible history: at most one entry per session.
type Repository interface {
	ListEntries(ctx context.Context, agentID string, from, to time.Time) ([]history.Entry, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

func (s *Service) Summary(ctx context.Context, req SummaryRequest) (Summary, error) {
	if req.AgentID == "" {
		return Summary{}, ErrInvalidRequest
	}
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return Summary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return Summary{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListEntries(ctx, req.AgentID, req.Range.From, req.Range.To)
	if err != nil {
		return Summary{}, err
	}

	out := Summary{AgentID: req.AgentID, Range: req.Range, Outcomes: map[calls.Outcome]int{}}
	var talk time.Duration
	promises := 0
	for _, e := range rows {
		out.TotalCalls++
		out.Outcomes[e.Outcome]++
		switch e.Direction {
		case calls.DirectionOutgoing:
			out.OutgoingCalls++
		case calls.DirectionIncoming:
			out.IncomingCalls++
		}

		switch {
		case e.Outcome.IsDisposition():
			out.ConnectedCalls++
			talk += e.Duration
		case e.Outcome == calls.OutcomePending:
			out.ConnectedCalls++
			out.PendingWrapUps++
			talk += e.Duration
		case e.Outcome == calls.OutcomeAbandoned:
			out.ConnectedCalls++
			out.AbandonedCalls++
			talk += e.Duration
		case e.Outcome == calls.OutcomeNoAnswer:
			out.NoAnswerCalls++
		case e.Outcome == calls.OutcomeMissed:
			out.MissedCalls++
		case e.Outcome == calls.OutcomeRejected:
			out.RejectedCalls++
		}

		switch e.Outcome {
		case calls.OutcomePromiseToPay, calls.OutcomePaymentMade:
			promises++
		case calls.OutcomeCallbackRequested:
			out.CallbacksScheduled++
		}
	}

	out.TotalTalkSeconds = int(talk / time.Second)
	if out.ConnectedCalls > 0 {
		out.AverageTalkSeconds = out.TotalTalkSeconds / out.ConnectedCalls
		out.PromiseRate = float64(promises) / float64(out.ConnectedCalls)
	}
	if out.TotalCalls > 0 {
		out.ConnectionRate = float64(out.ConnectedCalls) / float64(out.TotalCalls)
	}
	return out, nil
}
