package reporting

import (
	"context"
	"errors"
	"time"

	"collections-dialer/internal/dialer"
	"collections-dialer/internal/history"
)

// DeskRepo reads the live call history of the desks held by a registry.
// Agents without a desk have no history.
type DeskRepo struct {
	desks *dialer.Registry
}

func NewDeskRepo(r *dialer.Registry) *DeskRepo { return &DeskRepo{desks: r} }

func (r *DeskRepo) ListEntries(ctx context.Context, agentID string, from, to time.Time) ([]history.Entry, error) {
	if agentID == "" {
		return nil, errors.New("agent_id required")
	}
	d, ok := r.desks.Lookup(agentID)
	if !ok {
		return nil, nil
	}
	return d.History.Between(from, to), nil
}
