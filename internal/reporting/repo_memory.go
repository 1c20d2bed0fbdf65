package reporting

import (
	"context"
	"errors"
	"sync"
	"time"

	"collections-dialer/internal/history"
)

// MemoryRepo is a simple in-memory reporting repository for tests.
type MemoryRepo struct {
	mu      sync.Mutex
	Entries map[string][]history.Entry
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{Entries: map[string][]history.Entry{}} }

func (r *MemoryRepo) Add(agentID string, e history.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Entries[agentID] = append(r.Entries[agentID], e)
}

func (r *MemoryRepo) ListEntries(ctx context.Context, agentID string, from, to time.Time) ([]history.Entry, error) {
	if agentID == "" {
		return nil, errors.New("agent_id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]history.Entry, 0)
	for _, e := range r.Entries[agentID] {
		if e.Timestamp.Before(from) || !e.Timestamp.Before(to) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
