package audit

import (
	"context"
	"sync"
)

// MemoryRepo keeps events in process. cmd/api falls back to it when no
// database is configured; tests use SetError to exercise failed appends.
type MemoryRepo struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Append(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, e)
	return nil
}

// SetError makes subsequent appends fail with err; nil restores them.
func (r *MemoryRepo) SetError(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

// Events returns every stored event in append order.
func (r *MemoryRepo) Events() []Event {
	return r.filter(func(Event) bool { return true })
}

// ForSession returns the trail of one call in append order.
func (r *MemoryRepo) ForSession(sessionID string) []Event {
	return r.filter(func(e Event) bool { return e.SessionID == sessionID })
}

func (r *MemoryRepo) filter(keep func(Event) bool) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, 0, len(r.events))
	for _, e := range r.events {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}
