package wrapup

import (
	"context"
	"sort"
	"sync"
	"time"

	"collections-dialer/internal/calls"
)

// MemoryStore is an in-memory Store for tests and local runs.
type MemoryStore struct {
	mu       sync.Mutex
	records  map[string]Record
	order    []string
	attempts int

	err      error
	failNext int
	delay    time.Duration
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (m *MemoryStore) Save(ctx context.Context, r Record) error {
	m.mu.Lock()
	m.attempts++
	delay := m.delay
	var err error
	if m.failNext > 0 {
		m.failNext--
		err = m.err
	} else if m.failNext < 0 {
		err = m.err
	}
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[r.ID]; ok {
		return nil
	}
	m.records[r.ID] = r
	m.order = append(m.order, r.ID)
	return nil
}

// FailWith makes the next n saves fail with err. n < 0 fails every save.
func (m *MemoryStore) FailWith(err error, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	m.failNext = n
}

// SetDelay makes every save take d, or until its context ends.
func (m *MemoryStore) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

func (m *MemoryStore) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

func (m *MemoryStore) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.records[id])
	}
	return out
}

func (m *MemoryStore) ListDueCallbacks(_ context.Context, before time.Time, limit int) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Record
	for _, id := range m.order {
		r := m.records[id]
		if r.Outcome != calls.OutcomeCallbackRequested || r.CallbackDate == nil {
			continue
		}
		if r.CallbackDate.After(before) {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CallbackDate.Before(*out[j].CallbackDate) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
