package checkpoint

import (
	"context"
	"sync"

	"collections-dialer/internal/calls"
)

type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]calls.Session
	pending  map[string]map[calls.SessionID]calls.Session
	err      error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]calls.Session),
		pending:  make(map[string]map[calls.SessionID]calls.Session),
	}
}

func (m *MemoryStore) Save(_ context.Context, agentID string, s calls.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if cur, ok := m.sessions[agentID]; ok && cur.Version >= s.Version {
		return ErrStale
	}
	m.sessions[agentID] = s.Clone()
	return nil
}

func (m *MemoryStore) Load(_ context.Context, agentID string) (calls.Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return calls.Session{}, false, m.err
	}
	s, ok := m.sessions[agentID]
	if !ok {
		return calls.Session{}, false, nil
	}
	return s.Clone(), true, nil
}

func (m *MemoryStore) SavePending(_ context.Context, agentID string, s calls.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	set, ok := m.pending[agentID]
	if !ok {
		set = make(map[calls.SessionID]calls.Session)
		m.pending[agentID] = set
	}
	set[s.ID] = s.Clone()
	return nil
}

func (m *MemoryStore) DropPending(_ context.Context, agentID string, id calls.SessionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	delete(m.pending[agentID], id)
	return nil
}

func (m *MemoryStore) LoadPending(_ context.Context, agentID string) ([]calls.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]calls.Session, 0, len(m.pending[agentID]))
	for _, s := range m.pending[agentID] {
		out = append(out, s.Clone())
	}
	return out, nil
}

// SetError makes every call fail with err. nil clears it.
func (m *MemoryStore) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}
