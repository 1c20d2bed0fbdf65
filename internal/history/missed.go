package history

import (
	"sync"
	"time"

	"collections-dialer/internal/calls"

	"github.com/google/uuid"
)

// MissedCall is an inbound call that ended before anyone answered.
// Only Read ever changes after creation.
type MissedCall struct {
	ID        string          `json:"id"`
	SessionID calls.SessionID `json:"session_id"`
	Number    string          `json:"number"`
	Name      string          `json:"name,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Read      bool            `json:"read"`
}

// MissedTracker queues unacknowledged missed calls. Entries are removed only
// by an explicit Clear, never by time.
type MissedTracker struct {
	mu      sync.RWMutex
	entries []MissedCall
	clock   func() time.Time
}

func NewMissedTracker() *MissedTracker { return &MissedTracker{clock: time.Now} }

func NewMissedTrackerWithClock(clock func() time.Time) *MissedTracker {
	return &MissedTracker{clock: clock}
}

// Add files a missed call. Adding a second entry for the same session
// returns the first one unchanged.
func (t *MissedTracker) Add(m MissedCall) MissedCall {
	t.mu.Lock()
	defer t.mu.Unlock()

	if m.SessionID != "" {
		for _, e := range t.entries {
			if e.SessionID == m.SessionID {
				return e
			}
		}
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = t.clock().UTC()
	}
	m.Read = false
	t.entries = append(t.entries, m)
	return m
}

func (t *MissedTracker) MarkRead(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.entries {
		if t.entries[i].ID == id {
			t.entries[i].Read = true
			return nil
		}
	}
	return ErrNotFound
}

// MarkAllRead flips every entry to read and returns how many changed.
func (t *MissedTracker) MarkAllRead() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for i := range t.entries {
		if !t.entries[i].Read {
			t.entries[i].Read = true
			n++
		}
	}
	return n
}

func (t *MissedTracker) UnreadCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, e := range t.entries {
		if !e.Read {
			n++
		}
	}
	return n
}

// List returns all entries newest-first.
func (t *MissedTracker) List() []MissedCall {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]MissedCall, 0, len(t.entries))
	for i := len(t.entries) - 1; i >= 0; i-- {
		out = append(out, t.entries[i])
	}
	return out
}

// Clear removes every tracked entry and returns how many were removed.
// Call history is not affected.
func (t *MissedTracker) Clear() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(t.entries)
	t.entries = nil
	return n
}
