package history

import (
	"errors"
	"sync"
	"time"

	"collections-dialer/internal/calls"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("history: entry not found")

// Entry is an immutable record of a finished call.
//
// A session may own several entries: the controller appends a provisional one
// when a connected call ends, and wrap-up appends the final one. Queries show
// only the newest entry per session.
type Entry struct {
	ID        string          `json:"id"`
	SessionID calls.SessionID `json:"session_id,omitempty"`
	AgentID   string          `json:"agent_id,omitempty"`

	CounterpartName   string          `json:"counterpart_name"`
	CounterpartNumber string          `json:"counterpart_number"`
	Direction         calls.Direction `json:"direction"`

	Outcome      calls.Outcome `json:"outcome"`
	Notes        string        `json:"notes,omitempty"`
	Duration     time.Duration `json:"duration"`
	CallbackDate *time.Time    `json:"callback_date,omitempty"`

	Provisional bool      `json:"provisional,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// EntryFromSession builds an entry describing s with the given outcome.
func EntryFromSession(s calls.Session, outcome calls.Outcome) Entry {
	return Entry{
		SessionID:         s.ID,
		AgentID:           s.AgentID,
		CounterpartName:   s.CounterpartName(),
		CounterpartNumber: s.PhoneNumber,
		Direction:         s.Direction,
		Outcome:           outcome,
		Duration:          s.TalkDuration(),
	}
}

// Query filters visible entries. A zero Outcome matches all; Limit <= 0 means no limit.
type Query struct {
	Outcome calls.Outcome
	Limit   int
	From    time.Time
	To      time.Time
}

// Log is an append-only, insertion-ordered call history.
// Readers may query concurrently with the single writer.
type Log struct {
	mu      sync.RWMutex
	entries []Entry
	clock   func() time.Time
}

func NewLog() *Log { return &Log{clock: time.Now} }

// NewLogWithClock is NewLog with an injected time source.
func NewLogWithClock(clock func() time.Time) *Log { return &Log{clock: clock} }

// Append stores e, filling ID and Timestamp when empty, and returns the stored entry.
func (l *Log) Append(e Entry) Entry {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = l.clock().UTC()
	}
	if e.CallbackDate != nil {
		d := *e.CallbackDate
		e.CallbackDate = &d
	}

	l.mu.Lock()
	l.entries = append(l.entries, e)
	l.mu.Unlock()
	return e
}

// Query returns visible entries newest-first.
func (l *Log) Query(q Query) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	seen := make(map[calls.SessionID]struct{})
	out := make([]Entry, 0)
	for i := len(l.entries) - 1; i >= 0; i-- {
		e := l.entries[i]
		if e.SessionID != "" {
			if _, dup := seen[e.SessionID]; dup {
				continue
			}
			seen[e.SessionID] = struct{}{}
		}
		if q.Outcome != "" && e.Outcome != q.Outcome {
			continue
		}
		if !q.From.IsZero() && e.Timestamp.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && !e.Timestamp.Before(q.To) {
			continue
		}
		out = append(out, e)
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out
}

// ForSession returns every entry recorded for id, oldest first.
func (l *Log) ForSession(id calls.SessionID) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Entry
	for _, e := range l.entries {
		if e.SessionID == id {
			out = append(out, e)
		}
	}
	return out
}

// Get returns the entry with the given id.
func (l *Log) Get(id string) (Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, e := range l.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return Entry{}, ErrNotFound
}

// Len is the number of stored entries, superseded ones included.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Between returns the visible entries timestamped in [from, to), newest first.
func (l *Log) Between(from, to time.Time) []Entry {
	return l.Query(Query{From: from, To: to})
}
