package notify

import (
	"sync"
	"time"
)

const defaultFeedCapacity = 100

// Feed keeps the most recent notifications in a ring so the desk UI can poll them.
type Feed struct {
	agentID string
	clock   func() time.Time

	mu   sync.RWMutex
	buf  []Notification
	next int
	full bool
	seq  uint64
}

func NewFeed(agentID string, capacity int) *Feed {
	if capacity <= 0 {
		capacity = defaultFeedCapacity
	}
	return &Feed{agentID: agentID, clock: time.Now, buf: make([]Notification, capacity)}
}

func (f *Feed) Notify(level Level, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	f.buf[f.next] = Notification{
		ID:        f.seq,
		AgentID:   f.agentID,
		Level:     level,
		Message:   message,
		CreatedAt: f.clock().UTC(),
	}
	f.next = (f.next + 1) % len(f.buf)
	if f.next == 0 {
		f.full = true
	}
}

// Since returns notifications with ID > after, oldest first.
func (f *Feed) Since(after uint64) []Notification {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]Notification, 0)
	n := f.next
	start := 0
	if f.full {
		n = len(f.buf)
		start = f.next
	}
	for i := 0; i < n; i++ {
		e := f.buf[(start+i)%len(f.buf)]
		if e.ID > after {
			out = append(out, e)
		}
	}
	return out
}

// Last returns the most recent notification, if any.
func (f *Feed) Last() (Notification, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.seq == 0 {
		return Notification{}, false
	}
	i := f.next - 1
	if i < 0 {
		i = len(f.buf) - 1
	}
	return f.buf[i], true
}
