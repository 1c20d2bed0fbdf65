package timer

import (
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Key names a delayed task. Tasks are scoped to the session they were armed for.
type Key struct {
	SessionID string
	Name      string
}

type task struct {
	gen uint64
	due time.Time
	t   clockwork.Timer
}

// Scheduler runs named, cancellable delayed tasks on a clockwork.Clock.
// Re-scheduling a key replaces the earlier task. A task that fires after it
// was cancelled or replaced is dropped, even if the underlying timer could
// not be stopped.
type Scheduler struct {
	clock clockwork.Clock

	mu      sync.Mutex
	idle    *sync.Cond
	seq     uint64
	running int
	tasks   map[Key]*task
}

// NewScheduler returns a scheduler on clock; nil means the real clock.
func NewScheduler(clock clockwork.Clock) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	s := &Scheduler{clock: clock, tasks: make(map[Key]*task)}
	s.idle = sync.NewCond(&s.mu)
	return s
}

// Clock returns the scheduler's time source.
func (s *Scheduler) Clock() clockwork.Clock { return s.clock }

// Schedule arms fn to run once after d.
func (s *Scheduler) Schedule(key Key, d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.tasks[key]; ok {
		old.t.Stop()
	}
	s.seq++
	gen := s.seq
	tk := &task{gen: gen, due: s.clock.Now().Add(d)}
	s.tasks[key] = tk
	tk.t = s.clock.AfterFunc(d, func() {
		if !s.claim(key, gen) {
			return
		}
		defer s.done()
		fn()
	})
}

// claim removes the task if it is still the current generation for key and
// counts it as running.
func (s *Scheduler) claim(key Key, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.tasks[key]
	if !ok || cur.gen != gen {
		return false
	}
	delete(s.tasks, key)
	s.running++
	return true
}

func (s *Scheduler) done() {
	s.mu.Lock()
	s.running--
	s.mu.Unlock()
	s.idle.Broadcast()
}

// Cancel stops the task for key. It reports whether a task was pending.
func (s *Scheduler) Cancel(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	tk, ok := s.tasks[key]
	if !ok {
		return false
	}
	tk.t.Stop()
	delete(s.tasks, key)
	s.idle.Broadcast()
	return true
}

// CancelSession stops every task armed for sessionID and returns how many were pending.
func (s *Scheduler) CancelSession(sessionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, tk := range s.tasks {
		if k.SessionID != sessionID {
			continue
		}
		tk.t.Stop()
		delete(s.tasks, k)
		n++
	}
	if n > 0 {
		s.idle.Broadcast()
	}
	return n
}

// Pending lists the task names currently armed for sessionID, sorted.
func (s *Scheduler) Pending(sessionID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for k := range s.tasks {
		if k.SessionID == sessionID {
			out = append(out, k.Name)
		}
	}
	sort.Strings(out)
	return out
}

// Len reports how many tasks are armed across all sessions.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Settle blocks until every task whose deadline has passed on the clock has
// finished running. clockwork fires callbacks on their own goroutines, so
// code that moves a fake clock calls Settle before observing the result.
// Settle must not be called from inside a task.
func (s *Scheduler) Settle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.running > 0 || s.dueLocked() {
		s.idle.Wait()
	}
}

func (s *Scheduler) dueLocked() bool {
	now := s.clock.Now()
	for _, tk := range s.tasks {
		if !tk.due.After(now) {
			return true
		}
	}
	return false
}

// Stop cancels all pending tasks.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, tk := range s.tasks {
		tk.t.Stop()
		delete(s.tasks, k)
	}
	s.idle.Broadcast()
}
