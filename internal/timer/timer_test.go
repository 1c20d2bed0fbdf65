package timer

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func newFake() *clockwork.FakeClock {
	return clockwork.NewFakeClockAt(time.Unix(1700000000, 0).UTC())
}

func TestScheduler_FiresOnceAfterDelay(t *testing.T) {
	clock := newFake()
	s := NewScheduler(clock)

	var fired atomic.Int32
	s.Schedule(Key{SessionID: "s1", Name: "answer"}, 5*time.Second, func() { fired.Add(1) })

	clock.Advance(4 * time.Second)
	s.Settle()
	if fired.Load() != 0 {
		t.Fatalf("expected no fire before deadline")
	}
	clock.Advance(time.Second)
	s.Settle()
	if fired.Load() != 1 {
		t.Fatalf("expected 1 fire, got %d", fired.Load())
	}
	clock.Advance(time.Hour)
	s.Settle()
	if fired.Load() != 1 {
		t.Fatalf("expected task to fire once, got %d", fired.Load())
	}
	if len(s.Pending("s1")) != 0 || s.Len() != 0 {
		t.Fatalf("expected no pending tasks")
	}
}

func TestScheduler_RescheduleReplaces(t *testing.T) {
	clock := newFake()
	s := NewScheduler(clock)

	var first, second atomic.Int32
	key := Key{SessionID: "s1", Name: "max"}
	s.Schedule(key, time.Second, func() { first.Add(1) })
	s.Schedule(key, 2*time.Second, func() { second.Add(1) })

	clock.Advance(3 * time.Second)
	s.Settle()
	if first.Load() != 0 || second.Load() != 1 {
		t.Fatalf("expected only replacement to fire, got first=%d second=%d", first.Load(), second.Load())
	}
}

func TestScheduler_CancelSession(t *testing.T) {
	clock := newFake()
	s := NewScheduler(clock)

	var fired atomic.Int32
	s.Schedule(Key{SessionID: "s1", Name: "a"}, time.Second, func() { fired.Add(1) })
	s.Schedule(Key{SessionID: "s1", Name: "b"}, time.Second, func() { fired.Add(1) })
	s.Schedule(Key{SessionID: "s2", Name: "a"}, time.Second, func() { fired.Add(1) })

	if got := s.Pending("s1"); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected pending: %v", got)
	}
	if n := s.CancelSession("s1"); n != 2 {
		t.Fatalf("expected 2 cancelled, got %d", n)
	}
	clock.Advance(time.Second)
	s.Settle()
	if fired.Load() != 1 {
		t.Fatalf("expected only s2 task to fire, got %d", fired.Load())
	}
}

func TestScheduler_StaleGenerationIsDropped(t *testing.T) {
	s := NewScheduler(newFake())
	key := Key{SessionID: "s1", Name: "answer"}

	s.Schedule(key, time.Second, func() {})
	stale := s.tasks[key].gen
	s.Schedule(key, time.Second, func() {})

	if s.claim(key, stale) {
		t.Fatalf("expected replaced task to lose its claim")
	}
	if len(s.Pending("s1")) != 1 {
		t.Fatalf("expected replacement to stay armed")
	}
	s.Cancel(key)
	if s.claim(key, stale+1) {
		t.Fatalf("expected cancelled task to lose its claim")
	}
}

func TestScheduler_SettleWaitsForChainedTasks(t *testing.T) {
	clock := newFake()
	s := NewScheduler(clock)

	var fired atomic.Int32
	s.Schedule(Key{SessionID: "s1", Name: "a"}, time.Second, func() {
		s.Schedule(Key{SessionID: "s1", Name: "b"}, 0, func() { fired.Add(1) })
	})

	clock.Advance(time.Second)
	s.Settle()
	if fired.Load() != 1 {
		t.Fatalf("expected chained task to run before Settle returns")
	}
}

func TestScheduler_RealClock(t *testing.T) {
	var fired atomic.Int32
	s := NewScheduler(nil)
	s.Schedule(Key{SessionID: "s", Name: "n"}, time.Millisecond, func() { fired.Add(1) })

	deadline := time.Now().Add(2 * time.Second)
	for fired.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if fired.Load() != 1 {
		t.Fatalf("expected real timer to fire")
	}
}
