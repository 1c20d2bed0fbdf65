package history

import (
	"sync"
	"testing"
	"time"

	"collections-dialer/internal/calls"
)

func steppingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func TestLog_QueryNewestFirstWithLimitAndOutcome(t *testing.T) {
	l := NewLogWithClock(steppingClock(time.Unix(1700000000, 0)))
	l.Append(Entry{CounterpartNumber: "1", Outcome: calls.OutcomeMissed})
	l.Append(Entry{CounterpartNumber: "2", Outcome: calls.OutcomePromiseToPay})
	l.Append(Entry{CounterpartNumber: "3", Outcome: calls.OutcomeMissed})

	all := l.Query(Query{})
	if len(all) != 3 || all[0].CounterpartNumber != "3" || all[2].CounterpartNumber != "1" {
		t.Fatalf("unexpected order: %+v", all)
	}

	missed := l.Query(Query{Outcome: calls.OutcomeMissed, Limit: 1})
	if len(missed) != 1 || missed[0].CounterpartNumber != "3" {
		t.Fatalf("unexpected filtered result: %+v", missed)
	}
}

func TestLog_FinalEntrySupersedesProvisional(t *testing.T) {
	l := NewLogWithClock(steppingClock(time.Unix(1700000000, 0)))
	sid := calls.NewSessionID()
	l.Append(Entry{SessionID: sid, Outcome: calls.OutcomePending, Provisional: true, Duration: 45 * time.Second})
	l.Append(Entry{SessionID: sid, Outcome: calls.OutcomePromiseToPay, Duration: 45 * time.Second})

	visible := l.Query(Query{})
	if len(visible) != 1 || visible[0].Outcome != calls.OutcomePromiseToPay {
		t.Fatalf("expected only final entry visible, got %+v", visible)
	}
	if pending := l.Query(Query{Outcome: calls.OutcomePending}); len(pending) != 0 {
		t.Fatalf("superseded provisional entry must not match outcome filter")
	}
	if len(l.ForSession(sid)) != 2 || l.Len() != 2 {
		t.Fatalf("expected both entries retained in the append-only log")
	}
}

func TestLog_TimeRange(t *testing.T) {
	base := time.Unix(1700000000, 0).UTC()
	l := NewLog()
	l.Append(Entry{CounterpartNumber: "old", Timestamp: base.Add(-time.Hour)})
	l.Append(Entry{CounterpartNumber: "in", Timestamp: base})
	got := l.Query(Query{From: base.Add(-time.Minute), To: base.Add(time.Minute)})
	if len(got) != 1 || got[0].CounterpartNumber != "in" {
		t.Fatalf("unexpected range result: %+v", got)
	}
}

func TestLog_ConcurrentReadsDuringAppend(t *testing.T) {
	l := NewLog()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			l.Append(Entry{Outcome: calls.OutcomeNoAnswer})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_ = l.Query(Query{Limit: 10})
		}
	}()
	wg.Wait()
	if l.Len() != 200 {
		t.Fatalf("expected 200 entries, got %d", l.Len())
	}
}

func TestMissedTracker_Lifecycle(t *testing.T) {
	tr := NewMissedTracker()
	sid := calls.NewSessionID()
	first := tr.Add(MissedCall{SessionID: sid, Number: "0821234567", Name: "Jane Doe"})
	again := tr.Add(MissedCall{SessionID: sid, Number: "0821234567"})
	if first.ID != again.ID {
		t.Fatalf("expected one entry per session")
	}
	tr.Add(MissedCall{SessionID: calls.NewSessionID(), Number: "0831234567"})

	if tr.UnreadCount() != 2 {
		t.Fatalf("expected 2 unread, got %d", tr.UnreadCount())
	}
	if err := tr.MarkRead(first.ID); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := tr.MarkRead("missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if tr.UnreadCount() != 1 {
		t.Fatalf("expected 1 unread, got %d", tr.UnreadCount())
	}
	if list := tr.List(); len(list) != 2 || list[0].Number != "0831234567" {
		t.Fatalf("expected newest first: %+v", list)
	}
	if n := tr.MarkAllRead(); n != 1 {
		t.Fatalf("expected 1 changed, got %d", n)
	}
	if n := tr.Clear(); n != 2 || len(tr.List()) != 0 {
		t.Fatalf("expected clear to remove 2 entries")
	}
}
