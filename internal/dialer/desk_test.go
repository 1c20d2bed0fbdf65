package dialer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"collections-dialer/internal/calls"
	"collections-dialer/internal/checkpoint"
	"collections-dialer/internal/heuristics"
	"collections-dialer/internal/history"
	"collections-dialer/internal/notify"
	"collections-dialer/internal/wrapup"
)

func newRegistry(t *testing.T, store wrapup.Store, cps checkpoint.Store) (*Registry, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	r := NewRegistry(RegistryConfig{
		Launcher:         &fakeLauncher{},
		WrapUpStore:      store,
		Checkpoints:      cps,
		Clock:            clock,
		HeuristicOptions: []heuristics.Option{heuristics.WithRand(func(int64) int64 { return 0 })},
		WrapUp: wrapup.Config{
			Timeout: 50 * time.Millisecond,
			Retry:   wrapup.RetryPolicy{MaxAttempts: 2, InitialDelay: time.Millisecond, Multiplier: 2, MaxDelay: time.Millisecond},
		},
	})
	t.Cleanup(r.Close)
	return r, clock
}

func endConnectedCall(t *testing.T, d *Desk, clock *clockwork.FakeClock, talk time.Duration) calls.SessionID {
	t.Helper()
	ctx := context.Background()
	id, err := d.Controller.StartOutgoing(ctx, "0821234567", nil)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := d.Controller.MarkAnswered(ctx); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	clock.Advance(talk)
	d.Settle()
	if err := d.Controller.MarkEnded(ctx); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	return id
}

func TestRegistry_OneDeskPerAgent(t *testing.T) {
	r, _ := newRegistry(t, wrapup.NewMemoryStore(), nil)
	ctx := context.Background()

	a, err := r.Desk(ctx, "agent-a")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	again, _ := r.Desk(ctx, "agent-a")
	b, _ := r.Desk(ctx, "agent-b")
	if a != again || a == b {
		t.Fatalf("expected one desk per agent")
	}
	if _, err := r.Desk(ctx, ""); !errors.Is(err, ErrNoAgent) {
		t.Fatalf("expected ErrNoAgent, got %v", err)
	}
	if desks := r.Desks(); len(desks) != 2 || desks[0].AgentID != "agent-a" {
		t.Fatalf("unexpected desks: %v", desks)
	}

	// Desks are independent: both agents may be on a call at once.
	if _, err := a.Controller.StartOutgoing(ctx, "0821234567", nil); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if _, err := b.Controller.StartOutgoing(ctx, "0831234567", nil); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
}

func TestDesk_WrapUpPersistFailureKeepsHistory(t *testing.T) {
	store := wrapup.NewMemoryStore()
	store.FailWith(context.DeadlineExceeded, -1)
	r, clock := newRegistry(t, store, nil)
	d, _ := r.Desk(context.Background(), "agent-1")

	id := endConnectedCall(t, d, clock, 45*time.Second)

	receipt, err := d.SubmitWrapUp(context.Background(), WrapUpInput{SessionID: id, Outcome: calls.OutcomePromiseToPay, Notes: "R500 on Friday"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	select {
	case err := <-receipt.Persisted:
		if !errors.Is(err, calls.ErrPersistenceUnavailable) {
			t.Fatalf("expected ErrPersistenceUnavailable, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for persistence result")
	}
	d.Recorder.Wait()

	visible := d.History.Query(history.Query{})
	if len(visible) != 1 || visible[0].Outcome != calls.OutcomePromiseToPay || visible[0].Duration != 45*time.Second {
		t.Fatalf("expected one 45s entry, got %+v", visible)
	}
	var warnings int
	for _, n := range d.Feed.Since(0) {
		if n.Level == notify.LevelWarning {
			warnings++
		}
	}
	if warnings != 1 {
		t.Fatalf("expected one warning notification, got %d", warnings)
	}
	if len(d.Controller.PendingWrapUps()) != 0 {
		t.Fatalf("expected wrap-up cleared")
	}
}

func TestDesk_MissingCallbackHasNoSideEffects(t *testing.T) {
	store := wrapup.NewMemoryStore()
	r, clock := newRegistry(t, store, nil)
	d, _ := r.Desk(context.Background(), "agent-1")
	id := endConnectedCall(t, d, clock, 30*time.Second)
	before := d.History.Len()

	_, err := d.SubmitWrapUp(context.Background(), WrapUpInput{SessionID: id, Outcome: calls.OutcomeCallbackRequested})
	if !errors.Is(err, calls.ErrMissingCallback) {
		t.Fatalf("expected ErrMissingCallback, got %v", err)
	}
	d.Recorder.Wait()
	if d.History.Len() != before || store.Attempts() != 0 {
		t.Fatalf("expected no history or store side effects")
	}
	if len(d.Controller.PendingWrapUps()) != 1 {
		t.Fatalf("wrap-up must stay pending after a validation error")
	}

	cb := clock.Now().Add(48 * time.Hour)
	receipt, err := d.SubmitWrapUp(context.Background(), WrapUpInput{SessionID: id, Outcome: calls.OutcomeCallbackRequested, CallbackDate: &cb})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := <-receipt.Persisted; err != nil {
		t.Fatalf("unexpected persist err: %v", err)
	}
	if _, err := d.SubmitWrapUp(context.Background(), WrapUpInput{SessionID: id, Outcome: calls.OutcomePaymentMade}); !errors.Is(err, calls.ErrUnknownSession) {
		t.Fatalf("expected ErrUnknownSession once completed, got %v", err)
	}
}

func TestRegistry_RecoversCheckpointOnFirstUse(t *testing.T) {
	cps := checkpoint.NewMemoryStore()
	_ = cps.Save(context.Background(), "agent-1", calls.Session{
		ID:          calls.NewSessionID(),
		AgentID:     "agent-1",
		Direction:   calls.DirectionOutgoing,
		PhoneNumber: "0821234567",
		State:       calls.StateDialing,
		StartedAt:   time.Date(2026, 3, 2, 8, 59, 58, 0, time.UTC),
		Version:     1,
	})
	r, clock := newRegistry(t, wrapup.NewMemoryStore(), cps)

	d, err := r.Desk(context.Background(), "agent-1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	s, ok := d.Controller.Current()
	if !ok || s.State != calls.StateDialing {
		t.Fatalf("expected recovered dialing session, got %+v", s)
	}
	clock.Advance(5 * time.Second)
	d.Settle()
	if s, _ := d.Controller.Current(); s.State != calls.StateConnected {
		t.Fatalf("expected re-armed answer window to connect, got %s", s.State)
	}
}

func TestRegistry_ConcurrentFirstUseSeesRecoveredDesk(t *testing.T) {
	cps := checkpoint.NewMemoryStore()
	saved := calls.Session{
		ID:          calls.NewSessionID(),
		AgentID:     "agent-1",
		Direction:   calls.DirectionOutgoing,
		PhoneNumber: "0821234567",
		State:       calls.StateDialing,
		StartedAt:   time.Date(2026, 3, 2, 8, 59, 58, 0, time.UTC),
		Version:     1,
	}
	_ = cps.Save(context.Background(), "agent-1", saved)
	r, _ := newRegistry(t, wrapup.NewMemoryStore(), cps)

	const callers = 8
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		desks = make(map[*Desk]struct{})
		busy  int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := r.Desk(context.Background(), "agent-1")
			if err != nil {
				t.Errorf("unexpected err: %v", err)
				return
			}
			// A desk handed out before recovery would accept a new call.
			_, err = d.Controller.StartOutgoing(context.Background(), "0831234567", nil)
			mu.Lock()
			defer mu.Unlock()
			desks[d] = struct{}{}
			if errors.Is(err, calls.ErrSessionBusy) {
				busy++
			}
		}()
	}
	wg.Wait()

	if len(desks) != 1 {
		t.Fatalf("expected one shared desk, got %d", len(desks))
	}
	if busy != callers {
		t.Fatalf("expected every caller to see the recovered call, %d of %d did", busy, callers)
	}
	d, _ := r.Lookup("agent-1")
	if s, _ := d.Controller.Current(); s.ID != saved.ID {
		t.Fatalf("expected recovered session to stay current, got %+v", s)
	}
}

func TestRegistry_PendingWrapUpSubmittableAfterRestart(t *testing.T) {
	cps := checkpoint.NewMemoryStore()
	store := wrapup.NewMemoryStore()
	before, clock := newRegistry(t, store, cps)
	d, _ := before.Desk(context.Background(), "agent-1")
	id := endConnectedCall(t, d, clock, 45*time.Second)
	d.Settle()
	before.Close()

	after, _ := newRegistry(t, store, cps)
	d, err := after.Desk(context.Background(), "agent-1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	receipt, err := d.SubmitWrapUp(context.Background(), WrapUpInput{SessionID: id, Outcome: calls.OutcomePaymentMade})
	if err != nil {
		t.Fatalf("expected wrap-up to survive the restart: %v", err)
	}
	if err := <-receipt.Persisted; err != nil {
		t.Fatalf("unexpected persist err: %v", err)
	}
	recs := store.Records()
	if len(recs) != 1 || recs[0].Duration != 45*time.Second {
		t.Fatalf("expected one 45s record, got %+v", recs)
	}
	if left, _ := cps.LoadPending(context.Background(), "agent-1"); len(left) != 0 {
		t.Fatalf("expected no pending wrap-ups left, got %+v", left)
	}
}

func TestRegistry_RunWrapUpRetriesResendsFailedWrites(t *testing.T) {
	store := wrapup.NewMemoryStore()
	store.FailWith(context.DeadlineExceeded, -1)
	r, clock := newRegistry(t, store, nil)
	d, _ := r.Desk(context.Background(), "agent-1")

	id := endConnectedCall(t, d, clock, 30*time.Second)
	receipt, err := d.SubmitWrapUp(context.Background(), WrapUpInput{SessionID: id, Outcome: calls.OutcomeNoContact})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	<-receipt.Persisted
	d.Recorder.Wait()
	if len(d.Recorder.Failed()) != 1 {
		t.Fatalf("expected failed write queued")
	}

	store.FailWith(nil, 0)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.RunWrapUpRetries(ctx, time.Minute) }()

	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("retry loop never armed its ticker: %v", err)
	}
	clock.Advance(time.Minute)
	deadline := time.Now().Add(2 * time.Second)
	for len(store.Records()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if recs := store.Records(); len(recs) != 1 || recs[0].ID != string(id) {
		t.Fatalf("expected queued wrap-up persisted by the retry loop, got %+v", recs)
	}
	if len(d.Recorder.Failed()) != 0 {
		t.Fatalf("expected retry queue drained")
	}
}
