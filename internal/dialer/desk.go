package dialer

import (
	"context"
	"sync"
	"time"

	"collections-dialer/internal/calls"
	"collections-dialer/internal/history"
	"collections-dialer/internal/notify"
	"collections-dialer/internal/timer"
	"collections-dialer/internal/visibility"
	"collections-dialer/internal/wrapup"
)

// Desk bundles everything one agent works with: the controller, its history,
// the missed-call queue, wrap-up capture and the notification feed.
type Desk struct {
	AgentID    string
	Controller *Controller
	History    *history.Log
	Missed     *history.MissedTracker
	Recorder   *wrapup.Recorder
	Feed       *notify.Feed
	Foreground *visibility.Broadcaster
	// Notifier reaches the agent on every configured channel.
	Notifier notify.Port

	scheduler *timer.Scheduler
	wrapMu    sync.Mutex
}

// WrapUpInput is the operator's wrap-up form for one ended call.
type WrapUpInput struct {
	SessionID    calls.SessionID
	Outcome      calls.Outcome
	Notes        string
	CallbackDate *time.Time
	AccountRef   string
}

// SubmitWrapUp records the wrap-up for a pending session and clears it.
func (d *Desk) SubmitWrapUp(ctx context.Context, in WrapUpInput) (wrapup.Receipt, error) {
	d.wrapMu.Lock()
	defer d.wrapMu.Unlock()

	s, err := d.Controller.PendingWrapUp(in.SessionID)
	if err != nil {
		return wrapup.Receipt{}, err
	}
	receipt, err := d.Recorder.Submit(ctx, wrapup.Request{
		Session:      s,
		Outcome:      in.Outcome,
		Notes:        in.Notes,
		CallbackDate: in.CallbackDate,
		AccountRef:   in.AccountRef,
	})
	if err != nil {
		return wrapup.Receipt{}, err
	}
	if err := d.Controller.CompleteWrapUp(in.SessionID, in.Outcome); err != nil {
		return receipt, err
	}
	return receipt, nil
}

func (d *Desk) AbandonWrapUp(ctx context.Context, id calls.SessionID) error {
	d.wrapMu.Lock()
	defer d.wrapMu.Unlock()
	return d.Controller.AbandonWrapUp(ctx, id)
}

// RetryWrapUps resends wrap-ups whose durable write failed and returns how
// many are now stored.
func (d *Desk) RetryWrapUps(ctx context.Context) (int, error) {
	return d.Recorder.RetryFailed(ctx)
}

// Close stops the desk's timers and waits for background writes.
func (d *Desk) Close() {
	d.scheduler.Stop()
	d.Recorder.Wait()
	d.Controller.Wait()
}

// Settle waits until heuristic timers that are already due have run and
// their checkpoint writes have landed.
func (d *Desk) Settle() {
	d.scheduler.Settle()
	d.Controller.Wait()
}
