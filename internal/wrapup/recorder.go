// Package wrapup captures the operator's disposition after a connected call.
package wrapup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"collections-dialer/internal/calls"
	"collections-dialer/internal/history"
	"collections-dialer/internal/notify"
	"collections-dialer/pkg/logger"
)

const DefaultPersistTimeout = 5 * time.Second

const persistWarning = "Wrap-up saved on this desk only; the server could not be reached."

var errNoStore = errors.New("wrapup: store not configured")

type Config struct {
	Timeout time.Duration
	Retry   RetryPolicy

	// OnPersistFailure runs after every failed durable write.
	OnPersistFailure func(err error)
}

// Receipt describes an accepted wrap-up. Persisted yields exactly one value:
// nil once the record is durable, or an error wrapping
// calls.ErrPersistenceUnavailable.
type Receipt struct {
	Record    Record
	Entry     history.Entry
	Persisted <-chan error
}

// Recorder validates wrap-ups, appends them to the local history and writes
// them to the durable store in the background. Records whose write failed
// are queued until RetryFailed gets them through.
type Recorder struct {
	store    Store
	history  *history.Log
	notifier notify.Port
	log      *slog.Logger
	cfg      Config
	clock    func() time.Time

	mu       sync.Mutex
	recorded map[calls.SessionID]struct{}
	failed   map[string]Record
	wg       sync.WaitGroup
}

func NewRecorder(store Store, log *history.Log, notifier notify.Port, l *slog.Logger, cfg Config) *Recorder {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultPersistTimeout
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if l == nil {
		l = slog.Default()
	}
	return &Recorder{
		store:    store,
		history:  log,
		notifier: notifier,
		log:      l,
		cfg:      cfg,
		clock:    time.Now,
		recorded: make(map[calls.SessionID]struct{}),
		failed:   make(map[string]Record),
	}
}

// Submit validates req and records it. Validation errors leave no trace.
// Once accepted, the local history entry exists before Submit returns; the
// durable write finishes later and is reported on the receipt.
func (r *Recorder) Submit(ctx context.Context, req Request) (Receipt, error) {
	if !req.Outcome.IsDisposition() {
		return Receipt{}, calls.ErrInvalidOutcome
	}
	if req.Outcome.RequiresCallback() && req.CallbackDate == nil {
		return Receipt{}, calls.ErrMissingCallback
	}
	if req.Session.ID == "" {
		return Receipt{}, calls.ErrUnknownSession
	}

	r.mu.Lock()
	if _, dup := r.recorded[req.Session.ID]; dup {
		r.mu.Unlock()
		return Receipt{}, calls.ErrAlreadyRecorded
	}
	r.recorded[req.Session.ID] = struct{}{}
	r.mu.Unlock()

	if !req.Outcome.RequiresCallback() {
		req.CallbackDate = nil
	}

	now := r.clock().UTC()
	rec := buildRecord(req, now)

	entry := history.EntryFromSession(req.Session, req.Outcome)
	entry.Notes = req.Notes
	entry.CallbackDate = req.CallbackDate
	entry = r.history.Append(entry)
	logger.From(ctx).Info("wrap-up recorded", "agent_id", rec.AgentID, "session_id", rec.ID, "outcome", rec.Outcome)

	done := make(chan error, 1)
	r.wg.Add(1)
	go r.persist(context.WithoutCancel(ctx), rec, done)

	return Receipt{Record: rec, Entry: entry, Persisted: done}, nil
}

// Recorded reports whether a wrap-up was accepted for id.
func (r *Recorder) Recorded(id calls.SessionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.recorded[id]
	return ok
}

// Wait blocks until every in-flight durable write has finished.
func (r *Recorder) Wait() { r.wg.Wait() }

// Failed lists accepted wrap-ups that are not durable yet, oldest first.
func (r *Recorder) Failed() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, 0, len(r.failed))
	for _, rec := range r.failed {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// RetryFailed writes every queued record again and returns how many became
// durable. Records that fail again stay queued; their errors are joined.
// Store writes are idempotent on the record id, so a record whose earlier
// write landed after its timeout is harmless to resend.
func (r *Recorder) RetryFailed(ctx context.Context) (int, error) {
	var (
		saved int
		errs  []error
	)
	for _, rec := range r.Failed() {
		if err := r.save(ctx, rec); err != nil {
			errs = append(errs, fmt.Errorf("wrap-up %s: %w", rec.ID, err))
			continue
		}
		r.mu.Lock()
		delete(r.failed, rec.ID)
		r.mu.Unlock()
		r.log.Info("wrap-up persisted on retry", "session_id", rec.ID, "agent_id", rec.AgentID)
		saved++
	}
	return saved, errors.Join(errs...)
}

func (r *Recorder) save(ctx context.Context, rec Record) error {
	if r.store == nil {
		return errNoStore
	}
	pctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()
	return r.cfg.Retry.Execute(pctx, func(ctx context.Context) error {
		return r.store.Save(ctx, rec)
	})
}

func (r *Recorder) persist(ctx context.Context, rec Record, done chan<- error) {
	defer r.wg.Done()
	defer close(done)

	err := r.save(ctx, rec)
	if err == nil {
		r.log.Debug("wrap-up persisted", "session_id", rec.ID, "outcome", rec.Outcome)
		done <- nil
		return
	}

	r.mu.Lock()
	r.failed[rec.ID] = rec
	r.mu.Unlock()

	err = fmt.Errorf("%w: %w", calls.ErrPersistenceUnavailable, err)
	r.log.Warn("wrap-up persist failed", "session_id", rec.ID, "agent_id", rec.AgentID, "err", err)
	r.notifier.Notify(notify.LevelWarning, persistWarning)
	if r.cfg.OnPersistFailure != nil {
		r.cfg.OnPersistFailure(err)
	}
	done <- err
}

func buildRecord(req Request, now time.Time) Record {
	s := req.Session
	end := now
	if s.EndedAt != nil {
		end = s.EndedAt.UTC()
	}
	var cb *time.Time
	if req.CallbackDate != nil {
		t := req.CallbackDate.UTC()
		cb = &t
	}
	return Record{
		ID:              string(s.ID),
		AgentID:         s.AgentID,
		PhoneNumber:     s.PhoneNumber,
		CounterpartName: s.CounterpartName(),
		Direction:       s.Direction,
		SessionStart:    s.StartedAt.UTC(),
		SessionEnd:      end,
		Duration:        s.TalkDuration(),
		Outcome:         req.Outcome,
		Notes:           req.Notes,
		CallbackDate:    cb,
		AccountRef:      req.AccountRef,
		CreatedAt:       now,
	}
}
