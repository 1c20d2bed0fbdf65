// Package dialer drives the life of a single call placed through an external
// softphone that reports nothing back.
//
// Every transition happens under one mutex. Heuristic timers and the
// foreground signal re-enter through the same mutex carrying the session id
// they were armed for, and are dropped when that session is no longer
// current. Subscribers, checkpoint writes and notifications run after the
// mutex is released, in transition order.
package dialer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"collections-dialer/internal/calls"
	"collections-dialer/internal/checkpoint"
	"collections-dialer/internal/heuristics"
	"collections-dialer/internal/history"
	"collections-dialer/internal/notify"
	"collections-dialer/internal/phone"
)

const (
	DefaultLookupTimeout     = 2 * time.Second
	DefaultLaunchTimeout     = 5 * time.Second
	DefaultCheckpointTimeout = 2 * time.Second
)

type Config struct {
	AgentID           string
	LookupTimeout     time.Duration
	LaunchTimeout     time.Duration
	CheckpointTimeout time.Duration
}

func (c Config) withDefaults() Config {
	out := c
	if out.LookupTimeout <= 0 {
		out.LookupTimeout = DefaultLookupTimeout
	}
	if out.LaunchTimeout <= 0 {
		out.LaunchTimeout = DefaultLaunchTimeout
	}
	if out.CheckpointTimeout <= 0 {
		out.CheckpointTimeout = DefaultCheckpointTimeout
	}
	return out
}

// Deps are the collaborators of a Controller. Launcher and Detector are
// required; the rest fall back to in-memory or no-op implementations.
type Deps struct {
	Launcher    Launcher
	Detector    *heuristics.Detector
	History     *history.Log
	Missed      *history.MissedTracker
	Customers   CustomerLookup
	Checkpoints checkpoint.Store
	Notifier    notify.Port
	Normalizer  phone.Normalizer
	Logger      *slog.Logger
}

// CallerInfo describes an inbound call as reported by the softphone or PBX.
type CallerInfo struct {
	Number     string
	Name       string
	CustomerID string
}

// effect is one queued side effect: an event, a notification, or a change to
// the durable set of pending wrap-ups.
type effect struct {
	event   *Event
	level   notify.Level
	message string

	keep *calls.Session
	drop calls.SessionID
}

type Controller struct {
	cfg         Config
	launcher    Launcher
	detector    *heuristics.Detector
	clock       clockwork.Clock
	history     *history.Log
	missed      *history.MissedTracker
	customers   CustomerLookup
	checkpoints checkpoint.Store
	notifier    notify.Port
	normalizer  phone.Normalizer
	log         *slog.Logger

	mu       sync.Mutex
	current  *calls.Session
	version  int64
	pending  map[calls.SessionID]calls.Session
	outbox   []effect
	draining bool
	subs     map[uint64]func(Event)
	nextSub  uint64

	bg sync.WaitGroup
}

func New(cfg Config, deps Deps) (*Controller, error) {
	if deps.Launcher == nil {
		return nil, errors.New("dialer: launcher is required")
	}
	if deps.Detector == nil {
		return nil, errors.New("dialer: heuristic detector is required")
	}
	if deps.History == nil {
		deps.History = history.NewLog()
	}
	if deps.Missed == nil {
		deps.Missed = history.NewMissedTracker()
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop{}
	}
	if deps.Normalizer.CountryCode == "" {
		deps.Normalizer = phone.NewNormalizer("", 0)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	c := &Controller{
		cfg:         cfg.withDefaults(),
		launcher:    deps.Launcher,
		detector:    deps.Detector,
		clock:       deps.Detector.Clock(),
		history:     deps.History,
		missed:      deps.Missed,
		customers:   deps.Customers,
		checkpoints: deps.Checkpoints,
		notifier:    deps.Notifier,
		normalizer:  deps.Normalizer,
		log:         deps.Logger.With("agent_id", cfg.AgentID),
		pending:     make(map[calls.SessionID]calls.Session),
		subs:        make(map[uint64]func(Event)),
	}
	c.detector.Bind(c)
	return c, nil
}

func (c *Controller) AgentID() string { return c.cfg.AgentID }

// StartOutgoing places a call to rawNumber through the softphone.
// On a launch failure the session ends in failed and the returned error wraps
// calls.ErrDialLaunchFailed; the session id is still returned.
func (c *Controller) StartOutgoing(ctx context.Context, rawNumber string, ref *calls.CustomerRef) (calls.SessionID, error) {
	number := c.normalizer.Normalize(rawNumber)

	c.mu.Lock()
	if c.current != nil {
		c.mu.Unlock()
		return "", calls.ErrSessionBusy
	}
	if number == "" {
		c.mu.Unlock()
		return "", calls.ErrInvalidNumber
	}
	s := c.openLocked(calls.DirectionOutgoing, number, ref)
	c.transitionLocked(s, calls.StateDialing, CauseOperator)
	id := s.ID
	c.mu.Unlock()
	c.drain()

	c.resolveCustomer(ctx, id, number, ref)

	err := c.launch(ctx, number)

	c.mu.Lock()
	s = c.currentLocked(id)
	if err != nil {
		if s != nil {
			s.FailureReason = err.Error()
			c.terminateLocked(s, calls.StateFailed, calls.OutcomeFailed, CauseLaunchFailed)
		}
		c.noteLocked(notify.LevelError, "The softphone could not be started. Check that it is installed and try again.")
		c.mu.Unlock()
		c.drain()
		c.log.Warn("dial launch failed", "session_id", id, "err", err)
		return id, fmt.Errorf("%w: %w", calls.ErrDialLaunchFailed, err)
	}
	if s != nil && s.State == calls.StateDialing {
		delay := c.detector.ArmAnswerWindow(string(id))
		c.log.Debug("answer window armed", "session_id", id, "delay", delay)
	}
	c.mu.Unlock()
	c.drain()
	return id, nil
}

// ReceiveIncoming opens a ringing session for an inbound call.
func (c *Controller) ReceiveIncoming(ctx context.Context, info CallerInfo) (calls.SessionID, error) {
	number := c.normalizer.Normalize(info.Number)
	var ref *calls.CustomerRef
	if info.Name != "" || info.CustomerID != "" {
		ref = &calls.CustomerRef{ID: info.CustomerID, DisplayName: info.Name}
	}

	c.mu.Lock()
	if c.current != nil {
		c.mu.Unlock()
		return "", calls.ErrSessionBusy
	}
	s := c.openLocked(calls.DirectionIncoming, number, ref)
	c.transitionLocked(s, calls.StateRinging, CauseSoftphone)
	id := s.ID
	c.mu.Unlock()
	c.drain()

	c.resolveCustomer(ctx, id, number, ref)
	return id, nil
}

// Accept answers a ringing call.
func (c *Controller) Accept(_ context.Context) error {
	c.mu.Lock()
	s := c.current
	if s == nil || s.State != calls.StateRinging {
		c.mu.Unlock()
		return calls.ErrInvalidState
	}
	c.connectLocked(s, CauseOperator)
	c.mu.Unlock()
	c.drain()
	return nil
}

// Reject declines a ringing call. Rejected calls are not missed calls.
func (c *Controller) Reject(_ context.Context) error {
	c.mu.Lock()
	s := c.current
	if s == nil || s.State != calls.StateRinging {
		c.mu.Unlock()
		return calls.ErrInvalidState
	}
	c.terminateLocked(s, calls.StateEnded, calls.OutcomeRejected, CauseOperator)
	c.mu.Unlock()
	c.drain()
	return nil
}

// MarkAnswered confirms that a dialed call was picked up. It is a no-op for a
// call that is already connected.
func (c *Controller) MarkAnswered(_ context.Context) error {
	c.mu.Lock()
	s := c.current
	if s == nil {
		c.mu.Unlock()
		return calls.ErrInvalidState
	}
	switch s.State {
	case calls.StateConnected:
		c.mu.Unlock()
		return nil
	case calls.StateDialing:
		c.connectLocked(s, CauseOperator)
		c.mu.Unlock()
		c.drain()
		return nil
	default:
		c.mu.Unlock()
		return calls.ErrInvalidState
	}
}

// MarkEnded ends the current call from whatever live state it is in.
// Without a current call it does nothing.
func (c *Controller) MarkEnded(_ context.Context) error {
	c.mu.Lock()
	if s := c.current; s != nil {
		c.endLocked(s, CauseOperator)
	}
	c.mu.Unlock()
	c.drain()
	return nil
}

// Fail moves the current call to failed after a hard collaborator error.
func (c *Controller) Fail(_ context.Context, reason string) error {
	c.mu.Lock()
	s := c.current
	if s == nil {
		c.mu.Unlock()
		return calls.ErrInvalidState
	}
	s.FailureReason = reason
	c.terminateLocked(s, calls.StateFailed, calls.OutcomeFailed, CauseCollaborator)
	c.mu.Unlock()
	c.drain()
	return nil
}

func (c *Controller) SetMuted(_ context.Context, on bool) error {
	return c.control(func(s *calls.Session) (bool, string) {
		if s.Muted == on {
			return false, ""
		}
		s.Muted = on
		if on {
			return true, "muted"
		}
		return true, "unmuted"
	})
}

func (c *Controller) SetSpeakerOn(_ context.Context, on bool) error {
	return c.control(func(s *calls.Session) (bool, string) {
		if s.SpeakerOn == on {
			return false, ""
		}
		s.SpeakerOn = on
		if on {
			return true, "speaker_on"
		}
		return true, "speaker_off"
	})
}

func (c *Controller) control(apply func(s *calls.Session) (bool, string)) error {
	c.mu.Lock()
	s := c.current
	if s == nil || s.State != calls.StateConnected {
		c.mu.Unlock()
		return calls.ErrInvalidState
	}
	if changed, cause := apply(s); changed {
		c.updatedLocked(s, cause)
	}
	c.mu.Unlock()
	c.drain()
	return nil
}

// Current returns a snapshot of the live session, if any.
func (c *Controller) Current() (calls.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return calls.Session{}, false
	}
	return c.current.Clone(), true
}

// PendingWrapUps lists connected calls that ended without a wrap-up, oldest first.
func (c *Controller) PendingWrapUps() []calls.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]calls.Session, 0, len(c.pending))
	for _, s := range c.pending {
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndedAt.Before(*out[j].EndedAt) })
	return out
}

// PendingWrapUp returns the ended session awaiting a wrap-up.
func (c *Controller) PendingWrapUp(id calls.SessionID) (calls.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.pending[id]
	if !ok {
		return calls.Session{}, calls.ErrUnknownSession
	}
	return s.Clone(), nil
}

// CompleteWrapUp clears the pending wrap-up for id once it was recorded.
func (c *Controller) CompleteWrapUp(id calls.SessionID, outcome calls.Outcome) error {
	c.mu.Lock()
	s, ok := c.pending[id]
	if !ok {
		c.mu.Unlock()
		return calls.ErrUnknownSession
	}
	delete(c.pending, id)
	c.outbox = append(c.outbox, effect{drop: id})
	s.Outcome = outcome
	c.pushLocked(Event{Kind: EventWrapUpCompleted, Session: s.Clone(), From: s.State, To: s.State, Cause: CauseOperator})
	c.mu.Unlock()
	c.drain()
	return nil
}

// AbandonWrapUp drops the pending wrap-up for id and records the call as abandoned.
func (c *Controller) AbandonWrapUp(_ context.Context, id calls.SessionID) error {
	c.mu.Lock()
	s, ok := c.pending[id]
	if !ok {
		c.mu.Unlock()
		return calls.ErrUnknownSession
	}
	delete(c.pending, id)
	c.outbox = append(c.outbox, effect{drop: id})
	s.Outcome = calls.OutcomeAbandoned
	c.appendHistoryLocked(s, calls.OutcomeAbandoned, false)
	c.pushLocked(Event{Kind: EventWrapUpAbandoned, Session: s.Clone(), From: s.State, To: s.State, Cause: CauseOperator})
	c.mu.Unlock()
	c.drain()
	return nil
}

// Subscribe registers fn for every Event. The returned func unsubscribes and
// may be called more than once.
func (c *Controller) Subscribe(fn func(Event)) func() {
	c.mu.Lock()
	c.nextSub++
	id := c.nextSub
	c.subs[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

// Recover restores a live session from the checkpoint store and re-arms its
// heuristics. Terminal or missing checkpoints leave the controller idle.
// Ended calls still waiting for a wrap-up are filed back as pending,
// including an ended call found in the live slot.
func (c *Controller) Recover(ctx context.Context) (calls.Session, bool, error) {
	if c.checkpoints == nil {
		return calls.Session{}, false, nil
	}
	s, ok, err := c.checkpoints.Load(ctx, c.cfg.AgentID)
	if err != nil {
		return calls.Session{}, false, fmt.Errorf("load checkpoint: %w", err)
	}
	waiting, err := c.checkpoints.LoadPending(ctx, c.cfg.AgentID)
	if err != nil {
		return calls.Session{}, false, fmt.Errorf("load pending wrap-ups: %w", err)
	}
	if ok && s.State == calls.StateEnded && s.Outcome == calls.OutcomePending {
		waiting = append(waiting, s)
	}

	c.mu.Lock()
	refiled := c.refileLocked(waiting)
	if ok && s.Version > c.version {
		c.version = s.Version
	}
	if !ok || !s.State.IsActive() || c.current != nil {
		c.mu.Unlock()
		c.drain()
		if refiled > 0 {
			c.log.Info("pending wrap-ups recovered", "count", refiled)
		}
		return calls.Session{}, false, nil
	}
	cur := s.Clone()
	c.current = &cur
	id := string(cur.ID)
	switch cur.State {
	case calls.StateDialing:
		c.detector.ArmAnswerWindow(id)
	case calls.StateConnected:
		if cur.ConnectedAt == nil {
			now := c.now()
			cur.ConnectedAt = &now
		}
		c.detector.ArmConnected(id, *cur.ConnectedAt)
	}
	c.pushLocked(Event{Kind: EventRecovered, Session: cur.Clone(), From: cur.State, To: cur.State, Cause: CauseRecovered})
	out := cur.Clone()
	c.mu.Unlock()
	c.drain()

	if refiled > 0 {
		c.log.Info("pending wrap-ups recovered", "count", refiled)
	}
	c.log.Info("call session recovered", "session_id", out.ID, "state", out.State)
	return out, true, nil
}

// refileLocked puts recovered ended calls back on the wrap-up list with their
// provisional history entry. Versions continue after the newest one seen.
func (c *Controller) refileLocked(waiting []calls.Session) int {
	n := 0
	for _, w := range waiting {
		if w.Version > c.version {
			c.version = w.Version
		}
		if _, dup := c.pending[w.ID]; dup || w.State != calls.StateEnded {
			continue
		}
		p := w.Clone()
		if p.EndedAt == nil {
			now := c.now()
			p.EndedAt = &now
		}
		p.Outcome = calls.OutcomePending
		c.pending[p.ID] = p
		c.appendHistoryLocked(p, calls.OutcomePending, true)
		c.outbox = append(c.outbox, effect{keep: &p})
		n++
	}
	return n
}

// HeuristicAnswered is called by the detector when the answer window elapses.
func (c *Controller) HeuristicAnswered(sessionID string) {
	c.mu.Lock()
	s := c.currentLocked(calls.SessionID(sessionID))
	if s == nil || s.State != calls.StateDialing {
		c.mu.Unlock()
		return
	}
	c.connectLocked(s, HeuristicCause(heuristics.KindAnswerWindow))
	c.mu.Unlock()
	c.drain()
}

// HeuristicEnded is called by the detector when a connected call is presumed over.
func (c *Controller) HeuristicEnded(sessionID string, kind heuristics.Kind) {
	c.mu.Lock()
	s := c.currentLocked(calls.SessionID(sessionID))
	if s == nil || s.State != calls.StateConnected {
		c.mu.Unlock()
		return
	}
	c.endLocked(s, HeuristicCause(kind))
	if kind == heuristics.KindMaxDuration {
		c.noteLocked(notify.LevelWarning, fmt.Sprintf("Call ended automatically after %s. Please complete the wrap-up.", c.detector.Config().MaxCallDuration))
	}
	c.mu.Unlock()
	c.drain()
}

// Wait blocks until background checkpoint writes have finished.
func (c *Controller) Wait() { c.bg.Wait() }

func (c *Controller) now() time.Time { return c.clock.Now().UTC() }

func (c *Controller) currentLocked(id calls.SessionID) *calls.Session {
	if c.current == nil || c.current.ID != id {
		return nil
	}
	return c.current
}

func (c *Controller) openLocked(dir calls.Direction, number string, ref *calls.CustomerRef) *calls.Session {
	s := &calls.Session{
		ID:          calls.NewSessionID(),
		AgentID:     c.cfg.AgentID,
		Direction:   dir,
		PhoneNumber: number,
		State:       calls.StateIdle,
		StartedAt:   c.now(),
	}
	if !ref.IsZero() {
		r := *ref
		s.Customer = &r
	}
	c.current = s
	return s
}

func (c *Controller) transitionLocked(s *calls.Session, to calls.State, cause string) {
	from := s.State
	if !from.CanTransitionTo(to) {
		c.log.Error("invalid transition", "session_id", s.ID, "from", from, "to", to)
		return
	}
	s.State = to
	c.version++
	s.Version = c.version
	c.pushLocked(Event{Kind: EventTransition, Session: s.Clone(), From: from, To: to, Cause: cause})
}

func (c *Controller) updatedLocked(s *calls.Session, cause string) {
	c.version++
	s.Version = c.version
	c.pushLocked(Event{Kind: EventUpdated, Session: s.Clone(), From: s.State, To: s.State, Cause: cause})
}

func (c *Controller) connectLocked(s *calls.Session, cause string) {
	now := c.now()
	s.ConnectedAt = &now
	c.detector.DisarmAnswerWindow(string(s.ID))
	c.transitionLocked(s, calls.StateConnected, cause)
	c.detector.ArmConnected(string(s.ID), now)
}

func (c *Controller) endLocked(s *calls.Session, cause string) {
	switch s.State {
	case calls.StateDialing:
		c.terminateLocked(s, calls.StateEnded, calls.OutcomeNoAnswer, cause)
	case calls.StateRinging:
		c.terminateLocked(s, calls.StateMissed, calls.OutcomeMissed, cause)
	case calls.StateConnected:
		c.terminateLocked(s, calls.StateEnded, calls.OutcomePending, cause)
	}
}

// terminateLocked moves s to a terminal state, records what the terminal
// state implies and returns the controller to idle.
func (c *Controller) terminateLocked(s *calls.Session, to calls.State, outcome calls.Outcome, cause string) {
	from := s.State
	now := c.now()
	c.detector.DisarmAll(string(s.ID))

	s.EndedAt = &now
	s.Outcome = outcome
	c.transitionLocked(s, to, cause)
	c.current = nil

	switch from {
	case calls.StateDialing:
		if to == calls.StateEnded {
			c.appendHistoryLocked(*s, calls.OutcomeNoAnswer, false)
		}
	case calls.StateRinging:
		if outcome == calls.OutcomeRejected {
			c.appendHistoryLocked(*s, calls.OutcomeRejected, false)
			return
		}
		c.missed.Add(history.MissedCall{
			SessionID: s.ID,
			Number:    s.PhoneNumber,
			Name:      customerName(s),
			Timestamp: now,
		})
		c.appendHistoryLocked(*s, calls.OutcomeMissed, false)
		c.noteLocked(notify.LevelInfo, "Missed call from "+s.CounterpartName())
	case calls.StateConnected:
		c.appendHistoryLocked(*s, calls.OutcomePending, true)
		p := s.Clone()
		c.pending[s.ID] = p
		c.outbox = append(c.outbox, effect{keep: &p})
	}
}

func (c *Controller) appendHistoryLocked(s calls.Session, outcome calls.Outcome, provisional bool) {
	e := history.EntryFromSession(s, outcome)
	e.Provisional = provisional
	e.Timestamp = c.now()
	c.history.Append(e)
}

func (c *Controller) pushLocked(ev Event) {
	ev.AgentID = c.cfg.AgentID
	if ev.At.IsZero() {
		ev.At = c.now()
	}
	c.outbox = append(c.outbox, effect{event: &ev})
}

func (c *Controller) noteLocked(level notify.Level, message string) {
	c.outbox = append(c.outbox, effect{level: level, message: message})
}

// drain delivers queued effects in order. Only one goroutine drains at a
// time; effects queued meanwhile are picked up by the active drainer.
func (c *Controller) drain() {
	c.mu.Lock()
	if c.draining {
		c.mu.Unlock()
		return
	}
	c.draining = true
	for len(c.outbox) > 0 {
		batch := c.outbox
		c.outbox = nil
		subs := make([]func(Event), 0, len(c.subs))
		ids := make([]uint64, 0, len(c.subs))
		for id := range c.subs {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			subs = append(subs, c.subs[id])
		}
		c.mu.Unlock()

		for _, fx := range batch {
			switch {
			case fx.keep != nil:
				c.keepPending(*fx.keep)
				continue
			case fx.drop != "":
				c.dropPending(fx.drop)
				continue
			case fx.event == nil:
				c.notifier.Notify(fx.level, fx.message)
				continue
			}
			ev := *fx.event
			if ev.Kind == EventTransition || ev.Kind == EventUpdated {
				c.checkpoint(ev.Session)
			}
			for _, fn := range subs {
				fn(ev)
			}
		}
		c.mu.Lock()
	}
	c.draining = false
	c.mu.Unlock()
}

func (c *Controller) checkpoint(s calls.Session) {
	if c.checkpoints == nil {
		return
	}
	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.CheckpointTimeout)
		defer cancel()
		err := c.checkpoints.Save(ctx, c.cfg.AgentID, s)
		switch {
		case err == nil:
		case errors.Is(err, checkpoint.ErrStale):
			c.log.Debug("checkpoint superseded", "session_id", s.ID, "version", s.Version)
		default:
			c.log.Warn("checkpoint write failed", "session_id", s.ID, "version", s.Version, "err", err)
		}
	}()
}

// keepPending and dropPending write through in drain order, so a drop can
// never land before the keep it undoes.
func (c *Controller) keepPending(s calls.Session) {
	if c.checkpoints == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.CheckpointTimeout)
	defer cancel()
	if err := c.checkpoints.SavePending(ctx, c.cfg.AgentID, s); err != nil {
		c.log.Warn("pending wrap-up write failed", "session_id", s.ID, "err", err)
	}
}

func (c *Controller) dropPending(id calls.SessionID) {
	if c.checkpoints == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.CheckpointTimeout)
	defer cancel()
	if err := c.checkpoints.DropPending(ctx, c.cfg.AgentID, id); err != nil {
		c.log.Warn("pending wrap-up removal failed", "session_id", id, "err", err)
	}
}

func (c *Controller) launch(ctx context.Context, number string) error {
	lctx, cancel := context.WithTimeout(ctx, c.cfg.LaunchTimeout)
	defer cancel()
	return c.launcher.Launch(lctx, number)
}

// resolveCustomer fills in the counterpart's display name when the caller did
// not supply one. Lookup errors are logged and otherwise ignored.
func (c *Controller) resolveCustomer(ctx context.Context, id calls.SessionID, number string, ref *calls.CustomerRef) {
	if c.customers == nil || (ref != nil && ref.DisplayName != "") {
		return
	}
	lctx, cancel := context.WithTimeout(ctx, c.cfg.LookupTimeout)
	defer cancel()

	var (
		found calls.CustomerRef
		err   error
	)
	switch {
	case ref != nil && ref.ID != "":
		found, err = c.customers.ByID(lctx, ref.ID)
	case number != "":
		found, err = c.customers.ByPhone(lctx, number)
	default:
		return
	}
	if err != nil {
		c.log.Debug("customer lookup failed", "session_id", id, "err", err)
		return
	}
	if found.IsZero() {
		return
	}

	c.mu.Lock()
	s := c.currentLocked(id)
	if s == nil {
		c.mu.Unlock()
		return
	}
	s.Customer = &found
	c.updatedLocked(s, CauseCustomer)
	c.mu.Unlock()
	c.drain()
}

func customerName(s *calls.Session) string {
	if s.Customer == nil {
		return ""
	}
	return s.Customer.DisplayName
}
