// Package heuristics infers call progress the softphone never reports.
//
// The softphone runs outside our control, so "answered" and "ended" are
// guessed from elapsed time and from the operator returning to the desk.
// None of these signals is ground truth; every delay is configurable.
package heuristics

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"collections-dialer/internal/timer"
	"collections-dialer/internal/visibility"
)

type Kind string

const (
	KindAnswerWindow     Kind = "answer_window"
	KindMaxDuration      Kind = "max_duration"
	KindForegroundReturn Kind = "foreground_return"
)

// Config holds heuristic tuning. Zero values fall back to the defaults below.
type Config struct {
	AnswerWindowMin  time.Duration
	AnswerWindowMax  time.Duration
	MaxCallDuration  time.Duration
	MinPlausibleCall time.Duration
}

const (
	DefaultAnswerWindowMin  = 5 * time.Second
	DefaultAnswerWindowMax  = 12 * time.Second
	DefaultMaxCallDuration  = time.Hour
	DefaultMinPlausibleCall = 30 * time.Second
)

func (c Config) WithDefaults() Config {
	out := c
	if out.AnswerWindowMin <= 0 {
		out.AnswerWindowMin = DefaultAnswerWindowMin
	}
	if out.AnswerWindowMax <= 0 {
		out.AnswerWindowMax = DefaultAnswerWindowMax
	}
	if out.AnswerWindowMax < out.AnswerWindowMin {
		out.AnswerWindowMax = out.AnswerWindowMin
	}
	if out.MaxCallDuration <= 0 {
		out.MaxCallDuration = DefaultMaxCallDuration
	}
	if out.MinPlausibleCall <= 0 {
		out.MinPlausibleCall = DefaultMinPlausibleCall
	}
	return out
}

// Handler receives heuristic verdicts. Verdicts may arrive for sessions that
// are no longer current; handlers must drop those silently.
type Handler interface {
	HeuristicAnswered(sessionID string)
	HeuristicEnded(sessionID string, kind Kind)
}

// Option configures a Detector.
type Option func(*Detector)

// WithRand replaces the random source used for the answer window.
// fn must return a value in [0, n).
func WithRand(fn func(n int64) int64) Option {
	return func(d *Detector) { d.randN = fn }
}

// WithFireHook registers a callback run whenever a heuristic produces a verdict.
func WithFireHook(fn func(Kind)) Option {
	return func(d *Detector) { d.onFire = fn }
}

// Detector arms and disarms the heuristics for one controller.
type Detector struct {
	cfg     Config
	sched   *timer.Scheduler
	signal  visibility.Signal
	handler Handler
	randN   func(n int64) int64
	onFire  func(Kind)

	mu   sync.Mutex
	subs map[string]func()
}

func New(cfg Config, sched *timer.Scheduler, signal visibility.Signal, opts ...Option) *Detector {
	d := &Detector{
		cfg:    cfg.WithDefaults(),
		sched:  sched,
		signal: signal,
		randN:  rand.Int64N,
		subs:   make(map[string]func()),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Bind sets the verdict handler. It must be called before any Arm method.
func (d *Detector) Bind(h Handler) { d.handler = h }

func (d *Detector) Config() Config { return d.cfg }

// Clock is the time source the heuristics measure elapsed time with.
func (d *Detector) Clock() clockwork.Clock { return d.sched.Clock() }

// Settle waits for verdicts whose timers are already due to be delivered.
func (d *Detector) Settle() { d.sched.Settle() }

// ArmedTotal counts timers pending across every session.
func (d *Detector) ArmedTotal() int { return d.sched.Len() }

// ArmAnswerWindow schedules an "answered" verdict after a random delay drawn
// uniformly from [AnswerWindowMin, AnswerWindowMax]. The randomness spreads
// false positives across simultaneous calls. It returns the chosen delay.
func (d *Detector) ArmAnswerWindow(sessionID string) time.Duration {
	delay := d.answerDelay()
	d.sched.Schedule(timer.Key{SessionID: sessionID, Name: string(KindAnswerWindow)}, delay, func() {
		d.fired(KindAnswerWindow)
		d.handler.HeuristicAnswered(sessionID)
	})
	return delay
}

func (d *Detector) DisarmAnswerWindow(sessionID string) {
	d.sched.Cancel(timer.Key{SessionID: sessionID, Name: string(KindAnswerWindow)})
}

// ArmConnected starts the max-duration safety net and the foreground-return
// heuristic for a session that connected at connectedAt.
func (d *Detector) ArmConnected(sessionID string, connectedAt time.Time) {
	now := d.sched.Clock().Now()
	remaining := d.cfg.MaxCallDuration - now.Sub(connectedAt)
	if remaining < 0 {
		remaining = 0
	}
	d.sched.Schedule(timer.Key{SessionID: sessionID, Name: string(KindMaxDuration)}, remaining, func() {
		d.fired(KindMaxDuration)
		d.handler.HeuristicEnded(sessionID, KindMaxDuration)
	})

	if d.signal == nil {
		return
	}
	unsub := d.signal.Subscribe(func() {
		elapsed := d.sched.Clock().Now().Sub(connectedAt)
		if elapsed < d.cfg.MinPlausibleCall {
			return
		}
		d.fired(KindForegroundReturn)
		d.handler.HeuristicEnded(sessionID, KindForegroundReturn)
	})

	d.mu.Lock()
	old := d.subs[sessionID]
	d.subs[sessionID] = unsub
	d.mu.Unlock()
	if old != nil {
		old()
	}
}

// DisarmConnected cancels the max-duration timer and drops the foreground subscription.
func (d *Detector) DisarmConnected(sessionID string) {
	d.sched.Cancel(timer.Key{SessionID: sessionID, Name: string(KindMaxDuration)})

	d.mu.Lock()
	unsub := d.subs[sessionID]
	delete(d.subs, sessionID)
	d.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// DisarmAll cancels everything armed for sessionID.
func (d *Detector) DisarmAll(sessionID string) {
	d.DisarmConnected(sessionID)
	d.sched.CancelSession(sessionID)
}

// Armed lists the timers pending for sessionID.
func (d *Detector) Armed(sessionID string) []string {
	return d.sched.Pending(sessionID)
}

// Subscribed reports whether the foreground heuristic is listening for sessionID.
func (d *Detector) Subscribed(sessionID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.subs[sessionID]
	return ok
}

func (d *Detector) answerDelay() time.Duration {
	lo, hi := d.cfg.AnswerWindowMin, d.cfg.AnswerWindowMax
	span := int64(hi - lo)
	if span <= 0 {
		return lo
	}
	return lo + time.Duration(d.randN(span+1))
}

func (d *Detector) fired(k Kind) {
	if d.onFire != nil {
		d.onFire(k)
	}
}
