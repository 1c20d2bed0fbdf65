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
	"golang.org/x/sync/singleflight"

	"collections-dialer/internal/checkpoint"
	"collections-dialer/internal/heuristics"
	"collections-dialer/internal/history"
	"collections-dialer/internal/notify"
	"collections-dialer/internal/phone"
	"collections-dialer/internal/timer"
	"collections-dialer/internal/visibility"
	"collections-dialer/internal/wrapup"
	"collections-dialer/pkg/logger"
)

var ErrNoAgent = errors.New("dialer: agent id is required")

// DefaultWrapUpRetryInterval paces RunWrapUpRetries when no interval is given.
const DefaultWrapUpRetryInterval = time.Minute

// RegistryConfig is shared by every desk the registry builds.
type RegistryConfig struct {
	Controller Config
	Heuristics heuristics.Config
	WrapUp     wrapup.Config
	FeedSize   int

	Launcher    Launcher
	Customers   CustomerLookup
	Checkpoints checkpoint.Store
	WrapUpStore wrapup.Store
	Normalizer  phone.Normalizer

	// Clock defaults to the real clock. Tests pass a clockwork.FakeClock.
	Clock clockwork.Clock
	// HeuristicOptions are applied to every desk's detector.
	HeuristicOptions []heuristics.Option
	// Notifier, when set, receives every desk's notifications in addition to its feed.
	Notifier func(agentID string) notify.Port
	// Observers are subscribed to every desk's controller.
	Observers []func(Event)

	Logger *slog.Logger
}

// Registry creates one Desk per agent on first use.
type Registry struct {
	cfg RegistryConfig
	log *slog.Logger

	mu    sync.Mutex
	desks map[string]*Desk
	// creating holds first-use builds so that concurrent first requests
	// share one desk and none sees it before recovery finished.
	creating singleflight.Group
}

func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Registry{cfg: cfg, log: cfg.Logger, desks: make(map[string]*Desk)}
}

// Desk returns the agent's desk, building it and recovering any checkpointed
// call on first use.
func (r *Registry) Desk(ctx context.Context, agentID string) (*Desk, error) {
	if agentID == "" {
		return nil, ErrNoAgent
	}

	if d, ok := r.Lookup(agentID); ok {
		return d, nil
	}

	v, err, _ := r.creating.Do(agentID, func() (any, error) {
		if d, ok := r.Lookup(agentID); ok {
			return d, nil
		}
		d, err := r.build(agentID)
		if err != nil {
			return nil, err
		}
		if _, _, err := d.Controller.Recover(ctx); err != nil {
			r.log.Warn("checkpoint recovery failed", "agent_id", agentID, "err", err)
		}

		r.mu.Lock()
		r.desks[agentID] = d
		r.mu.Unlock()
		return d, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Desk), nil
}

// Lookup returns an existing desk without creating one.
func (r *Registry) Lookup(agentID string) (*Desk, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.desks[agentID]
	return d, ok
}

// Desks returns every desk sorted by agent id.
func (r *Registry) Desks() []*Desk {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Desk, 0, len(r.desks))
	for _, d := range r.desks {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AgentID < out[j].AgentID })
	return out
}

// RetryWrapUps resends failed wrap-up writes on every desk.
func (r *Registry) RetryWrapUps(ctx context.Context) (int, error) {
	var (
		saved int
		errs  []error
	)
	for _, d := range r.Desks() {
		n, err := d.RetryWrapUps(ctx)
		saved += n
		if err != nil {
			errs = append(errs, fmt.Errorf("agent %s: %w", d.AgentID, err))
		}
	}
	return saved, errors.Join(errs...)
}

// RunWrapUpRetries calls RetryWrapUps every interval until ctx is done.
func (r *Registry) RunWrapUpRetries(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultWrapUpRetryInterval
	}
	t := r.cfg.Clock.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.Chan():
			n, err := r.RetryWrapUps(ctx)
			if n > 0 {
				r.log.Info("queued wrap-ups persisted", "count", n)
			}
			if err != nil {
				r.log.Warn("wrap-up retry incomplete", "err", err)
			}
		}
	}
}

// Close shuts every desk down.
func (r *Registry) Close() {
	for _, d := range r.Desks() {
		d.Close()
	}
}

func (r *Registry) build(agentID string) (*Desk, error) {
	l := logger.ForCall(r.log, agentID, "")

	sched := timer.NewScheduler(r.cfg.Clock)
	signal := visibility.NewBroadcaster()
	detector := heuristics.New(r.cfg.Heuristics, sched, signal, r.cfg.HeuristicOptions...)

	clockNow := r.cfg.Clock.Now
	hist := history.NewLogWithClock(clockNow)
	missed := history.NewMissedTrackerWithClock(clockNow)
	feed := notify.NewFeed(agentID, r.cfg.FeedSize)

	notifier := notify.Multi{feed, notify.NewLogger(l)}
	if r.cfg.Notifier != nil {
		if extra := r.cfg.Notifier(agentID); extra != nil {
			notifier = append(notifier, extra)
		}
	}

	ccfg := r.cfg.Controller
	ccfg.AgentID = agentID
	ctl, err := New(ccfg, Deps{
		Launcher:    r.cfg.Launcher,
		Detector:    detector,
		History:     hist,
		Missed:      missed,
		Customers:   r.cfg.Customers,
		Checkpoints: r.cfg.Checkpoints,
		Notifier:    notifier,
		Normalizer:  r.cfg.Normalizer,
		Logger:      r.log,
	})
	if err != nil {
		return nil, err
	}
	for _, obs := range r.cfg.Observers {
		ctl.Subscribe(obs)
	}

	rec := wrapup.NewRecorder(r.cfg.WrapUpStore, hist, notifier, l, r.cfg.WrapUp)

	return &Desk{
		AgentID:    agentID,
		Controller: ctl,
		History:    hist,
		Missed:     missed,
		Recorder:   rec,
		Feed:       feed,
		Foreground: signal,
		Notifier:   notifier,
		scheduler:  sched,
	}, nil
}
