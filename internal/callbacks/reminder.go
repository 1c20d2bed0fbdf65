// Package callbacks reminds agents about callbacks they promised debtors.
package callbacks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"collections-dialer/internal/notify"
	"collections-dialer/internal/wrapup"
)

const (
	DefaultSchedule  = "@every 1m"
	DefaultLookahead = 15 * time.Minute
	DefaultBatch     = 100
)

// cronParser accepts standard 5-field expressions, an optional seconds field
// and descriptors such as @every.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

type Config struct {
	Schedule  string
	Lookahead time.Duration
	Batch     int
	// DedupeTTL is how long a reminder stays claimed. Defaults to one day.
	DedupeTTL time.Duration
}

// Notifiers returns the port that reaches an agent, or nil if the agent
// cannot be reached from this process.
type Notifiers func(ctx context.Context, agentID string) notify.Port

type Reminder struct {
	cfg      Config
	source   wrapup.CallbackSource
	dedupe   Dedupe
	notifier Notifiers
	log      *slog.Logger
	now      func() time.Time

	cron *cron.Cron
}

func NewReminder(cfg Config, source wrapup.CallbackSource, dedupe Dedupe, n Notifiers, l *slog.Logger) *Reminder {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.Lookahead <= 0 {
		cfg.Lookahead = DefaultLookahead
	}
	if cfg.Batch <= 0 {
		cfg.Batch = DefaultBatch
	}
	if cfg.DedupeTTL <= 0 {
		cfg.DedupeTTL = 24 * time.Hour
	}
	if l == nil {
		l = slog.Default()
	}
	if dedupe == nil {
		dedupe = NewMemoryDedupe(nil)
	}
	return &Reminder{cfg: cfg, source: source, dedupe: dedupe, notifier: n, log: l, now: time.Now}
}

// WithClock replaces the wall clock used to compute the scan horizon.
func (r *Reminder) WithClock(now func() time.Time) *Reminder {
	r.now = now
	return r
}

// Scan notifies agents about callbacks due within the lookahead and returns
// how many reminders were sent.
func (r *Reminder) Scan(ctx context.Context) (int, error) {
	if r.source == nil {
		return 0, fmt.Errorf("callbacks: source not configured")
	}
	due, err := r.source.ListDueCallbacks(ctx, r.now().Add(r.cfg.Lookahead), r.cfg.Batch)
	if err != nil {
		return 0, fmt.Errorf("list due callbacks: %w", err)
	}

	sent := 0
	for _, rec := range due {
		if rec.CallbackDate == nil {
			continue
		}
		key := rec.ID + ":" + rec.CallbackDate.UTC().Format(time.RFC3339)
		ok, err := r.dedupe.Claim(ctx, key, r.cfg.DedupeTTL)
		if err != nil {
			r.log.Warn("callback dedupe failed", "record_id", rec.ID, "err", err)
			continue
		}
		if !ok {
			continue
		}

		var port notify.Port
		if r.notifier != nil {
			port = r.notifier(ctx, rec.AgentID)
		}
		if port == nil {
			r.log.Info("callback due for unreachable agent", "agent_id", rec.AgentID, "record_id", rec.ID)
			continue
		}
		port.Notify(notify.LevelInfo, reminderText(rec))
		sent++
	}
	return sent, nil
}

func reminderText(rec wrapup.Record) string {
	who := rec.CounterpartName
	if who == "" {
		who = rec.PhoneNumber
	} else if rec.PhoneNumber != "" {
		who = fmt.Sprintf("%s (%s)", who, rec.PhoneNumber)
	}
	return fmt.Sprintf("Callback due at %s: %s", rec.CallbackDate.Local().Format("15:04 02 Jan"), who)
}

// Start registers the scan on the configured schedule and starts the ticker.
func (r *Reminder) Start(ctx context.Context) error {
	r.cron = cron.New(cron.WithParser(cronParser))
	_, err := r.cron.AddFunc(r.cfg.Schedule, func() {
		n, err := r.Scan(ctx)
		if err != nil {
			r.log.Error("callback scan failed", "err", err)
			return
		}
		if n > 0 {
			r.log.Info("callback reminders sent", "count", n)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid callback schedule %q: %w", r.cfg.Schedule, err)
	}
	r.cron.Start()
	r.log.Info("callback reminders scheduled", "schedule", r.cfg.Schedule)
	return nil
}

// Run starts the schedule and blocks until ctx is done.
func (r *Reminder) Run(ctx context.Context) error {
	if err := r.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	r.Stop()
	return nil
}

// Stop halts the ticker and waits for a running scan to finish.
func (r *Reminder) Stop() {
	if r.cron == nil {
		return
	}
	<-r.cron.Stop().Done()
}
