package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"collections-dialer/internal/dialer"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// There are no Update or Delete methods.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service records desk activity for supervisors.
//
// IMPORTANT:
// - Callers should treat audit logging as best-effort.
// - Observe never blocks the controller; Run performs the writes.
type Service struct {
	repo  Repository
	clock func() time.Time
	log   *slog.Logger
	queue chan Event
}

const appendTimeout = 3 * time.Second

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now, log: slog.Default(), queue: make(chan Event, 256)}
}

// WithLogger sets the logger used for dropped or failed writes.
func (s *Service) WithLogger(l *slog.Logger) *Service {
	if l != nil {
		s.log = l
	}
	return s
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.AgentID == "" {
		return ErrInvalidEvent
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogMissedCleared records an agent clearing the missed-call queue.
func (s *Service) LogMissedCleared(ctx context.Context, agentID string, cleared int) error {
	return s.Append(ctx, Event{
		AgentID: agentID,
		Type:    EventTypeMissedCleared,
		Message: fmt.Sprintf("cleared %d missed calls", cleared),
	})
}

// FromDialer converts a controller event into an audit event.
func FromDialer(ev dialer.Event) Event {
	e := Event{
		AgentID:   ev.AgentID,
		SessionID: string(ev.Session.ID),
		FromState: string(ev.From),
		ToState:   string(ev.To),
		Cause:     ev.Cause,
		Version:   ev.Session.Version,
		CreatedAt: ev.At,
	}
	switch ev.Kind {
	case dialer.EventTransition:
		e.Type = EventTypeTransition
		e.Message = fmt.Sprintf("%s -> %s", ev.From, ev.To)
	case dialer.EventUpdated:
		e.Type = EventTypeCallUpdated
		e.Message = ev.Cause
	case dialer.EventRecovered:
		e.Type = EventTypeCallRecovered
		e.Message = "session restored from checkpoint"
	case dialer.EventWrapUpCompleted:
		e.Type = EventTypeWrapUpCompleted
		e.Message = "wrap-up recorded: " + string(ev.Session.Outcome)
	case dialer.EventWrapUpAbandoned:
		e.Type = EventTypeWrapUpAbandoned
		e.Message = "wrap-up abandoned"
	}
	if ev.Session.FailureReason != "" || ev.Session.Outcome != "" {
		meta, err := json.Marshal(map[string]string{
			"outcome":        string(ev.Session.Outcome),
			"failure_reason": ev.Session.FailureReason,
			"direction":      string(ev.Session.Direction),
		})
		if err == nil {
			e.Metadata = string(meta)
		}
	}
	return e
}

// Observe is a dialer event subscriber. When the queue is full the event is
// dropped and logged.
func (s *Service) Observe(ev dialer.Event) {
	select {
	case s.queue <- FromDialer(ev):
	default:
		s.log.Warn("audit queue full, dropping event", "agent_id", ev.AgentID, "session_id", ev.Session.ID)
	}
}

// Run writes queued events until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-s.queue:
			actx, cancel := context.WithTimeout(ctx, appendTimeout)
			if err := s.Append(actx, e); err != nil {
				s.log.Warn("audit append failed", "agent_id", e.AgentID, "type", e.Type, "err", err)
			}
			cancel()
		}
	}
}
