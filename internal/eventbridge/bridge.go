// Package eventbridge mirrors desk call events onto MQTT topics so wallboards
// and supervisors can follow calls live.
package eventbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"collections-dialer/internal/calls"
	"collections-dialer/internal/dialer"
	"collections-dialer/internal/publisher"
)

const publishTimeout = 5 * time.Second

type payload struct {
	Event        string          `json:"event"`
	Description  string          `json:"description"`
	Kind         string          `json:"kind"`
	AgentID      string          `json:"agent_id"`
	CallID       string          `json:"call_id"`
	Direction    calls.Direction `json:"direction"`
	Number       string          `json:"number"`
	Name         string          `json:"name,omitempty"`
	From         string          `json:"from_state"`
	Cause        string          `json:"cause,omitempty"`
	Outcome      string          `json:"outcome,omitempty"`
	Version      int64           `json:"version"`
	Timestamp    string          `json:"timestamp"`
	TalkDuration *float64        `json:"talk_duration_seconds,omitempty"`
	Muted        *bool           `json:"muted,omitempty"`
	SpeakerOn    *bool           `json:"speaker_on,omitempty"`
}

var stateDescriptions = map[calls.State]string{
	calls.StateDialing:   "The softphone was asked to place the call",
	calls.StateRinging:   "An inbound call is ringing at the desk",
	calls.StateConnected: "The call is believed to be connected",
	calls.StateEnded:     "The call has ended",
	calls.StateMissed:    "The inbound call was not answered",
	calls.StateFailed:    "The call could not be placed or was cut off",
}

// Bridge queues controller events and publishes them from Run.
// Observe never blocks; a full queue drops the event.
type Bridge struct {
	pub    publisher.Publisher
	prefix string
	log    *slog.Logger
	queue  chan dialer.Event

	onDrop func()
}

func New(pub publisher.Publisher, prefix string, queue int, l *slog.Logger) *Bridge {
	if queue <= 0 {
		queue = 256
	}
	if l == nil {
		l = slog.Default()
	}
	return &Bridge{pub: pub, prefix: prefix, log: l, queue: make(chan dialer.Event, queue)}
}

// OnDrop registers a hook run for every dropped event.
func (b *Bridge) OnDrop(fn func()) { b.onDrop = fn }

// Observe is a dialer event subscriber.
func (b *Bridge) Observe(ev dialer.Event) {
	select {
	case b.queue <- ev:
	default:
		b.log.Warn("event bridge queue full, dropping event", "agent_id", ev.AgentID, "session_id", ev.Session.ID, "to", ev.To)
		if b.onDrop != nil {
			b.onDrop()
		}
	}
}

// Run publishes queued events until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-b.queue:
			if err := b.publish(ctx, ev); err != nil {
				b.log.Warn("event publish failed", "err", err)
			}
		}
	}
}

// Topic is <prefix>/agents/<agent>/call/<session>/<state>.
func Topic(prefix string, ev dialer.Event) string {
	return fmt.Sprintf("%s/agents/%s/call/%s/%s", prefix, ev.AgentID, ev.Session.ID, ev.To)
}

func (b *Bridge) publish(ctx context.Context, ev dialer.Event) error {
	s := ev.Session
	p := payload{
		Event:       string(ev.To),
		Description: stateDescriptions[ev.To],
		Kind:        string(ev.Kind),
		AgentID:     ev.AgentID,
		CallID:      string(s.ID),
		Direction:   s.Direction,
		Number:      s.PhoneNumber,
		From:        string(ev.From),
		Cause:       ev.Cause,
		Version:     s.Version,
		Timestamp:   ev.At.UTC().Format(time.RFC3339),
	}
	if s.Customer != nil {
		p.Name = s.Customer.DisplayName
	}
	if s.State.IsTerminal() {
		p.Outcome = string(s.Outcome)
		talk := s.TalkDuration().Seconds()
		p.TalkDuration = &talk
	}
	if s.State == calls.StateConnected {
		muted, speaker := s.Muted, s.SpeakerOn
		p.Muted = &muted
		p.SpeakerOn = &speaker
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	topic := Topic(b.prefix, ev)
	pctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	b.log.Debug("publishing", "topic", topic)
	return b.pub.Publish(pctx, topic, data)
}
