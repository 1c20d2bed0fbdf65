package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"collections-dialer/internal/publisher"
)

const publishTimeout = 5 * time.Second

// Publisher forwards notifications to the broker under
// <prefix>/agents/<agent>/notifications. Delivery happens on the Run
// goroutine; when the queue is full the notification is dropped and logged.
type Publisher struct {
	pub    publisher.Publisher
	prefix string
	log    *slog.Logger
	clock  func() time.Time
	queue  chan Notification
}

func NewPublisher(pub publisher.Publisher, prefix string, queue int, l *slog.Logger) *Publisher {
	if queue <= 0 {
		queue = 64
	}
	if l == nil {
		l = slog.Default()
	}
	return &Publisher{
		pub:    pub,
		prefix: prefix,
		log:    l,
		clock:  time.Now,
		queue:  make(chan Notification, queue),
	}
}

// For returns a Port that tags notifications with agentID.
func (p *Publisher) For(agentID string) Port {
	return agentPort{p: p, agentID: agentID}
}

type agentPort struct {
	p       *Publisher
	agentID string
}

func (a agentPort) Notify(level Level, message string) {
	a.p.enqueue(Notification{AgentID: a.agentID, Level: level, Message: message, CreatedAt: a.p.clock().UTC()})
}

func (p *Publisher) enqueue(n Notification) {
	select {
	case p.queue <- n:
	default:
		p.log.Warn("notification dropped", "agent_id", n.AgentID, "level", n.Level)
	}
}

// Run drains the queue until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-p.queue:
			p.publish(ctx, n)
		}
	}
}

func (p *Publisher) topic(agentID string) string {
	return fmt.Sprintf("%s/agents/%s/notifications", p.prefix, agentID)
}

func (p *Publisher) publish(ctx context.Context, n Notification) {
	data, err := json.Marshal(n)
	if err != nil {
		p.log.Error("marshal notification", "err", err)
		return
	}
	topic := p.topic(n.AgentID)
	pctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := p.pub.Publish(pctx, topic, data); err != nil {
		p.log.Warn("publish notification failed", "topic", topic, "err", err)
	}
}
