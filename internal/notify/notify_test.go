package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"collections-dialer/internal/publisher"
)

func TestFeed_SinceAndWrap(t *testing.T) {
	f := NewFeed("a1", 3)
	for _, msg := range []string{"one", "two", "three", "four"} {
		f.Notify(LevelInfo, msg)
	}

	all := f.Since(0)
	if len(all) != 3 || all[0].Message != "two" || all[2].Message != "four" {
		t.Fatalf("unexpected feed contents: %+v", all)
	}
	if got := f.Since(3); len(got) != 1 || got[0].Message != "four" {
		t.Fatalf("unexpected since result: %+v", got)
	}
	last, ok := f.Last()
	if !ok || last.ID != 4 || last.AgentID != "a1" {
		t.Fatalf("unexpected last: %+v", last)
	}
}

func TestFeed_Empty(t *testing.T) {
	f := NewFeed("a1", 0)
	if _, ok := f.Last(); ok {
		t.Fatalf("expected empty feed")
	}
	if len(f.Since(0)) != 0 {
		t.Fatalf("expected no notifications")
	}
}

type capture struct{ levels []Level }

func (c *capture) Notify(l Level, _ string) { c.levels = append(c.levels, l) }

func TestMulti_FansOut(t *testing.T) {
	a, b := &capture{}, &capture{}
	Multi{a, nil, b}.Notify(LevelWarning, "x")
	if len(a.levels) != 1 || len(b.levels) != 1 {
		t.Fatalf("expected both ports notified")
	}
}

func TestPublisher_PublishesPerAgentTopic(t *testing.T) {
	mock := publisher.NewMockPublisher()
	p := NewPublisher(mock, "dialer", 4, nil)
	p.For("agent-7").Notify(LevelWarning, "wrap-up saved locally")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = p.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for len(mock.Messages()) == 0 {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for publish")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done

	msg := mock.Messages()[0]
	if msg.Topic != "dialer/agents/agent-7/notifications" {
		t.Fatalf("unexpected topic %q", msg.Topic)
	}
	var n Notification
	if err := json.Unmarshal(msg.Payload, &n); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if n.Level != LevelWarning || n.AgentID != "agent-7" {
		t.Fatalf("unexpected payload: %+v", n)
	}
}

func TestPublisher_DropsWhenQueueFull(t *testing.T) {
	p := NewPublisher(publisher.NewMockPublisher(), "dialer", 1, nil)
	port := p.For("a")
	port.Notify(LevelInfo, "first")
	port.Notify(LevelInfo, "second")
	if len(p.queue) != 1 {
		t.Fatalf("expected queue to hold one notification, got %d", len(p.queue))
	}
}
