// Package visibility models "the operator brought the desk back to the
// foreground" as a host-agnostic subscription.
package visibility

import "sync"

// Signal delivers foreground-return events. The returned func unsubscribes
// and is safe to call more than once.
type Signal interface {
	Subscribe(fn func()) (unsubscribe func())
}

// Broadcaster is a Signal fed by the presentation layer (for example a page
// visibility change reported over HTTP).
type Broadcaster struct {
	mu   sync.RWMutex
	next uint64
	subs map[uint64]func()
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[uint64]func())}
}

func (b *Broadcaster) Subscribe(fn func()) func() {
	b.mu.Lock()
	b.next++
	id := b.next
	b.subs[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Fire notifies every current subscriber. Subscribers run outside the lock
// so they may unsubscribe from inside the callback.
func (b *Broadcaster) Fire() {
	b.mu.RLock()
	fns := make([]func(), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn()
	}
}

// Subscribers returns the number of active subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
