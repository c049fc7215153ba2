package fleet

import (
	"log/slog"
	"sync"
)

// Bus is an in-process, synchronous publish-subscribe event dispatcher,
// per spec.md §4.1/§9: subscribers keyed by event name, stored in
// registration order, with no inheritance and no magic. Emit is
// synchronous so tests can assert on event order deterministically.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[string][]subscription
}

type subscription struct {
	id int
	cb func(any)
}

// NewBus returns an empty Bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string][]subscription)}
}

// On registers cb for event, returning an unsubscribe function. Safe to
// call concurrently with Emit.
func (b *Bus) On(event string, cb func(any)) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[event] = append(b.subs[event], subscription{id: id, cb: cb})
	b.mu.Unlock()
	return func() { b.off(event, id) }
}

func (b *Bus) off(event string, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[event]
	for i, s := range subs {
		if s.id == id {
			b.subs[event] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Emit calls every subscriber of event, in registration order, with
// payload. A subscriber that panics is logged and does not prevent the
// remaining subscribers from running.
func (b *Bus) Emit(event string, payload any) {
	b.mu.Lock()
	subs := append([]subscription(nil), b.subs[event]...)
	b.mu.Unlock()

	for _, s := range subs {
		b.safeCall(event, s.cb, payload)
	}
}

func (b *Bus) safeCall(event string, cb func(any), payload any) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("fleet: event subscriber panicked", "event", event, "panic", r)
		}
	}()
	cb(payload)
}
