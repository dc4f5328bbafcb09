// Package broadcast is an in-process pub/sub bus connecting execution
// contexts that share one durable store, such as two clients opened on the
// same data directory.
//
// Every publisher and subscriber identifies itself with an origin. A
// subscriber never receives events published under its own origin, so a
// context learns only about changes made elsewhere.
package broadcast

import (
	"sort"
	"sync"
)

// Event reports that the value under Key was replaced. A nil Value means the
// key was cleared.
type Event struct {
	Origin string
	Key    string
	Value  []byte
}

type subscriber struct {
	origin string
	key    string
	fn     func(Event)
}

// Bus fans events out to subscribers. The zero value is not usable; call New.
type Bus struct {
	mu   sync.Mutex
	next int
	subs map[int]subscriber
}

func New() *Bus {
	return &Bus{subs: make(map[int]subscriber)}
}

// Subscribe registers fn for events on key published by any origin other
// than origin. The returned function removes the subscription; calling it
// more than once is harmless.
func (b *Bus) Subscribe(origin, key string, fn func(Event)) (unsubscribe func()) {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = subscriber{origin: origin, key: key, fn: fn}
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

// Publish delivers ev to matching subscribers in subscription order. Callbacks
// run on the publishing goroutine after the bus lock is released, so they may
// publish or unsubscribe themselves.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	ids := make([]int, 0, len(b.subs))
	for id, s := range b.subs {
		if s.key == ev.Key && s.origin != ev.Origin {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	targets := make([]func(Event), len(ids))
	for i, id := range ids {
		targets[i] = b.subs[id].fn
	}
	b.mu.Unlock()

	for _, fn := range targets {
		fn(ev)
	}
}

// Len returns the number of live subscriptions.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
