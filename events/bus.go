// Package events carries state-change notifications between otherwise
// uncoupled views. The set of listeners is dynamic and page-dependent, so
// publishers broadcast rather than call views directly.
package events

import "sync"

// ExtrasChanged is published whenever the extras elevation state flips,
// whether by manual activation, automatic elevation, deactivation, or a key
// rotation invalidating the current token.
type ExtrasChanged struct {
	Active bool
}

// Bus is a synchronous fan-out. Dispatch runs on the publisher's goroutine,
// matching the single-threaded UI event model. Views subscribe once at mount
// and call the returned unsubscribe at teardown; unsubscribing during a
// dispatch is safe.
type Bus struct {
	mu   sync.Mutex
	next int
	subs map[int]func(ExtrasChanged)
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]func(ExtrasChanged))}
}

// Subscribe registers fn and returns its unsubscribe function.
func (b *Bus) Subscribe(fn func(ExtrasChanged)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	b.subs[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// Publish delivers ev to every current subscriber.
func (b *Bus) Publish(ev ExtrasChanged) {
	b.mu.Lock()
	fns := make([]func(ExtrasChanged), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
