// Package events is a tiny in-process pub/sub bus. The state machine
// publishes an event per transition and per ApplyResult/VerificationResult;
// an embedder (a future HTTP surface, the scheduled task runner, tests)
// subscribes without reaching into state-machine internals.
package events

import "sync"

// Event is a reduced, stable representation of something the machine did.
type Event struct {
	Category string
	Type     string
	Fields   map[string]any
}

// Observer receives events.
type Observer func(Event)

// Bus fan-outs published events to every registered observer.
type Bus interface {
	Subscribe(o Observer) (unsubscribe func())
	Publish(ev Event)
}

type bus struct {
	mu        sync.RWMutex
	observers map[int]Observer
	nextID    int
}

// NewBus returns an empty, ready-to-use Bus.
func NewBus() Bus { return &bus{observers: make(map[int]Observer)} }

func (b *bus) Subscribe(o Observer) func() {
	if o == nil {
		return func() {}
	}
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.observers[id] = o
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.observers, id)
		b.mu.Unlock()
	}
}

func (b *bus) Publish(ev Event) {
	b.mu.RLock()
	observers := make([]Observer, 0, len(b.observers))
	for _, o := range b.observers {
		observers = append(observers, o)
	}
	b.mu.RUnlock()
	for _, o := range observers {
		o(ev)
	}
}
