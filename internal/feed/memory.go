// internal/feed/memory.go
package feed

import (
	"sync"
	"time"
)

// InMemoryFeed fans events out to in-process handlers. It is the
// default feed when no broker is configured, and what tests subscribe
// to.
type InMemoryFeed struct {
	mu       sync.Mutex
	handlers []func(Event)
	events   []Event
}

// NewInMemoryFeed creates a new feed
func NewInMemoryFeed() *InMemoryFeed {
	return &InMemoryFeed{}
}

// Subscribe adds a handler invoked synchronously on every publish.
func (f *InMemoryFeed) Subscribe(handler func(Event)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers = append(f.handlers, handler)
}

// Publish delivers the event to all subscribers and retains it for
// inspection.
func (f *InMemoryFeed) Publish(ev Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	f.mu.Lock()
	f.events = append(f.events, ev)
	handlers := append([]func(Event){}, f.handlers...)
	f.mu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
	return nil
}

// Events returns a copy of everything published so far.
func (f *InMemoryFeed) Events() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Event{}, f.events...)
}

// ByType filters retained events by type.
func (f *InMemoryFeed) ByType(eventType string) []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Event
	for _, ev := range f.events {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

var _ Feed = (*InMemoryFeed)(nil)
