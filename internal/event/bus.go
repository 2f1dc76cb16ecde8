// Package event provides the publish/subscribe bus that decouples the
// client layer, the version watcher, and the infoview.
package event

import (
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// Topic names an event stream.
type Topic string

// Topics published by leanview components.
const (
	// TopicCursorMoved fires when the viewer cursor moves.
	TopicCursorMoved Topic = "cursor.moved"
	// TopicGoalsUpdated fires when a goal request resolves.
	TopicGoalsUpdated Topic = "goals.updated"
	// TopicDiagnostics fires when a client publishes diagnostics.
	TopicDiagnostics Topic = "diagnostics.updated"
	// TopicFileProgress fires on $/lean/fileProgress updates.
	TopicFileProgress Topic = "file.progress"
	// TopicClientEvent fires on client lifecycle transitions.
	TopicClientEvent Topic = "client.event"
	// TopicVersionChanged fires when a root's toolchain changes.
	TopicVersionChanged Topic = "version.changed"
)

// Handler receives published events for a topic.
type Handler func(event any)

// PanicHandler is invoked when a subscriber panics.
type PanicHandler func(topic Topic, panicValue any, stack []byte)

// Subscription identifies a registered handler.
type Subscription struct {
	bus   *Bus
	topic Topic
	id    uint64
}

// Unsubscribe removes the handler; safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.bus == nil {
		return
	}
	s.bus.remove(s.topic, s.id)
	s.bus = nil
}

type entry struct {
	id      uint64
	handler Handler
}

// Bus is a synchronous publish/subscribe dispatcher. Handlers run on
// the publisher's goroutine in subscription order; a panicking handler
// is recovered and does not stop dispatch.
type Bus struct {
	mu      sync.RWMutex
	subs    map[Topic][]entry
	nextID  atomic.Uint64
	onPanic PanicHandler
}

// BusOption configures the bus.
type BusOption func(*Bus)

// WithPanicHandler sets the recovery callback for panicking handlers.
func WithPanicHandler(ph PanicHandler) BusOption {
	return func(b *Bus) {
		b.onPanic = ph
	}
}

// NewBus creates an empty bus.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{subs: make(map[Topic][]entry)}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a handler for a topic.
func (b *Bus) Subscribe(topic Topic, handler Handler) *Subscription {
	id := b.nextID.Add(1)

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], entry{id: id, handler: handler})
	b.mu.Unlock()

	return &Subscription{bus: b, topic: topic, id: id}
}

// Publish delivers an event to every subscriber of the topic.
func (b *Bus) Publish(topic Topic, event any) {
	b.mu.RLock()
	entries := b.subs[topic]
	snapshot := make([]entry, len(entries))
	copy(snapshot, entries)
	b.mu.RUnlock()

	for _, e := range snapshot {
		b.invoke(topic, e.handler, event)
	}
}

func (b *Bus) invoke(topic Topic, handler Handler, event any) {
	defer func() {
		if r := recover(); r != nil && b.onPanic != nil {
			b.onPanic(topic, r, debug.Stack())
		}
	}()
	handler(event)
}

// SubscriberCount returns the number of handlers on a topic.
func (b *Bus) SubscriberCount(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

func (b *Bus) remove(topic Topic, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries := b.subs[topic]
	for i, e := range entries {
		if e.id == id {
			b.subs[topic] = append(entries[:i:i], entries[i+1:]...)
			return
		}
	}
}
