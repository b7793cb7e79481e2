package erd

import "sync"

// Handle identifies one subscription on an Event.
type Handle uint64

// Subscriber receives ERD values. A nil value means the ERD is no longer
// available. Subscribers must not retain or modify the slice.
type Subscriber func(value []byte)

// Event is a per-ERD subscriber set.
//
// Publish runs every subscriber synchronously on the caller's goroutine, in
// no particular order. Subscribers should return quickly; a slow subscriber
// holds up the device's whole message pipeline.
type Event struct {
	mu   sync.Mutex
	next Handle
	subs map[Handle]Subscriber
}

// NewEvent creates an empty Event.
func NewEvent() *Event {
	return &Event{subs: make(map[Handle]Subscriber)}
}

// Subscribe adds fn and returns the handle used to remove it.
func (e *Event) Subscribe(fn Subscriber) Handle {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.next++
	e.subs[e.next] = fn
	return e.next
}

// Unsubscribe removes the subscription for h. It reports false when h was
// not subscribed.
func (e *Event) Unsubscribe(h Handle) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.subs[h]; !ok {
		return false
	}
	delete(e.subs, h)
	return true
}

// Len returns the number of current subscribers.
func (e *Event) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs)
}

// Publish calls every current subscriber with value.
func (e *Event) Publish(value []byte) {
	e.mu.Lock()
	snapshot := make([]Subscriber, 0, len(e.subs))
	for _, fn := range e.subs {
		snapshot = append(snapshot, fn)
	}
	e.mu.Unlock()

	for _, fn := range snapshot {
		fn(value)
	}
}
