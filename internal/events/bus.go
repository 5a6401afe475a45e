package events

import (
	"sync"
	"time"
)

// Handler processes an event. Handlers run on the bus's dispatch goroutine,
// one event at a time, in emit order.
type Handler func(Event)

// Bus provides event distribution across components
type Bus struct {
	Capacity int

	events chan Event
	done   chan struct{}

	handlersMu sync.RWMutex
	handlers   []Handler

	// closeMu guards closed and the send in Emit so Close never races a send
	closeMu sync.RWMutex
	closed  bool

	pendingMu sync.Mutex
	pendingCv *sync.Cond
	pending   int

	now func() time.Time
}

// NewBus creates a new event bus with the specified capacity and starts
// its dispatch goroutine
func NewBus(capacity int) *Bus {
	b := &Bus{
		Capacity: capacity,
		events:   make(chan Event, capacity),
		done:     make(chan struct{}),
		now:      time.Now,
	}
	b.pendingCv = sync.NewCond(&b.pendingMu)
	go b.dispatch()
	return b
}

// Subscribe registers a handler for all subsequent events
func (b *Bus) Subscribe(h Handler) {
	if b == nil {
		return
	}
	b.handlersMu.Lock()
	defer b.handlersMu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Emit stamps the event time (if unset) and queues it for dispatch. It
// blocks while the buffer is full. Events emitted after Close are dropped.
// Emit on a nil bus is a no-op.
func (b *Bus) Emit(e Event) {
	if b == nil {
		return
	}
	if e.Time.IsZero() {
		e.Time = b.now()
	}

	b.closeMu.RLock()
	defer b.closeMu.RUnlock()
	if b.closed {
		return
	}

	b.pendingMu.Lock()
	b.pending++
	b.pendingMu.Unlock()

	b.events <- e
}

// Wait blocks until every event emitted so far has been handled
func (b *Bus) Wait() {
	if b == nil {
		return
	}
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	for b.pending > 0 {
		b.pendingCv.Wait()
	}
}

// Close drains queued events and stops the dispatch goroutine.
// Safe to call more than once.
func (b *Bus) Close() error {
	if b == nil {
		return nil
	}
	b.closeMu.Lock()
	if !b.closed {
		b.closed = true
		close(b.events)
	}
	b.closeMu.Unlock()

	<-b.done
	return nil
}

func (b *Bus) dispatch() {
	defer close(b.done)

	for e := range b.events {
		b.handlersMu.RLock()
		handlers := b.handlers
		b.handlersMu.RUnlock()

		for _, h := range handlers {
			h(e)
		}

		b.pendingMu.Lock()
		b.pending--
		if b.pending == 0 {
			b.pendingCv.Broadcast()
		}
		b.pendingMu.Unlock()
	}
}
