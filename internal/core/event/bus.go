package event

import (
	"reflect"
	"sync"
)

// Bus is a double-buffered event bus. Events emitted before a Flush are
// delivered by it, in emission order; events emitted by handlers during a
// Flush wait for the next one.
type Bus struct {
	mu       sync.Mutex
	front    []queued
	back     []queued
	handlers map[reflect.Type][]func(any)
}

type queued struct {
	typ   reflect.Type
	event any
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[reflect.Type][]func(any))}
}

func typeOf[T any]() reflect.Type { return reflect.TypeOf((*T)(nil)).Elem() }

// Emit queues an event into the back buffer.
func Emit[T any](b *Bus, event T) {
	b.mu.Lock()
	b.back = append(b.back, queued{typ: typeOf[T](), event: event})
	b.mu.Unlock()
}

// Subscribe registers a typed handler for events of type T.
func Subscribe[T any](b *Bus, fn func(T)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := typeOf[T]()
	b.handlers[t] = append(b.handlers[t], func(ev any) { fn(ev.(T)) })
}

// Pending reports the number of events waiting for the next Flush.
func (b *Bus) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.back)
}

// Flush swaps the buffers and delivers every event of the front buffer to
// its handlers.
func (b *Bus) Flush() {
	b.mu.Lock()
	b.front, b.back = b.back, b.front[:0]
	events := b.front
	b.mu.Unlock()

	for _, q := range events {
		b.mu.Lock()
		handlers := b.handlers[q.typ]
		b.mu.Unlock()
		for _, h := range handlers {
			h(q.event)
		}
	}
}
