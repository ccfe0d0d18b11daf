package rxflow

import (
	"sync"

	"github.com/google/uuid"
)

type listener[E any] struct {
	id uuid.UUID
	f  func(E)
}

// EventEmitter is an in-process host event source. Listeners are registered
// per event name and notified in registration order.
type EventEmitter[E any] struct {
	mu        sync.RWMutex
	listeners map[string][]listener[E]
}

func NewEventEmitter[E any]() *EventEmitter[E] {
	return &EventEmitter[E]{
		listeners: make(map[string][]listener[E]),
	}
}

// AddEventListener registers f for name and returns its removal function.
// Removing twice is a no-op.
func (em *EventEmitter[E]) AddEventListener(name string, f func(E)) func() {
	id := uuid.New()
	em.mu.Lock()
	em.listeners[name] = append(em.listeners[name], listener[E]{id: id, f: f})
	em.mu.Unlock()

	return func() {
		em.mu.Lock()
		defer em.mu.Unlock()
		ls := em.listeners[name]
		for i, l := range ls {
			if l.id == id {
				em.listeners[name] = append(ls[:i:i], ls[i+1:]...)
				break
			}
		}
		if len(em.listeners[name]) == 0 {
			delete(em.listeners, name)
		}
	}
}

// Emit calls every listener of name registered at the time of the call.
func (em *EventEmitter[E]) Emit(name string, e E) {
	em.mu.RLock()
	ls := append([]listener[E](nil), em.listeners[name]...)
	em.mu.RUnlock()
	for _, l := range ls {
		l.f(e)
	}
}

func (em *EventEmitter[E]) ListenerCount(name string) int {
	em.mu.RLock()
	defer em.mu.RUnlock()
	return len(em.listeners[name])
}
