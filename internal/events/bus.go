package events

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// AnyType subscribes a handler to every event type.
const AnyType = "*"

var ErrBusClosed = errors.New("event bus closed")

type Handler func(ctx context.Context, ev DomainEvent) error

// Bus is append-only and safe for concurrent publishers.
type Bus interface {
	Publish(ctx context.Context, ev DomainEvent) error
	Subscribe(eventType string, h Handler) (unsubscribe func())
	Close() error
}

type subscription struct {
	id        uint64
	eventType string
	h         Handler
}

type registry struct {
	mu   sync.RWMutex
	seq  uint64
	subs map[uint64]subscription
}

func newRegistry() *registry {
	return &registry{subs: map[uint64]subscription{}}
}

func (r *registry) add(eventType string, h Handler) func() {
	r.mu.Lock()
	r.seq++
	id := r.seq
	r.subs[id] = subscription{id: id, eventType: eventType, h: h}
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subs, id)
			r.mu.Unlock()
		})
	}
}

// handlersFor returns matching handlers in subscription order.
func (r *registry) handlersFor(eventType string) []subscription {
	r.mu.RLock()
	out := make([]subscription, 0, len(r.subs))
	for _, s := range r.subs {
		if s.eventType == eventType || s.eventType == AnyType {
			out = append(out, s)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}
