package events

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/yungbote/maigie-backend/internal/platform/logger"
)

// MemoryBus delivers events synchronously to in-process subscribers.
// Handler errors and panics are logged and never fail the publish.
type MemoryBus struct {
	log    *logger.Logger
	reg    *registry
	closed atomic.Bool
}

func NewMemoryBus(baseLog *logger.Logger) *MemoryBus {
	return &MemoryBus{log: baseLog.With("component", "MemoryEventBus"), reg: newRegistry()}
}

func (b *MemoryBus) Publish(ctx context.Context, ev DomainEvent) error {
	if b.closed.Load() {
		return ErrBusClosed
	}
	for _, s := range b.reg.handlersFor(ev.Type) {
		if err := deliver(ctx, s.h, ev); err != nil {
			b.log.Warn("event handler failed", "event_type", ev.Type, "event_id", ev.EventID, "error", err)
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(eventType string, h Handler) func() {
	return b.reg.add(eventType, h)
}

func (b *MemoryBus) Close() error {
	b.closed.Store(true)
	return nil
}

func deliver(ctx context.Context, h Handler, ev DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, ev)
}
