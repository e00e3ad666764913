package app

import (
	"context"

	"github.com/yungbote/maigie-backend/internal/events"
	"github.com/yungbote/maigie-backend/internal/platform/logger"
)

// subscribeEventLog records every delivered domain event. Analytics and
// notification consumers read the same stream out of process.
func subscribeEventLog(baseLog *logger.Logger, bus events.Bus) []func() {
	log := baseLog.With("component", "EventLog")
	unsub := bus.Subscribe(events.AnyType, func(ctx context.Context, ev events.DomainEvent) error {
		log.Info("domain event",
			"event_id", ev.EventID,
			"type", ev.Type,
			"user_id", ev.UserID,
			"request_id", ev.Metadata.RequestID,
		)
		return nil
	})
	return []func(){unsub}
}
