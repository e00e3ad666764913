package outboxreplay

import (
	"context"
	"errors"
)

// Replayer republishes one batch of due outbox events.
type Replayer interface {
	ReplayOnce(ctx context.Context) (int, error)
}

type Activities struct {
	Outbox Replayer
}

func (a *Activities) ReplayBatch(ctx context.Context) (BatchResult, error) {
	if a == nil || a.Outbox == nil {
		return BatchResult{}, errors.New("outboxreplay: activity not configured")
	}
	n, err := a.Outbox.ReplayOnce(ctx)
	return BatchResult{Delivered: n}, err
}
