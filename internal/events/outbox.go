package events

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	repos "github.com/yungbote/maigie-backend/internal/data/repos"
	types "github.com/yungbote/maigie-backend/internal/domain"
	"github.com/yungbote/maigie-backend/internal/platform/dbctx"
	"github.com/yungbote/maigie-backend/internal/platform/logger"
	"github.com/yungbote/maigie-backend/internal/platform/retry"
)

type OutboxConfig struct {
	Interval    time.Duration
	Batch       int
	Lease       time.Duration
	MaxAttempts int
	Backoff     retry.BackoffFunc
}

func (c OutboxConfig) withDefaults() OutboxConfig {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Second
	}
	if c.Batch <= 0 {
		c.Batch = 50
	}
	if c.Lease <= 0 {
		c.Lease = time.Minute
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 10
	}
	if c.Backoff == nil {
		c.Backoff = retry.Exponential(5*time.Second, 10*time.Minute, 0.2)
	}
	return c
}

// Outbox stores events whose publish failed and republishes them later.
type Outbox struct {
	log  *logger.Logger
	repo repos.OutboxRepo
	bus  Bus
	cfg  OutboxConfig
	now  func() time.Time
}

func NewOutbox(baseLog *logger.Logger, repo repos.OutboxRepo, bus Bus, cfg OutboxConfig) *Outbox {
	return &Outbox{
		log:  baseLog.With("component", "EventOutbox"),
		repo: repo,
		bus:  bus,
		cfg:  cfg.withDefaults(),
		now:  time.Now,
	}
}

// Stage writes ev as pending inside dbc's transaction, due for replay once
// hold has passed. Staging the same event twice is a no-op.
func (o *Outbox) Stage(dbc dbctx.Context, ev DomainEvent, hold time.Duration) error {
	raw, err := ev.Marshal()
	if err != nil {
		return err
	}
	row := &types.OutboxEvent{
		ID:          uuid.NewString(),
		EventID:     ev.EventID,
		EventType:   ev.Type,
		UserID:      ev.UserID,
		Envelope:    datatypes.JSON(raw),
		NextAttempt: o.now().Add(hold).UTC(),
	}
	if err := o.repo.Enqueue(dbc, row); err != nil {
		return fmt.Errorf("enqueue outbox event %s: %w", ev.EventID, err)
	}
	return nil
}

// Delivered marks a staged event published.
func (o *Outbox) Delivered(ctx context.Context, eventID string) error {
	return o.repo.MarkDeliveredByEvent(dbctx.Context{Ctx: ctx}, eventID, o.now())
}

// Retry makes a staged event due for replay now.
func (o *Outbox) Retry(ctx context.Context, eventID string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return o.repo.Reschedule(dbctx.Context{Ctx: ctx}, eventID, msg, o.now())
}

// ReplayOnce republishes one batch of due events and returns how many were
// delivered.
func (o *Outbox) ReplayOnce(ctx context.Context) (int, error) {
	now := o.now()
	rows, err := o.repo.ClaimDue(dbctx.Context{Ctx: ctx}, now, o.cfg.Batch, o.cfg.Lease)
	if err != nil {
		return 0, fmt.Errorf("claim outbox events: %w", err)
	}
	delivered := 0
	for _, row := range rows {
		if ctx.Err() != nil {
			return delivered, ctx.Err()
		}
		ev, err := Unmarshal(row.Envelope)
		if err == nil {
			err = o.bus.Publish(ctx, ev)
		}
		if err != nil {
			next := o.now().Add(o.cfg.Backoff(row.Attempts + 2))
			if merr := o.repo.MarkFailed(dbctx.Context{Ctx: ctx}, row.ID, err.Error(), next, o.cfg.MaxAttempts); merr != nil {
				o.log.Error("mark outbox failed", "outbox_id", row.ID, "error", merr)
			}
			o.log.Warn("outbox replay failed", "event_id", row.EventID, "attempt", row.Attempts+1, "error", err)
			continue
		}
		if err := o.repo.MarkDelivered(dbctx.Context{Ctx: ctx}, row.ID, o.now()); err != nil {
			o.log.Error("mark outbox delivered", "outbox_id", row.ID, "error", err)
			continue
		}
		delivered++
	}
	return delivered, nil
}

// Run replays due events on a ticker until ctx ends.
func (o *Outbox) Run(ctx context.Context) error {
	o.log.Info("outbox replayer started", "interval", o.cfg.Interval.String())
	ticker := time.NewTicker(o.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			o.log.Info("outbox replayer stopped")
			return nil
		case <-ticker.C:
			o.tick(ctx)
		}
	}
}

func (o *Outbox) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("outbox replay panic", "panic", r)
		}
	}()
	n, err := o.ReplayOnce(ctx)
	if err != nil && ctx.Err() == nil {
		o.log.Warn("outbox replay", "error", err)
		return
	}
	if n > 0 {
		o.log.Info("outbox events replayed", "count", n)
	}
}
