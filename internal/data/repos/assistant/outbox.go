package assistant

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/maigie-backend/internal/domain"
	"github.com/yungbote/maigie-backend/internal/platform/dbctx"
	"github.com/yungbote/maigie-backend/internal/platform/logger"
)

type OutboxRepo interface {
	// Enqueue is a no-op when the event id is already stored.
	Enqueue(dbc dbctx.Context, ev *types.OutboxEvent) error
	// ClaimDue leases up to limit pending events whose next attempt is due by
	// pushing their next attempt out by lease.
	ClaimDue(dbc dbctx.Context, now time.Time, limit int, lease time.Duration) ([]*types.OutboxEvent, error)
	MarkDelivered(dbc dbctx.Context, id string, at time.Time) error
	MarkDeliveredByEvent(dbc dbctx.Context, eventID string, at time.Time) error
	// Reschedule moves a pending event's next attempt to next without counting
	// an attempt.
	Reschedule(dbc dbctx.Context, eventID string, errMsg string, next time.Time) error
	// MarkFailed records the attempt; the event goes dead once attempts reach maxAttempts.
	MarkFailed(dbc dbctx.Context, id string, errMsg string, next time.Time, maxAttempts int) error
	CountByStatus(dbc dbctx.Context, status string) (int64, error)
}

type outboxRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewOutboxRepo(db *gorm.DB, baseLog *logger.Logger) OutboxRepo {
	return &outboxRepo{db: db, log: baseLog.With("repo", "OutboxRepo")}
}

func (r *outboxRepo) Enqueue(dbc dbctx.Context, ev *types.OutboxEvent) error {
	if ev == nil {
		return nil
	}
	if ev.Status == "" {
		ev.Status = types.OutboxStatusPending
	}
	if ev.NextAttempt.IsZero() {
		ev.NextAttempt = time.Now().UTC()
	}
	return dbc.DB(r.db).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}}, DoNothing: true}).
		Create(ev).Error
}

func (r *outboxRepo) ClaimDue(dbc dbctx.Context, now time.Time, limit int, lease time.Duration) ([]*types.OutboxEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	var claimed []*types.OutboxEvent
	run := func(tx *gorm.DB) error {
		var rows []*types.OutboxEvent
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? AND next_attempt_at <= ?", types.OutboxStatusPending, now.UTC()).
			Order("next_attempt_at ASC").
			Limit(limit).
			Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		ids := make([]string, 0, len(rows))
		for _, row := range rows {
			ids = append(ids, row.ID)
		}
		leaseUntil := now.UTC().Add(lease)
		if err := tx.Model(&types.OutboxEvent{}).
			Where("id IN ?", ids).
			Updates(map[string]interface{}{
				"next_attempt_at": leaseUntil,
				"updated_at":      now.UTC(),
			}).Error; err != nil {
			return err
		}
		for _, row := range rows {
			row.NextAttempt = leaseUntil
		}
		claimed = rows
		return nil
	}
	if dbc.Tx != nil {
		if err := run(dbc.DB(r.db)); err != nil {
			return nil, err
		}
		return claimed, nil
	}
	if err := r.db.WithContext(dbc.Context()).Transaction(run); err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *outboxRepo) MarkDelivered(dbc dbctx.Context, id string, at time.Time) error {
	at = at.UTC()
	return dbc.DB(r.db).Model(&types.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       types.OutboxStatusDelivered,
			"delivered_at": at,
			"last_error":   "",
			"updated_at":   at,
		}).Error
}

func (r *outboxRepo) MarkDeliveredByEvent(dbc dbctx.Context, eventID string, at time.Time) error {
	at = at.UTC()
	return dbc.DB(r.db).Model(&types.OutboxEvent{}).
		Where("event_id = ? AND status = ?", eventID, types.OutboxStatusPending).
		Updates(map[string]interface{}{
			"status":       types.OutboxStatusDelivered,
			"delivered_at": at,
			"last_error":   "",
			"updated_at":   at,
		}).Error
}

func (r *outboxRepo) Reschedule(dbc dbctx.Context, eventID string, errMsg string, next time.Time) error {
	return dbc.DB(r.db).Model(&types.OutboxEvent{}).
		Where("event_id = ? AND status = ?", eventID, types.OutboxStatusPending).
		Updates(map[string]interface{}{
			"last_error":      errMsg,
			"next_attempt_at": next.UTC(),
			"updated_at":      time.Now().UTC(),
		}).Error
}

func (r *outboxRepo) MarkFailed(dbc dbctx.Context, id string, errMsg string, next time.Time, maxAttempts int) error {
	db := dbc.DB(r.db)
	var row types.OutboxEvent
	if err := db.Where("id = ?", id).First(&row).Error; err != nil {
		return err
	}
	attempts := row.Attempts + 1
	status := types.OutboxStatusPending
	if maxAttempts > 0 && attempts >= maxAttempts {
		status = types.OutboxStatusDead
	}
	return db.Model(&types.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":          status,
			"attempts":        attempts,
			"last_error":      errMsg,
			"next_attempt_at": next.UTC(),
			"updated_at":      time.Now().UTC(),
		}).Error
}

func (r *outboxRepo) CountByStatus(dbc dbctx.Context, status string) (int64, error) {
	var n int64
	err := dbc.DB(r.db).Model(&types.OutboxEvent{}).Where("status = ?", status).Count(&n).Error
	return n, err
}
