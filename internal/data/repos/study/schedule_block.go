package study

import (
	"time"

	"gorm.io/gorm"

	types "github.com/yungbote/maigie-backend/internal/domain"
	"github.com/yungbote/maigie-backend/internal/platform/dbctx"
	"github.com/yungbote/maigie-backend/internal/platform/logger"
)

type ScheduleBlockRepo interface {
	Create(dbc dbctx.Context, block *types.ScheduleBlock) error
	// GetOverlapping returns the user's blocks intersecting [start, end).
	GetOverlapping(dbc dbctx.Context, userID string, start, end time.Time) ([]*types.ScheduleBlock, error)
}

type scheduleBlockRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewScheduleBlockRepo(db *gorm.DB, baseLog *logger.Logger) ScheduleBlockRepo {
	return &scheduleBlockRepo{db: db, log: baseLog.With("repo", "ScheduleBlockRepo")}
}

func (r *scheduleBlockRepo) Create(dbc dbctx.Context, block *types.ScheduleBlock) error {
	if block == nil {
		return nil
	}
	return dbc.DB(r.db).Create(block).Error
}

func (r *scheduleBlockRepo) GetOverlapping(dbc dbctx.Context, userID string, start, end time.Time) ([]*types.ScheduleBlock, error) {
	var results []*types.ScheduleBlock
	if err := dbc.DB(r.db).
		Where("user_id = ? AND start_at < ? AND end_at > ?", userID, end.UTC(), start.UTC()).
		Order("start_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
