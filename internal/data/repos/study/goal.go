package study

import (
	"gorm.io/gorm"

	types "github.com/yungbote/maigie-backend/internal/domain"
	"github.com/yungbote/maigie-backend/internal/platform/dbctx"
	"github.com/yungbote/maigie-backend/internal/platform/logger"
)

type GoalRepo interface {
	Create(dbc dbctx.Context, goal *types.Goal) error
	GetByUserID(dbc dbctx.Context, userID string) ([]*types.Goal, error)
}

type goalRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGoalRepo(db *gorm.DB, baseLog *logger.Logger) GoalRepo {
	return &goalRepo{db: db, log: baseLog.With("repo", "GoalRepo")}
}

func (r *goalRepo) Create(dbc dbctx.Context, goal *types.Goal) error {
	if goal == nil {
		return nil
	}
	return dbc.DB(r.db).Create(goal).Error
}

func (r *goalRepo) GetByUserID(dbc dbctx.Context, userID string) ([]*types.Goal, error) {
	var results []*types.Goal
	if err := dbc.DB(r.db).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
