package study

import (
	"errors"

	"gorm.io/gorm"

	types "github.com/yungbote/maigie-backend/internal/domain"
	"github.com/yungbote/maigie-backend/internal/platform/dbctx"
	"github.com/yungbote/maigie-backend/internal/platform/logger"
)

type CourseRepo interface {
	// Create inserts the course together with its modules and their topics.
	Create(dbc dbctx.Context, course *types.Course) error
	GetByID(dbc dbctx.Context, id string) (*types.Course, error)
	GetByUserID(dbc dbctx.Context, userID string, limit int) ([]*types.Course, error)
}

type courseRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCourseRepo(db *gorm.DB, baseLog *logger.Logger) CourseRepo {
	return &courseRepo{db: db, log: baseLog.With("repo", "CourseRepo")}
}

func (r *courseRepo) Create(dbc dbctx.Context, course *types.Course) error {
	if course == nil {
		return nil
	}
	return dbc.DB(r.db).Create(course).Error
}

// GetByID returns nil, nil when the course does not exist.
func (r *courseRepo) GetByID(dbc dbctx.Context, id string) (*types.Course, error) {
	var out types.Course
	err := dbc.DB(r.db).
		Preload("Modules", func(db *gorm.DB) *gorm.DB { return db.Order(`"index" ASC`) }).
		Preload("Modules.Topics", func(db *gorm.DB) *gorm.DB { return db.Order(`"index" ASC`) }).
		Where("id = ?", id).
		First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *courseRepo) GetByUserID(dbc dbctx.Context, userID string, limit int) ([]*types.Course, error) {
	var results []*types.Course
	q := dbc.DB(r.db).Where("user_id = ?", userID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
