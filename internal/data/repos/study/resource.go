package study

import (
	"gorm.io/gorm"

	types "github.com/yungbote/maigie-backend/internal/domain"
	"github.com/yungbote/maigie-backend/internal/platform/dbctx"
	"github.com/yungbote/maigie-backend/internal/platform/logger"
)

type ResourceRepo interface {
	Create(dbc dbctx.Context, resources []*types.Resource) ([]*types.Resource, error)
	GetByTopicID(dbc dbctx.Context, userID, topicID string) ([]*types.Resource, error)
}

type resourceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewResourceRepo(db *gorm.DB, baseLog *logger.Logger) ResourceRepo {
	return &resourceRepo{db: db, log: baseLog.With("repo", "ResourceRepo")}
}

func (r *resourceRepo) Create(dbc dbctx.Context, resources []*types.Resource) ([]*types.Resource, error) {
	if len(resources) == 0 {
		return []*types.Resource{}, nil
	}
	if err := dbc.DB(r.db).Create(&resources).Error; err != nil {
		return nil, err
	}
	return resources, nil
}

func (r *resourceRepo) GetByTopicID(dbc dbctx.Context, userID, topicID string) ([]*types.Resource, error) {
	var results []*types.Resource
	if err := dbc.DB(r.db).
		Where("user_id = ? AND topic_id = ?", userID, topicID).
		Order("rank ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
