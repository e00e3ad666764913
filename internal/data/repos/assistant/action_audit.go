package assistant

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/maigie-backend/internal/domain"
	"github.com/yungbote/maigie-backend/internal/platform/dbctx"
	"github.com/yungbote/maigie-backend/internal/platform/logger"
)

type ActionAuditRepo interface {
	Create(dbc dbctx.Context, audit *types.ActionAudit) error
	ListByTurn(dbc dbctx.Context, turnID string) ([]*types.ActionAudit, error)
}

type actionAuditRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewActionAuditRepo(db *gorm.DB, baseLog *logger.Logger) ActionAuditRepo {
	return &actionAuditRepo{db: db, log: baseLog.With("repo", "ActionAuditRepo")}
}

func (r *actionAuditRepo) Create(dbc dbctx.Context, audit *types.ActionAudit) error {
	if audit == nil {
		return nil
	}
	if audit.ID == "" {
		audit.ID = uuid.NewString()
	}
	return dbc.DB(r.db).Create(audit).Error
}

func (r *actionAuditRepo) ListByTurn(dbc dbctx.Context, turnID string) ([]*types.ActionAudit, error) {
	var results []*types.ActionAudit
	if err := dbc.DB(r.db).
		Where("turn_id = ?", turnID).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
