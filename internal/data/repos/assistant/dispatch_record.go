package assistant

import (
	"errors"

	"gorm.io/gorm"

	types "github.com/yungbote/maigie-backend/internal/domain"
	"github.com/yungbote/maigie-backend/internal/platform/dbctx"
	"github.com/yungbote/maigie-backend/internal/platform/logger"
)

type DispatchRecordRepo interface {
	// GetByRequest returns nil, nil when no dispatch was committed for the key.
	GetByRequest(dbc dbctx.Context, userID, requestID string) (*types.DispatchRecord, error)
	// Create fails with gorm.ErrDuplicatedKey when the (user, request) pair exists.
	Create(dbc dbctx.Context, rec *types.DispatchRecord) error
}

type dispatchRecordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDispatchRecordRepo(db *gorm.DB, baseLog *logger.Logger) DispatchRecordRepo {
	return &dispatchRecordRepo{db: db, log: baseLog.With("repo", "DispatchRecordRepo")}
}

func (r *dispatchRecordRepo) GetByRequest(dbc dbctx.Context, userID, requestID string) (*types.DispatchRecord, error) {
	var out types.DispatchRecord
	err := dbc.DB(r.db).
		Where("user_id = ? AND request_id = ?", userID, requestID).
		First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *dispatchRecordRepo) Create(dbc dbctx.Context, rec *types.DispatchRecord) error {
	if rec == nil {
		return nil
	}
	return dbc.DB(r.db).Create(rec).Error
}
