package study

import (
	"errors"
	"time"

	"gorm.io/gorm"

	types "github.com/yungbote/maigie-backend/internal/domain"
	"github.com/yungbote/maigie-backend/internal/platform/dbctx"
	"github.com/yungbote/maigie-backend/internal/platform/logger"
)

type NoteRepo interface {
	GetByID(dbc dbctx.Context, id string) (*types.Note, error)
	// SaveSummary appends a summary row and mirrors it onto the note.
	SaveSummary(dbc dbctx.Context, summary *types.NoteSummary) error
}

type noteRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewNoteRepo(db *gorm.DB, baseLog *logger.Logger) NoteRepo {
	return &noteRepo{db: db, log: baseLog.With("repo", "NoteRepo")}
}

func (r *noteRepo) GetByID(dbc dbctx.Context, id string) (*types.Note, error) {
	var out types.Note
	err := dbc.DB(r.db).Where("id = ?", id).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *noteRepo) SaveSummary(dbc dbctx.Context, summary *types.NoteSummary) error {
	if summary == nil {
		return nil
	}
	db := dbc.DB(r.db)
	if err := db.Create(summary).Error; err != nil {
		return err
	}
	res := db.Model(&types.Note{}).
		Where("id = ?", summary.NoteID).
		Updates(map[string]interface{}{
			"summary":    summary.Summary,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
