package services

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	repos "github.com/yungbote/maigie-backend/internal/data/repos"
	types "github.com/yungbote/maigie-backend/internal/domain"
	"github.com/yungbote/maigie-backend/internal/modules/assistant/action"
	"github.com/yungbote/maigie-backend/internal/platform/dbctx"
	"github.com/yungbote/maigie-backend/internal/platform/logger"
)

type ScheduleService struct {
	log       *logger.Logger
	blockRepo repos.ScheduleBlockRepo
}

func NewScheduleService(baseLog *logger.Logger, blockRepo repos.ScheduleBlockRepo) *ScheduleService {
	return &ScheduleService{log: baseLog.With("service", "ScheduleService"), blockRepo: blockRepo}
}

// Execute refuses blocks that overlap an existing block of the same user.
func (s *ScheduleService) Execute(dbc dbctx.Context, payload any, userID string) (*Result, error) {
	p, err := payloadAs[action.CreateScheduleBlockPayload](payload)
	if err != nil {
		return nil, err
	}
	start, end := p.StartAt.Time.UTC(), p.EndAt.Time.UTC()
	if !end.After(start) {
		return nil, fmt.Errorf("%w: block ends before it starts", ErrInvalidPayload)
	}

	clash, err := s.blockRepo.GetOverlapping(dbc, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("check overlap: %w", err)
	}
	if len(clash) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrScheduleConflict, clash[0].ID)
	}

	rec := p.Recurrence
	if rec == "" {
		rec = "none"
	}
	block := &types.ScheduleBlock{
		ID:         uuid.NewString(),
		UserID:     userID,
		CourseID:   strPtr(p.CourseID),
		TopicID:    strPtr(p.TopicID),
		Title:      strings.TrimSpace(p.Title),
		StartAt:    start,
		EndAt:      end,
		Recurrence: rec,
		Source:     SourceAI,
	}
	if err := s.blockRepo.Create(dbc, block); err != nil {
		return nil, fmt.Errorf("create schedule block: %w", err)
	}
	return &Result{
		EntityType: "schedule_block",
		EntityID:   block.ID,
		Object:     block,
		Context:    action.ActiveContext{CourseID: p.CourseID, TopicID: p.TopicID},
	}, nil
}
