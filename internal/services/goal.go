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

type GoalService struct {
	log      *logger.Logger
	goalRepo repos.GoalRepo
}

func NewGoalService(baseLog *logger.Logger, goalRepo repos.GoalRepo) *GoalService {
	return &GoalService{log: baseLog.With("service", "GoalService"), goalRepo: goalRepo}
}

func (s *GoalService) Execute(dbc dbctx.Context, payload any, userID string) (*Result, error) {
	p, err := payloadAs[action.CreateGoalPayload](payload)
	if err != nil {
		return nil, err
	}
	goal := &types.Goal{
		ID:          uuid.NewString(),
		UserID:      userID,
		CourseID:    strPtr(p.CourseID),
		Title:       strings.TrimSpace(p.Title),
		Description: strings.TrimSpace(p.Description),
		TargetDate:  p.TargetDate.Ptr(),
		Status:      types.GoalStatusActive,
		Source:      SourceAI,
	}
	if err := s.goalRepo.Create(dbc, goal); err != nil {
		return nil, fmt.Errorf("create goal: %w", err)
	}
	return &Result{
		EntityType: "goal",
		EntityID:   goal.ID,
		Object:     goal,
		Context:    action.ActiveContext{CourseID: p.CourseID},
	}, nil
}
