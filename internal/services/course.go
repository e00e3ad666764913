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

type CourseService struct {
	log        *logger.Logger
	courseRepo repos.CourseRepo
}

func NewCourseService(baseLog *logger.Logger, courseRepo repos.CourseRepo) *CourseService {
	return &CourseService{
		log:        baseLog.With("service", "CourseService"),
		courseRepo: courseRepo,
	}
}

// Execute creates the course with its modules and topics in one insert.
func (s *CourseService) Execute(dbc dbctx.Context, payload any, userID string) (*Result, error) {
	p, err := payloadAs[action.CreateCoursePayload](payload)
	if err != nil {
		return nil, err
	}

	course := &types.Course{
		ID:          uuid.NewString(),
		UserID:      userID,
		Title:       strings.TrimSpace(p.Title),
		Description: strings.TrimSpace(p.Description),
		Level:       p.Level,
		Source:      SourceAI,
		StartDate:   p.StartDate.Ptr(),
		EndDate:     p.EndDate.Ptr(),
	}
	firstTopic := ""
	for i, m := range p.Modules {
		mod := types.CourseModule{
			ID:       uuid.NewString(),
			CourseID: course.ID,
			Index:    i,
			Title:    strings.TrimSpace(m.Title),
		}
		for j, title := range m.Topics {
			tp := types.Topic{
				ID:       uuid.NewString(),
				UserID:   userID,
				CourseID: course.ID,
				ModuleID: mod.ID,
				Index:    j,
				Title:    strings.TrimSpace(title),
			}
			if firstTopic == "" {
				firstTopic = tp.ID
			}
			mod.Topics = append(mod.Topics, tp)
		}
		course.Modules = append(course.Modules, mod)
	}

	if err := s.courseRepo.Create(dbc, course); err != nil {
		return nil, fmt.Errorf("create course: %w", err)
	}
	s.log.Debug("course created", "course_id", course.ID, "modules", len(course.Modules))

	return &Result{
		EntityType: "course",
		EntityID:   course.ID,
		Object:     course,
		Context:    action.ActiveContext{CourseID: course.ID, TopicID: firstTopic},
	}, nil
}
