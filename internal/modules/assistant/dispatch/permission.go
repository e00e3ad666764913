package dispatch

import (
	"errors"
	"fmt"

	repos "github.com/yungbote/maigie-backend/internal/data/repos"
	"github.com/yungbote/maigie-backend/internal/modules/assistant/action"
	"github.com/yungbote/maigie-backend/internal/platform/dbctx"
)

var ErrPermissionDenied = errors.New("permission denied")

// refs lists the entity ids a payload points at.
type refs struct {
	CourseID string
	TopicID  string
	NoteID   string
}

func refsOf(p action.Payload) refs {
	switch v := p.(type) {
	case action.CreateGoalPayload:
		return refs{CourseID: v.CourseID}
	case action.CreateScheduleBlockPayload:
		return refs{CourseID: v.CourseID, TopicID: v.TopicID}
	case action.RecommendResourcesPayload:
		return refs{CourseID: v.CourseID, TopicID: v.TopicID}
	case action.SummarizeNotePayload:
		return refs{NoteID: v.NoteID}
	}
	return refs{}
}

// Ownership checks that every referenced entity exists and belongs to the user.
type Ownership struct {
	courses repos.CourseRepo
	topics  repos.TopicRepo
	notes   repos.NoteRepo
}

func NewOwnership(courses repos.CourseRepo, topics repos.TopicRepo, notes repos.NoteRepo) *Ownership {
	return &Ownership{courses: courses, topics: topics, notes: notes}
}

// Check returns ErrPermissionDenied for a missing or foreign entity, or a
// wrapped lookup error when the store failed.
func (o *Ownership) Check(dbc dbctx.Context, userID string, p action.Payload) error {
	if userID == "" {
		return fmt.Errorf("%w: no user", ErrPermissionDenied)
	}
	r := refsOf(p)
	if r.CourseID != "" {
		c, err := o.courses.GetByID(dbc, r.CourseID)
		if err != nil {
			return fmt.Errorf("load course: %w", err)
		}
		if c == nil || c.UserID != userID {
			return fmt.Errorf("%w: course %s", ErrPermissionDenied, r.CourseID)
		}
	}
	if r.TopicID != "" {
		t, err := o.topics.GetByID(dbc, r.TopicID)
		if err != nil {
			return fmt.Errorf("load topic: %w", err)
		}
		if t == nil || t.UserID != userID {
			return fmt.Errorf("%w: topic %s", ErrPermissionDenied, r.TopicID)
		}
		if r.CourseID != "" && t.CourseID != "" && t.CourseID != r.CourseID {
			return fmt.Errorf("%w: topic %s not in course %s", ErrPermissionDenied, r.TopicID, r.CourseID)
		}
	}
	if r.NoteID != "" {
		n, err := o.notes.GetByID(dbc, r.NoteID)
		if err != nil {
			return fmt.Errorf("load note: %w", err)
		}
		if n == nil || n.UserID != userID {
			return fmt.Errorf("%w: note %s", ErrPermissionDenied, r.NoteID)
		}
	}
	return nil
}
