package action

type ModuleSpec struct {
	Title  string   `json:"title" validate:"required,max=200"`
	Topics []string `json:"topics,omitempty" validate:"max=40,dive,required,max=200"`
}

type CreateCoursePayload struct {
	Title       string       `json:"title" validate:"required,max=200"`
	Description string       `json:"description,omitempty" validate:"max=4000"`
	Level       string       `json:"level,omitempty" validate:"omitempty,oneof=beginner intermediate advanced"`
	StartDate   *Date        `json:"start_date,omitempty"`
	EndDate     *Date        `json:"end_date,omitempty"`
	Modules     []ModuleSpec `json:"modules,omitempty" validate:"dive"`
}

func (CreateCoursePayload) ActionType() Type { return CreateCourse }

// EntityCount is the number of rows a create would insert.
func (p CreateCoursePayload) EntityCount() int {
	n := 1 + len(p.Modules)
	for _, m := range p.Modules {
		n += len(m.Topics)
	}
	return n
}

type CreateGoalPayload struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description,omitempty" validate:"max=4000"`
	TargetDate  *Date  `json:"target_date,omitempty"`
	CourseID    string `json:"course_id,omitempty"`
}

func (CreateGoalPayload) ActionType() Type { return CreateGoal }

type CreateScheduleBlockPayload struct {
	Title      string `json:"title" validate:"required,max=200"`
	StartAt    Date   `json:"start_at"`
	EndAt      Date   `json:"end_at"`
	Recurrence string `json:"recurrence,omitempty" validate:"omitempty,oneof=none daily weekly"`
	CourseID   string `json:"course_id,omitempty"`
	TopicID    string `json:"topic_id,omitempty"`
}

func (CreateScheduleBlockPayload) ActionType() Type { return CreateScheduleBlock }

const (
	DefaultRecommendLimit = 10
	MaxRecommendLimit     = 50
)

type RecommendResourcesPayload struct {
	Query    string `json:"query" validate:"required,max=500"`
	TopicID  string `json:"topic_id,omitempty"`
	CourseID string `json:"course_id,omitempty"`
	Limit    int    `json:"limit,omitempty" validate:"gte=0,lte=50"`
}

func (RecommendResourcesPayload) ActionType() Type { return RecommendResources }

// EffectiveLimit applies the default when the model omitted the limit.
func (p RecommendResourcesPayload) EffectiveLimit() int {
	if p.Limit <= 0 {
		return DefaultRecommendLimit
	}
	return p.Limit
}

type SummarizeNotePayload struct {
	NoteID string `json:"note_id" validate:"required"`
	Style  string `json:"style,omitempty" validate:"omitempty,oneof=brief detailed bullets"`
}

func (SummarizeNotePayload) ActionType() Type { return SummarizeNote }

type ClarifyPayload struct {
	Question string `json:"question" validate:"required,max=1000"`
}

func (ClarifyPayload) ActionType() Type { return Clarify }

type NonePayload struct {
	Reply string `json:"reply,omitempty"`
}

func (NonePayload) ActionType() Type { return None }

// NewPayload returns a zero payload for t, or nil for an unknown type.
func NewPayload(t Type) Payload {
	switch t {
	case CreateCourse:
		return &CreateCoursePayload{}
	case CreateGoal:
		return &CreateGoalPayload{}
	case CreateScheduleBlock:
		return &CreateScheduleBlockPayload{}
	case RecommendResources:
		return &RecommendResourcesPayload{}
	case SummarizeNote:
		return &SummarizeNotePayload{}
	case Clarify:
		return &ClarifyPayload{}
	case None:
		return &NonePayload{}
	default:
		return nil
	}
}
