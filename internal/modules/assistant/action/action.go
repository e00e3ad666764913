package action

// Type is the closed set of actions the model may propose.
type Type string

const (
	CreateCourse        Type = "create_course"
	CreateGoal          Type = "create_goal"
	CreateScheduleBlock Type = "create_schedule_block"
	RecommendResources  Type = "recommend_resources"
	SummarizeNote       Type = "summarize_note"
	Clarify             Type = "clarify"
	None                Type = "none"
)

var allTypes = []Type{
	CreateCourse,
	CreateGoal,
	CreateScheduleBlock,
	RecommendResources,
	SummarizeNote,
	Clarify,
	None,
}

// All returns every action type in a stable order.
func All() []Type {
	out := make([]Type, len(allTypes))
	copy(out, allTypes)
	return out
}

// Domain returns the action types that mutate domain state.
func Domain() []Type {
	return []Type{CreateCourse, CreateGoal, CreateScheduleBlock, RecommendResources, SummarizeNote}
}

func (t Type) Valid() bool {
	for _, v := range allTypes {
		if v == t {
			return true
		}
	}
	return false
}

// IsDomain reports whether dispatching t reaches a domain service.
func (t Type) IsDomain() bool {
	switch t {
	case CreateCourse, CreateGoal, CreateScheduleBlock, RecommendResources, SummarizeNote:
		return true
	default:
		return false
	}
}

// EventType is the domain event emitted after a committed dispatch of t.
func (t Type) EventType() string {
	switch t {
	case CreateCourse:
		return "course.created"
	case CreateGoal:
		return "goal.created"
	case CreateScheduleBlock:
		return "schedule_block.created"
	case RecommendResources:
		return "resource.recommended"
	case SummarizeNote:
		return "note.summarized"
	default:
		return ""
	}
}

// Contains reports whether t is in the list.
func Contains(list []Type, t Type) bool {
	for _, v := range list {
		if v == t {
			return true
		}
	}
	return false
}

type State string

const (
	StateUnvalidated State = "unvalidated"
	StateValid       State = "valid"
	StateRepaired    State = "repaired"
	StateRejected    State = "rejected"
)

// Dispatchable reports whether a request in this state may reach the dispatcher.
func (s State) Dispatchable() bool {
	return s == StateValid || s == StateRepaired
}

// Request is a candidate action derived from one model response. It lives for
// a single turn.
type Request struct {
	Type           Type
	Payload        Payload
	RawModelOutput string
	State          State
}

// Payload is implemented by exactly one struct per action type.
type Payload interface {
	ActionType() Type
}
