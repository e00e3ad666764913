package domain

import (
	"github.com/yungbote/maigie-backend/internal/domain/assistant"
	"github.com/yungbote/maigie-backend/internal/domain/study"
)

type (
	Course        = study.Course
	CourseModule  = study.CourseModule
	Topic         = study.Topic
	Goal          = study.Goal
	ScheduleBlock = study.ScheduleBlock
	Resource      = study.Resource
	Note          = study.Note
	NoteSummary   = study.NoteSummary

	DispatchRecord = assistant.DispatchRecord
	OutboxEvent    = assistant.OutboxEvent
	ActionAudit    = assistant.ActionAudit
)

const (
	GoalStatusActive = study.GoalStatusActive

	DispatchStatusCommitted = assistant.DispatchStatusCommitted

	OutboxStatusPending   = assistant.OutboxStatusPending
	OutboxStatusDelivered = assistant.OutboxStatusDelivered
	OutboxStatusDead      = assistant.OutboxStatusDead
)

// Models lists every table owned by this service, in migration order.
func Models() []any {
	return []any{
		&Course{},
		&CourseModule{},
		&Topic{},
		&Goal{},
		&ScheduleBlock{},
		&Note{},
		&NoteSummary{},
		&Resource{},
		&DispatchRecord{},
		&OutboxEvent{},
		&ActionAudit{},
	}
}
