package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/maigie-backend/internal/data/repos/assistant"
	"github.com/yungbote/maigie-backend/internal/data/repos/study"
	"github.com/yungbote/maigie-backend/internal/platform/logger"
)

type CourseRepo = study.CourseRepo
type TopicRepo = study.TopicRepo
type GoalRepo = study.GoalRepo
type ScheduleBlockRepo = study.ScheduleBlockRepo
type ResourceRepo = study.ResourceRepo
type NoteRepo = study.NoteRepo

type DispatchRecordRepo = assistant.DispatchRecordRepo
type OutboxRepo = assistant.OutboxRepo
type ActionAuditRepo = assistant.ActionAuditRepo

func NewCourseRepo(db *gorm.DB, baseLog *logger.Logger) CourseRepo {
	return study.NewCourseRepo(db, baseLog)
}
func NewTopicRepo(db *gorm.DB, baseLog *logger.Logger) TopicRepo {
	return study.NewTopicRepo(db, baseLog)
}
func NewGoalRepo(db *gorm.DB, baseLog *logger.Logger) GoalRepo { return study.NewGoalRepo(db, baseLog) }
func NewScheduleBlockRepo(db *gorm.DB, baseLog *logger.Logger) ScheduleBlockRepo {
	return study.NewScheduleBlockRepo(db, baseLog)
}
func NewResourceRepo(db *gorm.DB, baseLog *logger.Logger) ResourceRepo {
	return study.NewResourceRepo(db, baseLog)
}
func NewNoteRepo(db *gorm.DB, baseLog *logger.Logger) NoteRepo { return study.NewNoteRepo(db, baseLog) }

func NewDispatchRecordRepo(db *gorm.DB, baseLog *logger.Logger) DispatchRecordRepo {
	return assistant.NewDispatchRecordRepo(db, baseLog)
}
func NewOutboxRepo(db *gorm.DB, baseLog *logger.Logger) OutboxRepo {
	return assistant.NewOutboxRepo(db, baseLog)
}
func NewActionAuditRepo(db *gorm.DB, baseLog *logger.Logger) ActionAuditRepo {
	return assistant.NewActionAuditRepo(db, baseLog)
}

// Set bundles every repository the service wires.
type Set struct {
	Course        CourseRepo
	Topic         TopicRepo
	Goal          GoalRepo
	ScheduleBlock ScheduleBlockRepo
	Resource      ResourceRepo
	Note          NoteRepo

	DispatchRecord DispatchRecordRepo
	Outbox         OutboxRepo
	ActionAudit    ActionAuditRepo
}

func NewSet(db *gorm.DB, baseLog *logger.Logger) Set {
	return Set{
		Course:         NewCourseRepo(db, baseLog),
		Topic:          NewTopicRepo(db, baseLog),
		Goal:           NewGoalRepo(db, baseLog),
		ScheduleBlock:  NewScheduleBlockRepo(db, baseLog),
		Resource:       NewResourceRepo(db, baseLog),
		Note:           NewNoteRepo(db, baseLog),
		DispatchRecord: NewDispatchRecordRepo(db, baseLog),
		Outbox:         NewOutboxRepo(db, baseLog),
		ActionAudit:    NewActionAuditRepo(db, baseLog),
	}
}
