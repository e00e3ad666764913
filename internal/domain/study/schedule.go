package study

import (
	"time"

	"gorm.io/gorm"
)

type ScheduleBlock struct {
	ID         string    `gorm:"type:text;primaryKey" json:"id"`
	UserID     string    `gorm:"type:text;not null;index:idx_schedule_user_start,priority:1" json:"user_id"`
	CourseID   *string   `gorm:"type:text;index" json:"course_id,omitempty"`
	TopicID    *string   `gorm:"type:text;index" json:"topic_id,omitempty"`
	Title      string    `gorm:"column:title;not null" json:"title"`
	StartAt    time.Time `gorm:"column:start_at;not null;index:idx_schedule_user_start,priority:2" json:"start_at"`
	EndAt      time.Time `gorm:"column:end_at;not null" json:"end_at"`
	Recurrence string    `gorm:"column:recurrence;not null" json:"recurrence"`
	Source     string    `gorm:"column:source;not null" json:"source"`

	CreatedAt time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (ScheduleBlock) TableName() string { return "schedule_block" }
