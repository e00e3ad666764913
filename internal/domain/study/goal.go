package study

import (
	"time"

	"gorm.io/gorm"
)

type Goal struct {
	ID          string     `gorm:"type:text;primaryKey" json:"id"`
	UserID      string     `gorm:"type:text;not null;index" json:"user_id"`
	CourseID    *string    `gorm:"type:text;index" json:"course_id,omitempty"`
	Title       string     `gorm:"column:title;not null" json:"title"`
	Description string     `gorm:"column:description;type:text" json:"description,omitempty"`
	TargetDate  *time.Time `gorm:"column:target_date;index" json:"target_date,omitempty"`
	Status      string     `gorm:"column:status;not null;index" json:"status"`
	Source      string     `gorm:"column:source;not null" json:"source"`

	CreatedAt time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Goal) TableName() string { return "goal" }

const (
	GoalStatusActive    = "active"
	GoalStatusCompleted = "completed"
)
