package study

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Course struct {
	ID          string `gorm:"type:text;primaryKey" json:"id"`
	UserID      string `gorm:"type:text;not null;index" json:"user_id"`
	Title       string `gorm:"column:title;not null" json:"title"`
	Description string `gorm:"column:description;type:text" json:"description,omitempty"`
	Level       string `gorm:"column:level" json:"level,omitempty"`
	Source      string `gorm:"column:source;not null" json:"source"`

	StartDate *time.Time `gorm:"column:start_date" json:"start_date,omitempty"`
	EndDate   *time.Time `gorm:"column:end_date" json:"end_date,omitempty"`

	Modules []CourseModule `gorm:"foreignKey:CourseID;references:ID" json:"modules,omitempty"`

	Metadata  datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	CreatedAt time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Course) TableName() string { return "course" }

type CourseModule struct {
	ID       string  `gorm:"type:text;primaryKey" json:"id"`
	CourseID string  `gorm:"type:text;not null;index" json:"course_id"`
	Index    int     `gorm:"column:index;not null" json:"index"`
	Title    string  `gorm:"column:title;not null" json:"title"`
	Topics   []Topic `gorm:"foreignKey:ModuleID;references:ID" json:"topics,omitempty"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (CourseModule) TableName() string { return "course_module" }

type Topic struct {
	ID       string `gorm:"type:text;primaryKey" json:"id"`
	UserID   string `gorm:"type:text;not null;index" json:"user_id"`
	CourseID string `gorm:"type:text;index" json:"course_id,omitempty"`
	ModuleID string `gorm:"type:text;index" json:"module_id,omitempty"`
	Index    int    `gorm:"column:index;not null;default:0" json:"index"`
	Title    string `gorm:"column:title;not null" json:"title"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (Topic) TableName() string { return "topic" }
