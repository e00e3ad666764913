package study

import (
	"time"

	"gorm.io/gorm"
)

type Note struct {
	ID        string        `gorm:"type:text;primaryKey" json:"id"`
	UserID    string        `gorm:"type:text;not null;index" json:"user_id"`
	CourseID  *string       `gorm:"type:text;index" json:"course_id,omitempty"`
	TopicID   *string       `gorm:"type:text;index" json:"topic_id,omitempty"`
	Title     string        `gorm:"column:title;not null" json:"title"`
	Content   string        `gorm:"column:content;type:text" json:"content"`
	Summary   string        `gorm:"column:summary;type:text" json:"summary,omitempty"`
	Summaries []NoteSummary `gorm:"foreignKey:NoteID;references:ID" json:"-"`

	CreatedAt time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Note) TableName() string { return "note" }

// NoteSummary keeps every generated summary; Note.Summary mirrors the latest.
type NoteSummary struct {
	ID      string `gorm:"type:text;primaryKey" json:"id"`
	NoteID  string `gorm:"type:text;not null;index" json:"note_id"`
	UserID  string `gorm:"type:text;not null;index" json:"user_id"`
	Style   string `gorm:"column:style;not null" json:"style"`
	Summary string `gorm:"column:summary;type:text;not null" json:"summary"`
	Source  string `gorm:"column:source;not null" json:"source"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (NoteSummary) TableName() string { return "note_summary" }
