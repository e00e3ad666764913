package study

import "time"

// Resource is a recommended study material linked to a topic or course.
type Resource struct {
	ID         string  `gorm:"type:text;primaryKey" json:"id"`
	UserID     string  `gorm:"type:text;not null;index" json:"user_id"`
	TopicID    *string `gorm:"type:text;index" json:"topic_id,omitempty"`
	CourseID   *string `gorm:"type:text;index" json:"course_id,omitempty"`
	DocumentID string  `gorm:"column:document_id;not null" json:"document_id"`
	Kind       string  `gorm:"column:kind" json:"kind,omitempty"`
	Title      string  `gorm:"column:title;not null" json:"title"`
	URL        string  `gorm:"column:url" json:"url,omitempty"`
	Snippet    string  `gorm:"column:snippet;type:text" json:"snippet,omitempty"`
	Score      float64 `gorm:"column:score;not null" json:"score"`
	Rank       int     `gorm:"column:rank;not null" json:"rank"`
	Query      string  `gorm:"column:query;type:text" json:"query"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (Resource) TableName() string { return "resource" }
