package assistant

import (
	"time"

	"gorm.io/datatypes"
)

const (
	OutboxStatusPending   = "pending"
	OutboxStatusDelivered = "delivered"
	OutboxStatusDead      = "dead"
)

// OutboxEvent holds a committed domain event until it reaches the bus.
type OutboxEvent struct {
	ID          string         `gorm:"type:text;primaryKey" json:"id"`
	EventID     string         `gorm:"column:event_id;not null;uniqueIndex" json:"event_id"`
	EventType   string         `gorm:"column:event_type;not null;index" json:"event_type"`
	UserID      string         `gorm:"type:text;not null;index" json:"user_id"`
	Envelope    datatypes.JSON `gorm:"column:envelope;type:jsonb;not null" json:"envelope"`
	Status      string         `gorm:"column:status;not null;index:idx_outbox_status_next,priority:1" json:"status"`
	Attempts    int            `gorm:"column:attempts;not null;default:0" json:"attempts"`
	LastError   string         `gorm:"column:last_error;type:text" json:"last_error,omitempty"`
	NextAttempt time.Time      `gorm:"column:next_attempt_at;not null;index:idx_outbox_status_next,priority:2" json:"next_attempt_at"`
	DeliveredAt *time.Time     `gorm:"column:delivered_at" json:"delivered_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (OutboxEvent) TableName() string { return "outbox_event" }
