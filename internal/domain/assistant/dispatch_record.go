package assistant

import (
	"time"

	"gorm.io/datatypes"
)

const (
	DispatchStatusCommitted = "committed"
)

// DispatchRecord is written in the same transaction as the domain change. The
// unique (user_id, request_id) index is what makes dispatch idempotent.
type DispatchRecord struct {
	ID         string         `gorm:"type:text;primaryKey" json:"id"`
	UserID     string         `gorm:"type:text;not null;uniqueIndex:ux_dispatch_user_request,priority:1" json:"user_id"`
	RequestID  string         `gorm:"type:text;not null;uniqueIndex:ux_dispatch_user_request,priority:2" json:"request_id"`
	ActionType string         `gorm:"column:action_type;not null;index" json:"action_type"`
	Status     string         `gorm:"column:status;not null" json:"status"`
	EntityType string         `gorm:"column:entity_type" json:"entity_type,omitempty"`
	EntityID   string         `gorm:"column:entity_id;index" json:"entity_id,omitempty"`
	Result     datatypes.JSON `gorm:"column:result;type:jsonb" json:"result,omitempty"`
	EventID    string         `gorm:"column:event_id;not null;uniqueIndex" json:"event_id"`
	EventType  string         `gorm:"column:event_type;not null" json:"event_type"`
	Event      datatypes.JSON `gorm:"column:event;type:jsonb" json:"event,omitempty"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (DispatchRecord) TableName() string { return "dispatch_record" }
