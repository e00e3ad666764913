package assistant

import "time"

// ActionAudit records every validation verdict along with the raw model
// output. It is never returned to clients.
type ActionAudit struct {
	ID             string    `gorm:"type:text;primaryKey" json:"id"`
	UserID         string    `gorm:"type:text;not null;index" json:"user_id"`
	SessionID      string    `gorm:"type:text;index" json:"session_id"`
	TurnID         string    `gorm:"type:text;index" json:"turn_id"`
	RequestID      string    `gorm:"type:text;index" json:"request_id"`
	Path           string    `gorm:"column:path" json:"path"`
	ActionType     string    `gorm:"column:action_type" json:"action_type"`
	State          string    `gorm:"column:state;not null;index" json:"state"`
	Reason         string    `gorm:"column:reason" json:"reason,omitempty"`
	Detail         string    `gorm:"column:detail;type:text" json:"detail,omitempty"`
	RawModelOutput string    `gorm:"column:raw_model_output;type:text" json:"-"`
	CreatedAt      time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (ActionAudit) TableName() string { return "action_audit" }
