package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	SourceAI   = "ai"
	SourceUser = "user"
)

type Metadata struct {
	Source    string `json:"source"`
	RequestID string `json:"request_id"`
	SessionID string `json:"session_id,omitempty"`
}

// DomainEvent is the immutable envelope published once per committed dispatch.
type DomainEvent struct {
	EventID   string          `json:"event_id"`
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	UserID    string          `json:"user_id"`
	Payload   json.RawMessage `json:"payload"`
	Metadata  Metadata        `json:"metadata"`
}

// New builds an event with a fresh id.
func New(eventType, userID string, payload any, meta Metadata, now time.Time) (DomainEvent, error) {
	if eventType == "" {
		return DomainEvent{}, fmt.Errorf("event type required")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return DomainEvent{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	if meta.Source == "" {
		meta.Source = SourceAI
	}
	return DomainEvent{
		EventID:   uuid.NewString(),
		Type:      eventType,
		Timestamp: now.UTC(),
		UserID:    userID,
		Payload:   raw,
		Metadata:  meta,
	}, nil
}

func (e DomainEvent) Marshal() ([]byte, error) { return json.Marshal(e) }

func Unmarshal(raw []byte) (DomainEvent, error) {
	var e DomainEvent
	if err := json.Unmarshal(raw, &e); err != nil {
		return DomainEvent{}, err
	}
	if e.EventID == "" || e.Type == "" {
		return DomainEvent{}, fmt.Errorf("event envelope missing id or type")
	}
	return e, nil
}
