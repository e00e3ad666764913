package session

import (
	"time"

	"github.com/yungbote/maigie-backend/internal/modules/assistant/intent"
)

type Outcome string

const (
	OutcomePending              Outcome = "pending"
	OutcomeAnswered             Outcome = "answered"
	OutcomeClarified            Outcome = "clarified"
	OutcomeDispatched           Outcome = "dispatched"
	OutcomeAwaitingConfirmation Outcome = "awaiting_confirmation"
	OutcomeDenied               Outcome = "denied"
	OutcomeFailed               Outcome = "failed"
	OutcomeStale                Outcome = "stale"
)

// Turn is one utterance and its outcome. Once Outcome leaves pending the
// turn is never modified again.
type Turn struct {
	ID             string
	SessionID      string
	RawText        string
	ResolvedIntent *intent.Path
	Timestamp      time.Time
	Outcome        Outcome
	Reply          string

	arrival Arrival
}

func (t Turn) Resolved() bool { return t.Outcome != OutcomePending }
