package assistant

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/maigie-backend/internal/modules/assistant/action"
	"github.com/yungbote/maigie-backend/internal/modules/assistant/dispatch"
	"github.com/yungbote/maigie-backend/internal/modules/assistant/intent"
	"github.com/yungbote/maigie-backend/internal/modules/assistant/validate"
	"github.com/yungbote/maigie-backend/internal/services"
)

type Status string

const (
	StatusAnswered             Status = "answered"
	StatusClarify              Status = "clarify"
	StatusSuccess              Status = "success"
	StatusAwaitingConfirmation Status = "awaiting_confirmation"
	StatusCancelled            Status = "cancelled"
	StatusDenied               Status = "denied"
	StatusError                Status = "error"
	StatusRateLimited          Status = "rate_limited"
	StatusStale                Status = "stale"
)

// EventEnvelope is the structured event pushed to the client after a
// committed action.
type EventEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Reply is everything a transport sends back for one turn.
type Reply struct {
	Reply     string         `json:"reply"`
	Status    Status         `json:"status"`
	SessionID string         `json:"session_id"`
	TurnID    string         `json:"turn_id,omitempty"`
	Action    action.Type    `json:"action,omitempty"`
	Event     *EventEnvelope `json:"event,omitempty"`
	Duplicate bool           `json:"duplicate,omitempty"`
}

const (
	msgUnavailable   = "The assistant is temporarily unavailable. Please try again in a moment."
	msgRateLimited   = "You're sending messages faster than I can keep up. Give me a few seconds and try again."
	msgDenied        = "Sorry, you don't have access to that."
	msgDomainError   = "Sorry, I could not complete that action."
	msgConflict      = "That time overlaps with another study block. Want to pick a different time?"
	msgNoResults     = "I couldn't find any resources for that yet. Try a different topic or wording?"
	msgCancelled     = "Okay, I won't do that."
	msgNotUnderstood = "Sorry, I didn't catch that. Could you rephrase what you'd like to do?"
	msgRephrase      = "I'm not sure what you'd like me to do. Could you rephrase that?"
	msgDefaultReply  = "Okay."
)

func clarifyForClassification(r intent.Result) string {
	if r.MissingContext != "" {
		return fmt.Sprintf("Which %s do you mean? Open it first or tell me its name.", r.MissingContext)
	}
	return msgNotUnderstood
}

// clarifyForRejection turns a validation verdict into one question. Model
// output and validator detail never reach the user.
func clarifyForRejection(res validate.Result) string {
	field := humanField(res.Field)
	switch res.Reason {
	case validate.ReasonMissingField:
		if field == "" || field == "action" {
			return msgRephrase
		}
		return fmt.Sprintf("I need a bit more detail: what should the %s be?", field)
	case validate.ReasonInvalidDate:
		return fmt.Sprintf("I couldn't understand the %s. Could you give it as a date like %s?",
			orDefault(field, "date"), time.Now().AddDate(0, 1, 0).Format("2006-01-02"))
	case validate.ReasonDateOrder:
		return "The end comes before the start. Could you double-check the dates?"
	case validate.ReasonInvalidValue, validate.ReasonInvalidType:
		if field == "" {
			return msgRephrase
		}
		return fmt.Sprintf("The %s doesn't look right. Could you say it another way?", field)
	default:
		return msgRephrase
	}
}

func humanField(f string) string {
	if i := strings.LastIndexByte(f, '.'); i >= 0 {
		f = f[i+1:]
	}
	if i := strings.IndexByte(f, '['); i >= 0 {
		f = f[:i]
	}
	f = strings.TrimSuffix(f, "_id")
	return strings.ReplaceAll(f, "_", " ")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func failureMessage(res dispatch.Result) string {
	switch {
	case res.Status == dispatch.StatusDenied:
		return msgDenied
	case errors.Is(res.Cause, services.ErrScheduleConflict):
		return msgConflict
	case errors.Is(res.Cause, services.ErrNoResults):
		return msgNoResults
	default:
		return msgDomainError
	}
}

// successMessage prefers the model's own sentence; summaries are always shown.
func successMessage(req action.Request, res dispatch.Result, lead string, loc *time.Location) string {
	fields := eventFields(res)
	msg := strings.TrimSpace(lead)
	if msg == "" {
		msg = templatedSuccess(req, fields, loc)
	}
	if req.Type == action.SummarizeNote {
		var summary string
		_ = json.Unmarshal(fields["summary"], &summary)
		if summary != "" {
			msg = msg + "\n\n" + summary
		}
	}
	return msg
}

func templatedSuccess(req action.Request, fields map[string]json.RawMessage, loc *time.Location) string {
	switch p := req.Payload.(type) {
	case action.CreateCoursePayload:
		return fmt.Sprintf("Your course %q is ready.", p.Title)
	case action.CreateGoalPayload:
		return fmt.Sprintf("Goal set: %q.", p.Title)
	case action.CreateScheduleBlockPayload:
		return fmt.Sprintf("Scheduled %q for %s.", p.Title, p.StartAt.In(loc).Format("Mon Jan 2 at 15:04"))
	case action.RecommendResourcesPayload:
		var n int
		_ = json.Unmarshal(fields["count"], &n)
		if n == 1 {
			return "I found 1 resource for you."
		}
		return fmt.Sprintf("I found %d resources for you.", n)
	case action.SummarizeNotePayload:
		return "Here's your summary."
	}
	return "Done."
}

func eventFields(res dispatch.Result) map[string]json.RawMessage {
	out := map[string]json.RawMessage{}
	if res.Event != nil {
		_ = json.Unmarshal(res.Event.Payload, &out)
	}
	return out
}

func envelope(res dispatch.Result) *EventEnvelope {
	if res.Event == nil {
		return nil
	}
	return &EventEnvelope{Type: "event", Payload: res.Event.Payload}
}

type answer int

const (
	answerOther answer = iota
	answerYes
	answerNo
)

var (
	yesWords = map[string]bool{
		"yes": true, "y": true, "yeah": true, "yep": true, "sure": true, "ok": true, "okay": true,
		"confirm": true, "do it": true, "go ahead": true, "yes please": true, "please do": true,
	}
	noWords = map[string]bool{
		"no": true, "n": true, "nope": true, "cancel": true, "stop": true, "don't": true,
		"dont": true, "never mind": true, "nevermind": true, "no thanks": true,
	}
)

func parseConfirmation(text string) answer {
	t := strings.ToLower(strings.TrimSpace(text))
	t = strings.TrimRight(t, "!.? ")
	switch {
	case yesWords[t]:
		return answerYes
	case noWords[t]:
		return answerNo
	default:
		return answerOther
	}
}
