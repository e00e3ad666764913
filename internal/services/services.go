package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/yungbote/maigie-backend/internal/modules/assistant/action"
	"github.com/yungbote/maigie-backend/internal/platform/dbctx"
)

// SourceAI marks rows created from an assistant action.
const SourceAI = "ai"

var (
	ErrInvalidPayload   = errors.New("payload does not match service")
	ErrScheduleConflict = errors.New("schedule block overlaps an existing block")
	ErrNoteNotFound     = errors.New("note not found")
	ErrNoResults        = errors.New("no resources matched the query")
	ErrEmptySummary     = errors.New("model returned an empty summary")
)

// Result describes the change a service made inside the dispatch transaction.
type Result struct {
	EntityType string
	EntityID   string
	// Object is the created domain object; its JSON becomes the event payload.
	Object any
	// Context holds ids the conversation should treat as active afterwards.
	Context action.ActiveContext
}

// Executor runs one action inside the caller's transaction (dbc.Tx). It must
// not commit or publish anything itself.
type Executor interface {
	Execute(dbc dbctx.Context, payload any, userID string) (*Result, error)
}

// Preparer is implemented by executors whose action needs a slow external
// call. Prepare runs before the dispatch transaction opens, on a context the
// caller may cancel; its value reaches Execute wrapped in Prepared.
type Preparer interface {
	Prepare(ctx context.Context, payload any, userID string) (any, error)
}

// Prepared carries a payload together with what Prepare returned for it.
type Prepared struct {
	Payload any
	Value   any
}

// TextCaller is the slice of the LLM gateway the note service needs.
type TextCaller interface {
	Call(ctx context.Context, system, task, schemaName string) (string, error)
}

// Set maps every domain action to its service.
type Set struct {
	Course   Executor
	Goal     Executor
	Schedule Executor
	Resource Executor
	Note     Executor
}

func (s Set) For(t action.Type) (Executor, bool) {
	var e Executor
	switch t {
	case action.CreateCourse:
		e = s.Course
	case action.CreateGoal:
		e = s.Goal
	case action.CreateScheduleBlock:
		e = s.Schedule
	case action.RecommendResources:
		e = s.Resource
	case action.SummarizeNote:
		e = s.Note
	}
	return e, e != nil
}

func payloadAs[T any](payload any) (T, error) {
	if pp, ok := payload.(Prepared); ok {
		payload = pp.Payload
	}
	switch p := payload.(type) {
	case T:
		return p, nil
	case *T:
		if p != nil {
			return *p, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("%w: got %T", ErrInvalidPayload, payload)
}

// preparedAs returns the prepared value when payload carries one of type T.
func preparedAs[T any](payload any) (T, bool) {
	pp, ok := payload.(Prepared)
	if !ok {
		var zero T
		return zero, false
	}
	v, ok := pp.Value.(T)
	return v, ok
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
