package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	repos "github.com/yungbote/maigie-backend/internal/data/repos"
	types "github.com/yungbote/maigie-backend/internal/domain"
	"github.com/yungbote/maigie-backend/internal/modules/assistant/action"
	"github.com/yungbote/maigie-backend/internal/modules/assistant/prompts"
	"github.com/yungbote/maigie-backend/internal/platform/dbctx"
	"github.com/yungbote/maigie-backend/internal/platform/logger"
	"github.com/yungbote/maigie-backend/internal/platform/tokens"
)

type NoteService struct {
	log      *logger.Logger
	noteRepo repos.NoteRepo
	llm      TextCaller
	counter  tokens.Counter
	budget   int
}

// NewNoteService clips note bodies to budget tokens before summarizing.
func NewNoteService(baseLog *logger.Logger, noteRepo repos.NoteRepo, llm TextCaller, counter tokens.Counter, budget int) *NoteService {
	if counter == nil {
		counter = tokens.Estimate{}
	}
	return &NoteService{
		log:      baseLog.With("service", "NoteService"),
		noteRepo: noteRepo,
		llm:      llm,
		counter:  counter,
		budget:   budget,
	}
}

type noteDraft struct {
	style string
	text  string
}

// Prepare loads the note and asks the model for the summary.
func (s *NoteService) Prepare(ctx context.Context, payload any, userID string) (any, error) {
	p, err := payloadAs[action.SummarizeNotePayload](payload)
	if err != nil {
		return nil, err
	}
	note, err := s.loadNote(dbctx.Context{Ctx: ctx}, p.NoteID, userID)
	if err != nil {
		return nil, err
	}
	return s.summarize(ctx, note, p.Style)
}

// Execute saves the summary. Without a prepared draft it summarizes inline.
func (s *NoteService) Execute(dbc dbctx.Context, payload any, userID string) (*Result, error) {
	p, err := payloadAs[action.SummarizeNotePayload](payload)
	if err != nil {
		return nil, err
	}
	// Reloaded in the transaction; the note may have changed hands since Prepare.
	note, err := s.loadNote(dbc, p.NoteID, userID)
	if err != nil {
		return nil, err
	}
	draft, ok := preparedAs[*noteDraft](payload)
	if !ok {
		if draft, err = s.summarize(dbc.Context(), note, p.Style); err != nil {
			return nil, err
		}
	}

	summary := &types.NoteSummary{
		ID:      uuid.NewString(),
		NoteID:  note.ID,
		UserID:  userID,
		Style:   draft.style,
		Summary: draft.text,
		Source:  SourceAI,
	}
	if err := s.noteRepo.SaveSummary(dbc, summary); err != nil {
		return nil, fmt.Errorf("save summary: %w", err)
	}
	return &Result{
		EntityType: "note",
		EntityID:   note.ID,
		Object:     summary,
		Context: action.ActiveContext{
			NoteID:   note.ID,
			CourseID: deref(note.CourseID),
			TopicID:  deref(note.TopicID),
		},
	}, nil
}

func (s *NoteService) loadNote(dbc dbctx.Context, noteID, userID string) (*types.Note, error) {
	note, err := s.noteRepo.GetByID(dbc, noteID)
	if err != nil {
		return nil, fmt.Errorf("load note: %w", err)
	}
	if note == nil || note.UserID != userID {
		return nil, ErrNoteNotFound
	}
	return note, nil
}

func (s *NoteService) summarize(ctx context.Context, note *types.Note, style string) (*noteDraft, error) {
	if style == "" {
		style = "brief"
	}
	system, task, err := prompts.NoteSummary(s.counter, s.budget, prompts.SummaryInput{
		Title:   note.Title,
		Content: note.Content,
		Style:   style,
	})
	if err != nil {
		return nil, fmt.Errorf("render summary prompt: %w", err)
	}
	text, err := s.llm.Call(ctx, system, task, string(prompts.PromptNoteSummary))
	if err != nil {
		return nil, fmt.Errorf("summarize note: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptySummary
	}
	return &noteDraft{style: style, text: text}, nil
}
