package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	repos "github.com/yungbote/maigie-backend/internal/data/repos"
	"github.com/yungbote/maigie-backend/internal/data/repos/testutil"
	types "github.com/yungbote/maigie-backend/internal/domain"
	"github.com/yungbote/maigie-backend/internal/modules/assistant/action"
	"github.com/yungbote/maigie-backend/internal/modules/assistant/gateway"
	"github.com/yungbote/maigie-backend/internal/platform/dbctx"
)

func at(t *testing.T, s string) action.Date {
	t.Helper()
	tm, err := action.ParseISO8601(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return action.Date{Time: tm}
}

func TestCourseServiceCreatesModulesAndTopics(t *testing.T) {
	log := testutil.Logger(t)
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: testutil.Tx(t, db)}
	courseRepo := repos.NewCourseRepo(db, log)
	svc := NewCourseService(log, courseRepo)

	res, err := svc.Execute(dbc, &action.CreateCoursePayload{
		Title: "  Data Structures ",
		Modules: []action.ModuleSpec{
			{Title: "Arrays", Topics: []string{"Static arrays", "Dynamic arrays"}},
			{Title: "Trees", Topics: []string{"BST"}},
		},
	}, "u1")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.EntityType != "course" || res.Context.CourseID != res.EntityID || res.Context.TopicID == "" {
		t.Fatalf("result: got %+v", res)
	}

	got, err := courseRepo.GetByID(dbc, res.EntityID)
	if err != nil || got == nil {
		t.Fatalf("GetByID: err=%v got=%v", err, got)
	}
	if got.Title != "Data Structures" || got.Source != SourceAI {
		t.Fatalf("course: want title=%q source=%q got %q %q", "Data Structures", SourceAI, got.Title, got.Source)
	}
	if len(got.Modules) != 2 || len(got.Modules[0].Topics) != 2 || got.Modules[1].Topics[0].Title != "BST" {
		t.Fatalf("modules: got %+v", got.Modules)
	}
}

func TestPayloadMismatch(t *testing.T) {
	log := testutil.Logger(t)
	db := testutil.DB(t)
	svc := NewGoalService(log, repos.NewGoalRepo(db, log))
	_, err := svc.Execute(dbctx.Context{Ctx: context.Background()}, action.ClarifyPayload{Question: "?"}, "u1")
	if !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("want=%v got=%v", ErrInvalidPayload, err)
	}
}

func TestScheduleServiceConflict(t *testing.T) {
	log := testutil.Logger(t)
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: testutil.Tx(t, db)}
	svc := NewScheduleService(log, repos.NewScheduleBlockRepo(db, log))

	first := action.CreateScheduleBlockPayload{
		Title:   "Algebra",
		StartAt: at(t, "2026-10-20T18:00:00Z"),
		EndAt:   at(t, "2026-10-20T19:00:00Z"),
	}
	res, err := svc.Execute(dbc, first, "u1")
	if err != nil {
		t.Fatalf("first block: %v", err)
	}
	block := res.Object.(*types.ScheduleBlock)
	if block.Recurrence != "none" {
		t.Fatalf("recurrence default: want=none got=%s", block.Recurrence)
	}

	cases := []struct {
		name    string
		user    string
		start   string
		end     string
		wantErr error
	}{
		{"overlapping", "u1", "2026-10-20T18:30:00Z", "2026-10-20T19:30:00Z", ErrScheduleConflict},
		{"back to back", "u1", "2026-10-20T19:00:00Z", "2026-10-20T20:00:00Z", nil},
		{"other user same slot", "u2", "2026-10-20T18:00:00Z", "2026-10-20T19:00:00Z", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Execute(dbc, action.CreateScheduleBlockPayload{
				Title:   "x",
				StartAt: at(t, tc.start),
				EndAt:   at(t, tc.end),
			}, tc.user)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("want=%v got=%v", tc.wantErr, err)
			}
		})
	}
}

type fakeRetriever struct {
	docs  []gateway.Document
	err   error
	scope gateway.Scope
	k     int
}

func (f *fakeRetriever) Search(_ context.Context, _ string, scope gateway.Scope, k int) ([]gateway.Document, error) {
	f.scope, f.k = scope, k
	return f.docs, f.err
}

func TestResourceServiceLinksRankedResults(t *testing.T) {
	log := testutil.Logger(t)
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: testutil.Tx(t, db)}
	resourceRepo := repos.NewResourceRepo(db, log)

	r := &fakeRetriever{docs: []gateway.Document{
		{ID: "d1", Title: "Intro", Score: 0.9},
		{ID: "d2", Title: "Deep dive", Score: 0.8},
		{ID: "d3", Title: "Exercises", Score: 0.7},
	}}
	svc := NewResourceService(log, resourceRepo, r)

	res, err := svc.Execute(dbc, action.RecommendResourcesPayload{Query: "photosynthesis", TopicID: "T1", Limit: 2}, "u1")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if r.k != 2 || r.scope.UserID != "u1" || r.scope.TopicID != "T1" {
		t.Fatalf("search args: k=%d scope=%+v", r.k, r.scope)
	}
	rows, err := resourceRepo.GetByTopicID(dbc, "u1", "T1")
	if err != nil {
		t.Fatalf("GetByTopicID: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("linked rows: want=2 got=%d", len(rows))
	}
	rec := res.Object.(*Recommendation)
	if rec.Resources[0].Rank != 1 || rec.Resources[0].DocumentID != "d1" {
		t.Fatalf("first resource: got %+v", rec.Resources[0])
	}

	r.docs = nil
	if _, err := svc.Execute(dbc, action.RecommendResourcesPayload{Query: "x", TopicID: "T1"}, "u1"); !errors.Is(err, ErrNoResults) {
		t.Fatalf("empty search: want=%v got=%v", ErrNoResults, err)
	}
	r.err = gateway.ErrRetrievalUnavailable
	if _, err := svc.Execute(dbc, action.RecommendResourcesPayload{Query: "x"}, "u1"); !errors.Is(err, gateway.ErrRetrievalUnavailable) {
		t.Fatalf("search failure: want=%v got=%v", gateway.ErrRetrievalUnavailable, err)
	}
}

type fakeCaller struct {
	out  string
	err  error
	task string
}

func (f *fakeCaller) Call(_ context.Context, _, task, _ string) (string, error) {
	f.task = task
	return f.out, f.err
}

func TestNoteServiceSummarize(t *testing.T) {
	log := testutil.Logger(t)
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	noteRepo := repos.NewNoteRepo(db, log)
	note := testutil.SeedNote(t, ctx, tx, "u1", "Mitochondria produce ATP through respiration.")

	llm := &fakeCaller{out: "  Mitochondria make ATP.  "}
	svc := NewNoteService(log, noteRepo, llm, nil, 0)

	res, err := svc.Execute(dbc, action.SummarizeNotePayload{NoteID: note.ID, Style: "bullets"}, "u1")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(llm.task, "Mitochondria produce ATP") || !strings.Contains(llm.task, "bullet") {
		t.Fatalf("prompt missing note or style:\n%s", llm.task)
	}
	sum := res.Object.(*types.NoteSummary)
	if sum.Summary != "Mitochondria make ATP." || sum.Style != "bullets" {
		t.Fatalf("summary: got %+v", sum)
	}
	got, err := noteRepo.GetByID(dbc, note.ID)
	if err != nil || got.Summary != "Mitochondria make ATP." {
		t.Fatalf("note summary: err=%v got=%q", err, got.Summary)
	}

	if _, err := svc.Execute(dbc, action.SummarizeNotePayload{NoteID: note.ID}, "u2"); !errors.Is(err, ErrNoteNotFound) {
		t.Fatalf("other user: want=%v got=%v", ErrNoteNotFound, err)
	}
	llm.out = "   "
	if _, err := svc.Execute(dbc, action.SummarizeNotePayload{NoteID: note.ID}, "u1"); !errors.Is(err, ErrEmptySummary) {
		t.Fatalf("blank output: want=%v got=%v", ErrEmptySummary, err)
	}
}

func TestSetFor(t *testing.T) {
	log := testutil.Logger(t)
	db := testutil.DB(t)
	set := Set{Goal: NewGoalService(log, repos.NewGoalRepo(db, log))}
	if _, ok := set.For(action.CreateGoal); !ok {
		t.Fatalf("goal executor missing")
	}
	for _, typ := range []action.Type{action.CreateCourse, action.Clarify, action.None} {
		if _, ok := set.For(typ); ok {
			t.Fatalf("%s: want no executor", typ)
		}
	}
}

func TestPreparedValuesSkipExternalCalls(t *testing.T) {
	log := testutil.Logger(t)
	db := testutil.DB(t)
	ctx := context.Background()
	note := testutil.SeedNote(t, ctx, db, "u1", "Enzymes lower activation energy.")

	llm := &fakeCaller{out: "Enzymes speed reactions."}
	notes := NewNoteService(log, repos.NewNoteRepo(db, log), llm, nil, 0)
	notePayload := action.SummarizeNotePayload{NoteID: note.ID}
	draft, err := notes.Prepare(ctx, notePayload, "u1")
	if err != nil {
		t.Fatalf("note Prepare: %v", err)
	}
	if _, err := notes.Prepare(ctx, notePayload, "u2"); !errors.Is(err, ErrNoteNotFound) {
		t.Fatalf("note Prepare other user: want=%v got=%v", ErrNoteNotFound, err)
	}

	r := &fakeRetriever{docs: []gateway.Document{{ID: "d1", Title: "Intro", Score: 0.9}}}
	resources := NewResourceService(log, repos.NewResourceRepo(db, log), r)
	resPayload := action.RecommendResourcesPayload{Query: "enzymes", TopicID: "T1"}
	docs, err := resources.Prepare(ctx, resPayload, "u1")
	if err != nil {
		t.Fatalf("resource Prepare: %v", err)
	}

	llm.task, llm.out = "", "must not be used"
	r.k = 0
	dbc := dbctx.Context{Ctx: ctx, Tx: testutil.Tx(t, db)}

	res, err := notes.Execute(dbc, Prepared{Payload: notePayload, Value: draft}, "u1")
	if err != nil {
		t.Fatalf("note Execute: %v", err)
	}
	if llm.task != "" {
		t.Fatalf("Execute called the model again")
	}
	if sum := res.Object.(*types.NoteSummary); sum.Summary != "Enzymes speed reactions." || sum.Style != "brief" {
		t.Fatalf("summary: got %+v", sum)
	}

	res, err = resources.Execute(dbc, Prepared{Payload: &resPayload, Value: docs}, "u1")
	if err != nil {
		t.Fatalf("resource Execute: %v", err)
	}
	if r.k != 0 {
		t.Fatalf("Execute searched again: k=%d", r.k)
	}
	if rec := res.Object.(*Recommendation); rec.Count != 1 || rec.Resources[0].DocumentID != "d1" {
		t.Fatalf("recommendation: got %+v", rec)
	}
}
