package dispatch

import (
	"testing"
	"time"

	"github.com/yungbote/maigie-backend/internal/modules/assistant/action"
)

func TestAskFirstQuestion(t *testing.T) {
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	day := func(s string) *action.Date {
		tm, err := action.ParseISO8601(s)
		if err != nil {
			t.Fatalf("parse %q: %v", s, err)
		}
		return &action.Date{Time: tm, DateOnly: true}
	}
	topics := make([]string, 40)
	for i := range topics {
		topics[i] = "t"
	}

	cases := []struct {
		name string
		p    action.Payload
		ask  bool
	}{
		{"small course", action.CreateCoursePayload{Title: "x", Modules: []action.ModuleSpec{{Title: "m", Topics: []string{"a"}}}}, false},
		{"too many topics", action.CreateCoursePayload{Title: "x", Modules: []action.ModuleSpec{{Title: "m", Topics: topics}, {Title: "n", Topics: topics}}}, true},
		{"course starting last year", action.CreateCoursePayload{Title: "x", StartDate: day("2025-09-01")}, true},
		{"goal next month", action.CreateGoalPayload{Title: "x", TargetDate: day("2026-11-15")}, false},
		{"goal in five years", action.CreateGoalPayload{Title: "x", TargetDate: day("2031-01-01")}, true},
		{"one hour block", action.CreateScheduleBlockPayload{Title: "x", StartAt: *day("2026-10-16"), EndAt: action.Date{Time: day("2026-10-16").Add(time.Hour)}}, false},
		{"fourteen hour block", action.CreateScheduleBlockPayload{Title: "x", StartAt: *day("2026-10-16"), EndAt: action.Date{Time: day("2026-10-16").Add(14 * time.Hour)}}, true},
		{"default limit", action.RecommendResourcesPayload{Query: "x"}, false},
		{"limit 25", action.RecommendResourcesPayload{Query: "x", Limit: 25}, true},
		{"summarize", action.SummarizeNotePayload{NoteID: "n1"}, false},
	}
	policy := DefaultAskFirst()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := policy.Question(action.Request{Type: tc.p.ActionType(), Payload: tc.p}, now)
			if got := q != ""; got != tc.ask {
				t.Fatalf("ask: want=%v got=%v (question %q)", tc.ask, got, q)
			}
		})
	}
}
