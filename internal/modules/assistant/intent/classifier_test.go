package intent

import (
	"testing"

	"github.com/yungbote/maigie-backend/internal/modules/assistant/action"
)

func newClassifier(t *testing.T) *Classifier {
	t.Helper()
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestClassifyTable(t *testing.T) {
	c := newClassifier(t)
	cases := []struct {
		name      string
		text      string
		ctx       action.ActiveContext
		path      Path
		candidate action.Type
	}{
		{"learn", "I want to learn Data Structures in 6 weeks", action.ActiveContext{}, PathAction, action.CreateCourse},
		{"recommend with topic", "recommend resources for this topic", action.ActiveContext{TopicID: "T1"}, PathAction, action.RecommendResources},
		{"recommend without topic", "recommend resources for this topic", action.ActiveContext{}, PathClarify, action.RecommendResources},
		{"remind", "remind me to review graphs tomorrow at 9", action.ActiveContext{}, PathAction, action.CreateScheduleBlock},
		{"goal", "My goal is to pass the algorithms final", action.ActiveContext{}, PathAction, action.CreateGoal},
		{"summarize", "can you summarize my note on heaps", action.ActiveContext{}, PathAction, action.SummarizeNote},
		{"gibberish", "asdkjh29#", action.ActiveContext{}, PathClarify, ""},
		{"symbols", "?!?! 1234 ###", action.ActiveContext{}, PathClarify, ""},
		{"empty", "   ", action.ActiveContext{}, PathClarify, ""},
		{"greeting", "hello!", action.ActiveContext{}, PathDirectAnswer, ""},
		{"thanks", "thank you so much", action.ActiveContext{}, PathDirectAnswer, ""},
		{"question", "what is the difference between a stack and a queue?", action.ActiveContext{}, PathRetrieval, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := c.Classify(tc.text, tc.ctx)
			if got.Path != tc.path {
				t.Fatalf("path: want=%s got=%s (rule=%s)", tc.path, got.Path, got.Rule)
			}
			if got.Candidate != tc.candidate {
				t.Fatalf("candidate: want=%q got=%q", tc.candidate, got.Candidate)
			}
		})
	}
}

func TestClassifyAmbiguousHasLowConfidence(t *testing.T) {
	c := newClassifier(t)
	got := c.Classify("asdkjh29#", action.ActiveContext{})
	if !got.Ambiguous || got.Confidence >= c.t.threshold {
		t.Fatalf("want ambiguous low-confidence result, got %+v", got)
	}
	if len(got.Allowed()) != 1 || got.Allowed()[0] != action.Clarify {
		t.Fatalf("clarify path should allow only clarify, got %v", got.Allowed())
	}
}

func TestClassifyMissingContextLowersConfidence(t *testing.T) {
	c := newClassifier(t)
	with := c.Classify("what is important in this course", action.ActiveContext{CourseID: "c1"})
	without := c.Classify("what is important in this course", action.ActiveContext{})
	if with.Path != PathRetrieval || without.Path != PathRetrieval {
		t.Fatalf("want retrieval for both, got %s / %s", with.Path, without.Path)
	}
	if without.Confidence >= with.Confidence || without.MissingContext != "course" {
		t.Fatalf("missing context should lower confidence: with=%v without=%+v", with.Confidence, without)
	}
}

func TestAllowedByPath(t *testing.T) {
	r := Result{Path: PathAction, Candidate: action.CreateGoal}
	allowed := r.Allowed()
	if !action.Contains(allowed, action.CreateGoal) || action.Contains(allowed, action.CreateCourse) {
		t.Fatalf("action path allowed=%v", allowed)
	}
	if got := (Result{Path: PathRetrieval}).Allowed(); len(got) != len(action.All()) {
		t.Fatalf("retrieval path should allow every action, got %v", got)
	}
}

func TestParseTableRejectsUnknownAction(t *testing.T) {
	_, err := parseTable([]byte("version: 1\nrules:\n  - id: x\n    action: drop_tables\n    weight: 1\n    patterns: ['x']\n"))
	if err == nil {
		t.Fatalf("want error for unknown action")
	}
}
