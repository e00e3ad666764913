package validate

import (
	"strings"
	"testing"

	"github.com/yungbote/maigie-backend/internal/modules/assistant/action"
)

func wrap(s string) string { return "JSON_ONLY\n" + s + "\nEND_JSON" }

func TestValidateAcceptsExactWireShape(t *testing.T) {
	v := New()
	res := v.Validate(wrap(`{"action":"create_goal","payload":{"title":"Pass the exam","target_date":"2026-06-01"}}`), nil)
	if res.State != action.StateValid {
		t.Fatalf("state: want=%s got=%s (%s %s)", action.StateValid, res.State, res.Reason, res.Detail)
	}
	if res.RepairAttempts != 0 {
		t.Fatalf("repair attempts: want=0 got=%d", res.RepairAttempts)
	}
	p, ok := res.Request.Payload.(action.CreateGoalPayload)
	if !ok {
		t.Fatalf("payload type: got %T", res.Request.Payload)
	}
	if p.Title != "Pass the exam" || p.TargetDate == nil || p.TargetDate.Format("2006-01-02") != "2026-06-01" {
		t.Fatalf("payload: got %+v", p)
	}
}

func TestValidateRepairsFormattingSlips(t *testing.T) {
	cases := []struct {
		name  string
		raw   string
		check func(t *testing.T, p action.Payload)
	}{
		{
			name: "trailing comma",
			raw:  wrap(`{"action":"create_goal","payload":{"title":"Pass exam",},}`),
		},
		{
			name: "bare keys",
			raw:  wrap(`{action: "create_goal", payload: {title: "Pass exam"}}`),
		},
		{
			name: "bare values",
			raw:  wrap(`{"action": create_goal, "payload": {"title": Pass exam}}`),
			check: func(t *testing.T, p action.Payload) {
				if got := p.(action.CreateGoalPayload).Title; got != "Pass exam" {
					t.Fatalf("title: want=%q got=%q", "Pass exam", got)
				}
			},
		},
		{
			name: "smart quotes",
			raw:  wrap(`{“action”: “none”, “payload”: {}}`),
		},
		{
			name: "interior quotes",
			raw:  wrap(`{"action":"clarify","payload":{"question":"Did you mean "Data Structures"?"}}`),
			check: func(t *testing.T, p action.Payload) {
				if got := p.(action.ClarifyPayload).Question; got != `Did you mean "Data Structures"?` {
					t.Fatalf("question: got %q", got)
				}
			},
		},
		{
			name: "bare object body",
			raw:  wrap(`"action": "none", "payload": {"reply": "hi"}`),
		},
		{
			name: "code fence",
			raw:  wrap("```json\n{\"action\":\"none\",\"payload\":{}}\n```"),
		},
		{
			name: "single quotes",
			raw:  wrap(`{'action': 'create_goal', 'payload': {'title': 'Pass exam'}}`),
		},
	}
	v := New()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := v.Validate(tc.raw, nil)
			if res.State != action.StateRepaired {
				t.Fatalf("state: want=%s got=%s (%s: %s)", action.StateRepaired, res.State, res.Reason, res.Detail)
			}
			if res.RepairAttempts != 1 {
				t.Fatalf("repair attempts: want=1 got=%d", res.RepairAttempts)
			}
			if tc.check != nil {
				tc.check(t, res.Request.Payload)
			}
		})
	}
}

func TestValidateRepairIsBounded(t *testing.T) {
	v := New()
	inputs := []string{
		wrap(`{"action": "create_goal", "payload": {"title": "x"`),
		wrap(`{{{{`),
		wrap(`]]]`),
		wrap(`{"action": "none"} {"action": "none"}`),
	}
	for _, raw := range inputs {
		res := v.Validate(raw, nil)
		if res.State != action.StateRejected || res.Reason != ReasonSyntaxError {
			t.Fatalf("%q: want rejected/syntax_error got %s/%s", raw, res.State, res.Reason)
		}
		repairs := 0
		for _, st := range res.Stages {
			if st == StageRepairAttempted {
				repairs++
			}
		}
		if repairs != 1 || res.RepairAttempts != 1 {
			t.Fatalf("%q: want exactly one repair attempt, stages=%v", raw, res.Stages)
		}
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		allowed []action.Type
		reason  Reason
		field   string
	}{
		{"no block", "Sure, I'll set that up for you.", nil, ReasonNoJSONBlock, ""},
		{"empty block", "JSON_ONLY\nEND_JSON", nil, ReasonNoJSONBlock, ""},
		{"unknown action", wrap(`{"action":"delete_course","payload":{}}`), nil, ReasonUnknownAction, "action"},
		{"not permitted", wrap(`{"action":"create_goal","payload":{"title":"x"}}`), []action.Type{action.CreateCourse, action.Clarify}, ReasonActionNotPermitted, "action"},
		{"missing action", wrap(`{"payload":{}}`), nil, ReasonMissingField, "action"},
		{"missing title", wrap(`{"action":"create_goal","payload":{}}`), nil, ReasonMissingField, "title"},
		{"blank title", wrap(`{"action":"create_goal","payload":{"title":"  "}}`), nil, ReasonMissingField, "title"},
		{"payload not object", wrap(`{"action":"create_goal","payload":"x"}`), nil, ReasonInvalidType, "payload"},
		{"limit not integer", wrap(`{"action":"recommend_resources","payload":{"query":"q","limit":"ten"}}`), nil, ReasonInvalidType, "limit"},
		{"limit too large", wrap(`{"action":"recommend_resources","payload":{"query":"q","limit":500}}`), nil, ReasonInvalidValue, "limit"},
		{"bad enum", wrap(`{"action":"create_course","payload":{"title":"x","level":"expert"}}`), nil, ReasonInvalidValue, "level"},
		{"module without title", wrap(`{"action":"create_course","payload":{"title":"x","modules":[{"topics":["a"]}]}}`), nil, ReasonMissingField, "modules[0].title"},
		{"invalid date", wrap(`{"action":"create_goal","payload":{"title":"x","target_date":"not-a-date"}}`), nil, ReasonInvalidDate, "target_date"},
		{"course dates reversed", wrap(`{"action":"create_course","payload":{"title":"x","start_date":"2026-03-01","end_date":"2026-02-01"}}`), nil, ReasonDateOrder, "end_date"},
		{"block ends at start", wrap(`{"action":"create_schedule_block","payload":{"title":"x","start_at":"2026-03-01T09:00:00Z","end_at":"2026-03-01T09:00:00Z"}}`), nil, ReasonDateOrder, "end_at"},
	}
	v := New()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := v.Validate(tc.raw, tc.allowed)
			if res.State != action.StateRejected {
				t.Fatalf("state: want=rejected got=%s", res.State)
			}
			if res.Reason != tc.reason {
				t.Fatalf("reason: want=%s got=%s (%s)", tc.reason, res.Reason, res.Detail)
			}
			if res.Field != tc.field {
				t.Fatalf("field: want=%q got=%q", tc.field, res.Field)
			}
			if res.Request.RawModelOutput != tc.raw {
				t.Fatalf("raw output must be kept for audit")
			}
		})
	}
}

func TestValidateSemanticErrorIsNotRepaired(t *testing.T) {
	res := New().Validate(wrap(`{"action":"create_goal","payload":{"title":"x","target_date":"not-a-date"}}`), nil)
	if res.RepairAttempts != 0 {
		t.Fatalf("semantic errors must not trigger repair, attempts=%d", res.RepairAttempts)
	}
}

func TestValidateNormalizesCamelCaseKeys(t *testing.T) {
	res := New().Validate(wrap(`{"action":"recommend_resources","payload":{"query":"graph traversal","topicId":"T1","limit":10}}`), []action.Type{action.RecommendResources})
	if !res.Accepted() {
		t.Fatalf("want accepted, got %s %s", res.Reason, res.Detail)
	}
	p := res.Request.Payload.(action.RecommendResourcesPayload)
	if p.TopicID != "T1" || p.Limit != 10 {
		t.Fatalf("payload: got %+v", p)
	}
}

func TestValidateMissingEndMarker(t *testing.T) {
	res := New().Validate("JSON_ONLY\n{\"action\":\"none\",\"payload\":{\"reply\":\"ok {fine}\"}}\ntrailing words", nil)
	if res.State != action.StateValid {
		t.Fatalf("state: want=valid got=%s (%s)", res.State, res.Reason)
	}
}

func TestSnakeCase(t *testing.T) {
	cases := map[string]string{
		"topicId":    "topic_id",
		"TopicID":    "topic_id",
		"noteID":     "note_id",
		"start_date": "start_date",
		"startDate":  "start_date",
		"URLPath":    "url_path",
		"course-id":  "course_id",
	}
	for in, want := range cases {
		if got := snakeCase(in); got != want {
			t.Fatalf("snakeCase(%q): want=%q got=%q", in, want, got)
		}
	}
}

func TestRepairDoesNotTouchValidJSON(t *testing.T) {
	in := `{"a": "x, y", "b": [1, 2], "c": {"d": true}}`
	if got := repair(in); strings.TrimSpace(got) != in {
		t.Fatalf("repair changed valid JSON:\nin:  %s\nout: %s", in, got)
	}
}

func TestReplyText(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"plain", "  Hello there!  ", "Hello there!"},
		{"lead sentence", "Creating your course now.\nJSON_ONLY\n{\"action\":\"none\"}\nEND_JSON", "Creating your course now."},
		{"fenced block", "Sure.\n```json\nJSON_ONLY\n{}\nEND_JSON\n```\nAnything else?", "Sure.\n\nAnything else?"},
		{"block only", "JSON_ONLY\n{}\nEND_JSON", ""},
		{"unterminated", "On it.\nJSON_ONLY\n{\"action\":", "On it."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ReplyText(tc.raw); got != tc.want {
				t.Fatalf("want=%q got=%q", tc.want, got)
			}
		})
	}
}
