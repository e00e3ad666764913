package action

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestParseISO8601(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2026-03-01", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), true},
		{"2026-03-01T09:30:00Z", time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC), true},
		{"2026-03-01T09:30:00+02:00", time.Date(2026, 3, 1, 7, 30, 0, 0, time.UTC), true},
		{"2026-03-01T09:30", time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC), true},
		{"not-a-date", time.Time{}, false},
		{"03/01/2026", time.Time{}, false},
		{"", time.Time{}, false},
	}
	for _, tc := range cases {
		got, err := ParseISO8601(tc.in)
		if tc.ok != (err == nil) {
			t.Fatalf("ParseISO8601(%q): ok want=%v err=%v", tc.in, tc.ok, err)
		}
		if tc.ok && !got.Equal(tc.want) {
			t.Fatalf("ParseISO8601(%q): want=%v got=%v", tc.in, tc.want, got)
		}
	}
}

func TestDateKeepsDateOnlyForm(t *testing.T) {
	var p CreateGoalPayload
	if err := json.Unmarshal([]byte(`{"title":"x","target_date":"2026-05-01"}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	b, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"target_date":"2026-05-01"`) {
		t.Fatalf("want date-only output, got %s", b)
	}
}

func TestEventTypes(t *testing.T) {
	for _, at := range Domain() {
		if at.EventType() == "" {
			t.Fatalf("%s has no event type", at)
		}
		if _, ok := SchemaFor(at); !ok {
			t.Fatalf("%s has no schema", at)
		}
		if NewPayload(at) == nil || NewPayload(at).ActionType() != at {
			t.Fatalf("%s payload mismatch", at)
		}
	}
	if Clarify.IsDomain() || None.EventType() != "" {
		t.Fatalf("clarify/none must not be domain actions")
	}
}

func TestCourseEntityCount(t *testing.T) {
	p := CreateCoursePayload{Title: "DS", Modules: []ModuleSpec{
		{Title: "A", Topics: []string{"a1", "a2"}},
		{Title: "B"},
	}}
	if got := p.EntityCount(); got != 5 {
		t.Fatalf("EntityCount: want=5 got=%d", got)
	}
}

func TestDescribeListsRequiredFields(t *testing.T) {
	s, _ := SchemaFor(CreateScheduleBlock)
	d := s.Describe()
	for _, want := range []string{"create_schedule_block", "start_at (date, required)", "one of [none, daily, weekly]"} {
		if !strings.Contains(d, want) {
			t.Fatalf("Describe missing %q:\n%s", want, d)
		}
	}
}
