package tokens

import (
	"strings"
	"testing"
)

func TestEstimate(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"abc", 1},
		{"abcd", 1},
		{"abcde", 2},
		{"héllo wörld", 3},
	}
	for _, tc := range cases {
		if got := (Estimate{}).Count(tc.in); got != tc.want {
			t.Fatalf("Count(%q): want=%d got=%d", tc.in, tc.want, got)
		}
	}
}

func TestTruncate(t *testing.T) {
	c := Estimate{}
	text := strings.Repeat("word ", 100)
	out := Truncate(c, text, 10)
	if c.Count(out) > 10 {
		t.Fatalf("truncated text over budget: %d", c.Count(out))
	}
	if !strings.HasSuffix(out, "…") {
		t.Fatalf("want ellipsis marker got=%q", out)
	}
	if got := Truncate(c, "short", 10); got != "short" {
		t.Fatalf("short text should pass through, got=%q", got)
	}
	if got := Truncate(c, text, 0); got != "" {
		t.Fatalf("zero budget: want empty got=%q", got)
	}
}
