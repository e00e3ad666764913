package observability

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/yungbote/maigie-backend/internal/platform/logger"
)

func TestParseHeaders(t *testing.T) {
	cases := []struct {
		raw  string
		want map[string]string
	}{
		{"", nil},
		{"api-key=abc", map[string]string{"api-key": "abc"}},
		{" a = 1 , b=2,broken,=x,c=", map[string]string{"a": "1", "b": "2"}},
	}
	for _, tc := range cases {
		if diff := cmp.Diff(tc.want, parseHeaders(tc.raw)); diff != "" {
			t.Fatalf("parseHeaders(%q) (-want +got):\n%s", tc.raw, diff)
		}
	}
}

func TestClampRatio(t *testing.T) {
	for in, want := range map[float64]float64{-1: 0, 0.25: 0.25, 3: 1} {
		if got := clampRatio(in); got != want {
			t.Fatalf("clampRatio(%v): want=%v got=%v", in, want, got)
		}
	}
}

func TestInitOTelDisabledIsNoop(t *testing.T) {
	shutdown, err := InitOTel(context.Background(), logger.Nop(), OtelConfig{})
	if err != nil {
		t.Fatalf("InitOTel: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
