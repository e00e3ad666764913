package envutil

import (
	"testing"
	"time"
)

func TestDuration(t *testing.T) {
	cases := []struct {
		name string
		val  string
		want time.Duration
	}{
		{name: "unset", val: "", want: 3 * time.Second},
		{name: "seconds", val: "12", want: 12 * time.Second},
		{name: "go duration", val: "750ms", want: 750 * time.Millisecond},
		{name: "garbage", val: "soon", want: 3 * time.Second},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("MAIGIE_TEST_DURATION", tc.val)
			if got := Duration("MAIGIE_TEST_DURATION", 3*time.Second); got != tc.want {
				t.Fatalf("want=%s got=%s", tc.want, got)
			}
		})
	}
}

func TestBool(t *testing.T) {
	t.Setenv("MAIGIE_TEST_BOOL", "Yes")
	if !Bool("MAIGIE_TEST_BOOL", false) {
		t.Fatalf("want=true got=false")
	}
	t.Setenv("MAIGIE_TEST_BOOL", "maybe")
	if Bool("MAIGIE_TEST_BOOL", false) {
		t.Fatalf("unparseable value should fall back to default")
	}
}
