package action

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

var isoLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseISO8601 accepts calendar dates and date-times. Values without an
// offset are read as UTC.
func ParseISO8601(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("not an ISO-8601 date: %q", s)
}

// Date is a payload timestamp that remembers whether it was date-only.
type Date struct {
	time.Time
	DateOnly bool
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	t, err := ParseISO8601(s)
	if err != nil {
		return err
	}
	d.Time = t
	d.DateOnly = len(strings.TrimSpace(s)) == len("2006-01-02")
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.DateOnly {
		return json.Marshal(d.Time.Format("2006-01-02"))
	}
	return json.Marshal(d.Time.Format(time.RFC3339))
}

// Ptr returns the time or nil for a nil date.
func (d *Date) Ptr() *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}
