package dispatch

import (
	"fmt"
	"time"

	"github.com/yungbote/maigie-backend/internal/modules/assistant/action"
)

// AskFirst holds the thresholds above which an action needs an explicit yes
// from the user before it runs.
type AskFirst struct {
	MaxModules         int
	MaxEntities        int
	MaxRecommendations int
	// Dates further than these from now are confirmed first.
	PastWindow   time.Duration
	FutureWindow time.Duration
	MaxBlock     time.Duration
}

func DefaultAskFirst() AskFirst {
	return AskFirst{
		MaxModules:         12,
		MaxEntities:        60,
		MaxRecommendations: 10,
		PastWindow:         30 * 24 * time.Hour,
		FutureWindow:       2 * 365 * 24 * time.Hour,
		MaxBlock:           12 * time.Hour,
	}
}

// Question returns the confirmation question for req, or "" when the action
// may run without asking.
func (a AskFirst) Question(req action.Request, now time.Time) string {
	switch p := req.Payload.(type) {
	case action.CreateCoursePayload:
		if a.MaxModules > 0 && len(p.Modules) > a.MaxModules {
			return fmt.Sprintf("That course would have %d modules. Do you want me to create it anyway?", len(p.Modules))
		}
		if n := p.EntityCount(); a.MaxEntities > 0 && n > a.MaxEntities {
			return fmt.Sprintf("That course would add %d modules and topics. Do you want me to create it anyway?", n-1)
		}
		if q := a.dateQuestion("start date", p.StartDate, now); q != "" {
			return q
		}
		return a.dateQuestion("end date", p.EndDate, now)
	case action.CreateGoalPayload:
		return a.dateQuestion("target date", p.TargetDate, now)
	case action.CreateScheduleBlockPayload:
		if d := p.EndAt.Sub(p.StartAt.Time); a.MaxBlock > 0 && d > a.MaxBlock {
			return fmt.Sprintf("That study block is %s long. Should I schedule it?", humanDuration(d))
		}
		return a.dateQuestion("start time", &p.StartAt, now)
	case action.RecommendResourcesPayload:
		if n := p.EffectiveLimit(); a.MaxRecommendations > 0 && n > a.MaxRecommendations {
			return fmt.Sprintf("You asked for %d resources. Should I add all of them?", n)
		}
	}
	return ""
}

func (a AskFirst) dateQuestion(label string, d *action.Date, now time.Time) string {
	if d == nil || d.IsZero() {
		return ""
	}
	if a.PastWindow > 0 && d.Before(now.Add(-a.PastWindow)) {
		return fmt.Sprintf("The %s %s is well in the past. Is that right?", label, d.Format("2006-01-02"))
	}
	if a.FutureWindow > 0 && d.After(now.Add(a.FutureWindow)) {
		return fmt.Sprintf("The %s %s is far in the future. Is that right?", label, d.Format("2006-01-02"))
	}
	return ""
}

func humanDuration(d time.Duration) string {
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	if m == 0 {
		return fmt.Sprintf("%d hours", h)
	}
	return fmt.Sprintf("%dh%02dm", h, m)
}
