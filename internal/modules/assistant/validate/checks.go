package validate

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yungbote/maigie-backend/internal/modules/assistant/action"
)

type issue struct {
	reason Reason
	field  string
	detail string
}

func checkFields(fields []action.Field, obj map[string]any, prefix string) *issue {
	for _, f := range fields {
		path := prefix + f.Name
		v, present := obj[f.Name]
		if !present {
			if f.Required {
				return &issue{ReasonMissingField, path, "required"}
			}
			continue
		}
		switch f.Kind {
		case action.KindString:
			s, ok := v.(string)
			if !ok {
				return &issue{ReasonInvalidType, path, "want string"}
			}
			if f.Required && strings.TrimSpace(s) == "" {
				return &issue{ReasonMissingField, path, "empty"}
			}
			if len(f.Enum) > 0 {
				norm := strings.ToLower(strings.TrimSpace(s))
				if !contains(f.Enum, norm) {
					return &issue{ReasonInvalidValue, path, fmt.Sprintf("want one of %v", f.Enum)}
				}
				obj[f.Name] = norm
			}
		case action.KindInteger:
			n, ok := v.(json.Number)
			if !ok {
				return &issue{ReasonInvalidType, path, "want integer"}
			}
			if _, err := n.Int64(); err != nil {
				return &issue{ReasonInvalidType, path, "want integer"}
			}
		case action.KindDate:
			s, ok := v.(string)
			if !ok {
				return &issue{ReasonInvalidType, path, "want ISO-8601 string"}
			}
			if _, err := action.ParseISO8601(s); err != nil {
				return &issue{ReasonInvalidDate, path, "not ISO-8601"}
			}
		case action.KindStrings:
			arr, ok := v.([]any)
			if !ok {
				return &issue{ReasonInvalidType, path, "want array"}
			}
			for i, el := range arr {
				if _, ok := el.(string); !ok {
					return &issue{ReasonInvalidType, fmt.Sprintf("%s[%d]", path, i), "want string"}
				}
			}
		case action.KindObjects:
			arr, ok := v.([]any)
			if !ok {
				return &issue{ReasonInvalidType, path, "want array"}
			}
			for i, el := range arr {
				m, ok := el.(map[string]any)
				if !ok {
					return &issue{ReasonInvalidType, fmt.Sprintf("%s[%d]", path, i), "want object"}
				}
				if iss := checkFields(f.Items, m, fmt.Sprintf("%s[%d].", path, i)); iss != nil {
					return iss
				}
			}
		}
	}
	return nil
}

// checkSemantics rejects payloads that parse but cannot be right.
func checkSemantics(p action.Payload) *issue {
	switch t := p.(type) {
	case *action.CreateCoursePayload:
		if t.StartDate != nil && t.EndDate != nil && t.EndDate.Before(t.StartDate.Time) {
			return &issue{ReasonDateOrder, "end_date", "end_date before start_date"}
		}
	case *action.CreateScheduleBlockPayload:
		if !t.EndAt.After(t.StartAt.Time) {
			return &issue{ReasonDateOrder, "end_at", "end_at must be after start_at"}
		}
	case *action.RecommendResourcesPayload:
		if t.Limit < 0 || t.Limit > action.MaxRecommendLimit {
			return &issue{ReasonInvalidValue, "limit", "out of range"}
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
