package action

import (
	"fmt"
	"strings"
)

// Kind is the JSON shape a payload field must have.
type Kind string

const (
	KindString  Kind = "string"
	KindInteger Kind = "integer"
	KindDate    Kind = "date"
	KindObjects Kind = "array<object>"
	KindStrings Kind = "array<string>"
)

type Field struct {
	Name        string
	Kind        Kind
	Required    bool
	Enum        []string
	Description string
	// Items describes element fields when Kind is KindObjects.
	Items []Field
}

type Schema struct {
	Type        Type
	Description string
	Fields      []Field
}

var schemas = map[Type]Schema{
	CreateCourse: {
		Type:        CreateCourse,
		Description: "Create a study course with ordered modules.",
		Fields: []Field{
			{Name: "title", Kind: KindString, Required: true, Description: "course title"},
			{Name: "description", Kind: KindString},
			{Name: "level", Kind: KindString, Enum: []string{"beginner", "intermediate", "advanced"}},
			{Name: "start_date", Kind: KindDate, Description: "ISO-8601 date"},
			{Name: "end_date", Kind: KindDate, Description: "ISO-8601 date, not before start_date"},
			{Name: "modules", Kind: KindObjects, Description: "ordered modules", Items: []Field{
				{Name: "title", Kind: KindString, Required: true},
				{Name: "topics", Kind: KindStrings, Description: "topic titles"},
			}},
		},
	},
	CreateGoal: {
		Type:        CreateGoal,
		Description: "Set a study goal.",
		Fields: []Field{
			{Name: "title", Kind: KindString, Required: true},
			{Name: "description", Kind: KindString},
			{Name: "target_date", Kind: KindDate, Description: "ISO-8601 date"},
			{Name: "course_id", Kind: KindString, Description: "existing course id"},
		},
	},
	CreateScheduleBlock: {
		Type:        CreateScheduleBlock,
		Description: "Block time in the study schedule.",
		Fields: []Field{
			{Name: "title", Kind: KindString, Required: true},
			{Name: "start_at", Kind: KindDate, Required: true, Description: "ISO-8601 date-time with offset"},
			{Name: "end_at", Kind: KindDate, Required: true, Description: "ISO-8601 date-time after start_at"},
			{Name: "recurrence", Kind: KindString, Enum: []string{"none", "daily", "weekly"}},
			{Name: "course_id", Kind: KindString},
			{Name: "topic_id", Kind: KindString},
		},
	},
	RecommendResources: {
		Type:        RecommendResources,
		Description: "Recommend study resources for a topic or course.",
		Fields: []Field{
			{Name: "query", Kind: KindString, Required: true, Description: "search query"},
			{Name: "topic_id", Kind: KindString},
			{Name: "course_id", Kind: KindString},
			{Name: "limit", Kind: KindInteger, Description: fmt.Sprintf("1-%d, default %d", MaxRecommendLimit, DefaultRecommendLimit)},
		},
	},
	SummarizeNote: {
		Type:        SummarizeNote,
		Description: "Summarize one of the user's notes.",
		Fields: []Field{
			{Name: "note_id", Kind: KindString, Required: true},
			{Name: "style", Kind: KindString, Enum: []string{"brief", "detailed", "bullets"}},
		},
	},
	Clarify: {
		Type:        Clarify,
		Description: "Ask the user one clarifying question.",
		Fields: []Field{
			{Name: "question", Kind: KindString, Required: true},
		},
	},
	None: {
		Type:        None,
		Description: "No action; answer in reply.",
		Fields: []Field{
			{Name: "reply", Kind: KindString},
		},
	},
}

// SchemaFor returns the schema for t.
func SchemaFor(t Type) (Schema, bool) {
	s, ok := schemas[t]
	return s, ok
}

// Describe renders the schema as compact prompt text.
func (s Schema) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "action %q: %s\npayload fields:\n", string(s.Type), s.Description)
	writeFields(&b, s.Fields, "  ")
	return strings.TrimRight(b.String(), "\n")
}

func writeFields(b *strings.Builder, fields []Field, indent string) {
	for _, f := range fields {
		req := "optional"
		if f.Required {
			req = "required"
		}
		fmt.Fprintf(b, "%s- %s (%s, %s)", indent, f.Name, f.Kind, req)
		if len(f.Enum) > 0 {
			fmt.Fprintf(b, " one of [%s]", strings.Join(f.Enum, ", "))
		}
		if f.Description != "" {
			fmt.Fprintf(b, ": %s", f.Description)
		}
		b.WriteString("\n")
		if len(f.Items) > 0 {
			writeFields(b, f.Items, indent+"  ")
		}
	}
}
