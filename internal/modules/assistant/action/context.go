package action

// ActiveContext is what the user is currently looking at. Any field may be empty.
type ActiveContext struct {
	CourseID string `json:"course_id,omitempty"`
	TopicID  string `json:"topic_id,omitempty"`
	NoteID   string `json:"note_id,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

// Ref returns the id for "course", "topic" or "note".
func (c ActiveContext) Ref(kind string) string {
	switch kind {
	case "course":
		return c.CourseID
	case "topic":
		return c.TopicID
	case "note":
		return c.NoteID
	default:
		return ""
	}
}

// Merge overlays the non-empty fields of o.
func (c ActiveContext) Merge(o ActiveContext) ActiveContext {
	if o.CourseID != "" {
		c.CourseID = o.CourseID
	}
	if o.TopicID != "" {
		c.TopicID = o.TopicID
	}
	if o.NoteID != "" {
		c.NoteID = o.NoteID
	}
	if o.Timezone != "" {
		c.Timezone = o.Timezone
	}
	return c
}
