package prompts

// Input is the flat view every task template renders from. Missing fields
// render as empty strings (templates use missingkey=zero).
type Input struct {
	Today     string
	Timezone  string
	CourseID  string
	TopicID   string
	NoteID    string
	Utterance string

	// Candidate is the action the classifier expects on the action path.
	Candidate string
	// AllowedCSV lists the action names the reply may use.
	AllowedCSV string
	// SchemaText describes the payload fields of the allowed actions.
	SchemaText string

	History   string
	Retrieval string
	Pending   string
}
