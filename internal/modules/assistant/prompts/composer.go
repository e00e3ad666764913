package prompts

import (
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/maigie-backend/internal/modules/assistant/action"
	"github.com/yungbote/maigie-backend/internal/modules/assistant/gateway"
	"github.com/yungbote/maigie-backend/internal/modules/assistant/intent"
	"github.com/yungbote/maigie-backend/internal/platform/tokens"
)

// ContextTooLargeError means the system prompt and the bare task skeleton do
// not fit the budget. It points at configuration, not at user input.
type ContextTooLargeError struct {
	Budget int
	Needed int
}

func (e *ContextTooLargeError) Error() string {
	return fmt.Sprintf("prompt skeleton needs %d tokens, budget is %d", e.Needed, e.Budget)
}

type HistoryTurn struct {
	Role string
	Text string
}

type ComposeInput struct {
	Utterance string
	Context   action.ActiveContext
	Now       time.Time
	// History is oldest first.
	History []HistoryTurn
	// Retrieval is ranked best first.
	Retrieval []gateway.Document
	Pending   string
	Allowed   []action.Type
}

type Bundle struct {
	Name         PromptName
	Version      int
	System       string
	Task         string
	Tokens       int
	DroppedDocs  int
	DroppedTurns int
}

type Config struct {
	// Budget caps system plus task tokens.
	Budget int
	// DocBudget caps each retrieved snippet.
	DocBudget int
	MaxDocs   int
}

type Composer struct {
	counter   tokens.Counter
	cfg       Config
	templates map[PromptName]Template
}

func NewComposer(counter tokens.Counter, cfg Config) (*Composer, error) {
	if counter == nil {
		counter = tokens.Estimate{}
	}
	if cfg.Budget <= 0 {
		cfg.Budget = 6000
	}
	if cfg.DocBudget <= 0 {
		cfg.DocBudget = 300
	}
	if cfg.MaxDocs <= 0 {
		cfg.MaxDocs = 8
	}
	c := &Composer{counter: counter, cfg: cfg, templates: map[PromptName]Template{}}
	for _, s := range defaultSpecs {
		t, err := MakeTemplate(s)
		if err != nil {
			return nil, err
		}
		c.templates[t.Name] = t
	}
	return c, nil
}

// Compose renders the prompt for path within the token budget. Retrieved
// documents are dropped lowest rank first, then history oldest first; the
// system prompt is never cut.
func (c *Composer) Compose(path intent.Path, in ComposeInput, schema action.Type) (Bundle, error) {
	name, ok := nameForPath(path)
	if !ok {
		return Bundle{}, fmt.Errorf("no prompt for path %s", path)
	}
	tmpl := c.templates[name]

	base := c.baseInput(in, schema)
	system := systemPrompt
	systemTokens := c.counter.Count(system)

	skeleton := base
	skeleton.Utterance = ""
	skelTask, err := tmpl.Task(skeleton)
	if err != nil {
		return Bundle{}, err
	}
	if need := systemTokens + c.counter.Count(skelTask); need > c.cfg.Budget {
		return Bundle{}, &ContextTooLargeError{Budget: c.cfg.Budget, Needed: need}
	}

	docs := in.Retrieval
	if len(docs) > c.cfg.MaxDocs {
		docs = docs[:c.cfg.MaxDocs]
	}
	docs = c.clipDocs(docs)
	hist := in.History
	droppedDocs := len(in.Retrieval) - len(docs)
	droppedTurns := 0
	utterance := in.Utterance
	uttBudget := -1

	for {
		cur := base
		cur.Utterance = utterance
		cur.History = formatHistory(hist)
		cur.Retrieval = formatDocs(docs)
		task, err := tmpl.Task(cur)
		if err != nil {
			return Bundle{}, err
		}
		total := systemTokens + c.counter.Count(task)
		if total <= c.cfg.Budget {
			return Bundle{
				Name:         tmpl.Name,
				Version:      tmpl.Version,
				System:       system,
				Task:         task,
				Tokens:       total,
				DroppedDocs:  droppedDocs,
				DroppedTurns: droppedTurns,
			}, nil
		}
		switch {
		case len(docs) > 0:
			docs = docs[:len(docs)-1]
			droppedDocs++
		case len(hist) > 0:
			hist = hist[1:]
			droppedTurns++
		default:
			if uttBudget < 0 {
				uttBudget = c.cfg.Budget - systemTokens - c.counter.Count(skelTask)
			} else {
				uttBudget -= 16
			}
			if uttBudget <= 0 {
				utterance = ""
			} else {
				utterance = tokens.Truncate(c.counter, in.Utterance, uttBudget)
			}
		}
	}
}

func (c *Composer) baseInput(in ComposeInput, schema action.Type) Input {
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	loc := time.UTC
	if tz := strings.TrimSpace(in.Context.Timezone); tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		}
	}

	allowed := in.Allowed
	if len(allowed) == 0 {
		allowed = action.All()
	}
	names := make([]string, 0, len(allowed))
	for _, a := range allowed {
		names = append(names, string(a))
	}

	var described []action.Type
	if schema != "" {
		described = append(described, schema)
	}
	for _, a := range allowed {
		if a != schema {
			described = append(described, a)
		}
	}
	var schemaText []string
	for _, a := range described {
		if s, ok := action.SchemaFor(a); ok {
			schemaText = append(schemaText, s.Describe())
		}
	}

	return Input{
		Today:      now.In(loc).Format("2006-01-02 (Monday) 15:04 MST"),
		Timezone:   in.Context.Timezone,
		CourseID:   in.Context.CourseID,
		TopicID:    in.Context.TopicID,
		NoteID:     in.Context.NoteID,
		Candidate:  string(schema),
		AllowedCSV: strings.Join(names, ", "),
		SchemaText: strings.Join(schemaText, "\n"),
		Pending:    in.Pending,
	}
}

func (c *Composer) clipDocs(docs []gateway.Document) []gateway.Document {
	out := make([]gateway.Document, len(docs))
	for i, d := range docs {
		d.Snippet = tokens.Truncate(c.counter, d.Snippet, c.cfg.DocBudget)
		out[i] = d
	}
	return out
}

func formatHistory(turns []HistoryTurn) string {
	if len(turns) == 0 {
		return ""
	}
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s: %s", t.Role, strings.TrimSpace(t.Text))
	}
	return b.String()
}

func formatDocs(docs []gateway.Document) string {
	if len(docs) == 0 {
		return ""
	}
	var b strings.Builder
	for i, d := range docs {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "[%d] id=%s", i+1, d.ID)
		if d.Kind != "" {
			fmt.Fprintf(&b, " kind=%s", d.Kind)
		}
		if d.Title != "" {
			fmt.Fprintf(&b, " title=%q", d.Title)
		}
		fmt.Fprintf(&b, " score=%.2f\n    %s", d.Score, strings.TrimSpace(d.Snippet))
	}
	return b.String()
}
