package intent

import (
	"strings"
	"unicode"

	"github.com/yungbote/maigie-backend/internal/modules/assistant/action"
)

type Path string

const (
	PathDirectAnswer Path = "PATH_DIRECT_ANSWER"
	PathRetrieval    Path = "PATH_RETRIEVAL"
	PathAction       Path = "PATH_ACTION"
	PathClarify      Path = "PATH_CLARIFY"
)

type Result struct {
	Path       Path
	Confidence float64
	// Candidate is set on PATH_ACTION, and on PATH_CLARIFY when a rule matched
	// but the context it refers to is missing.
	Candidate action.Type
	Rule      string
	// Ambiguous marks input with no usable signal.
	Ambiguous bool
	// MissingContext names the context kind ("topic", "course", "note") the
	// utterance referred to but the session does not have.
	MissingContext string
}

// Allowed returns the action types the model may answer with on this path.
func (r Result) Allowed() []action.Type {
	switch r.Path {
	case PathAction:
		return []action.Type{r.Candidate, action.Clarify, action.None}
	case PathDirectAnswer:
		return []action.Type{action.None, action.Clarify}
	case PathClarify:
		return []action.Type{action.Clarify}
	default:
		return action.All()
	}
}

type Classifier struct {
	t *table
}

// New loads the intent table from path, or the embedded table when path is empty.
func New(path string) (*Classifier, error) {
	t, err := loadTable(path)
	if err != nil {
		return nil, err
	}
	return &Classifier{t: t}, nil
}

// Classify is pure and always returns a path.
func (c *Classifier) Classify(utterance string, ac action.ActiveContext) Result {
	text := strings.TrimSpace(utterance)
	if text == "" || isGibberish(text) {
		return Result{Path: PathClarify, Confidence: c.t.clarifyConfidence, Ambiguous: true, Rule: "no_signal"}
	}

	missing := ""
	for _, ref := range c.t.references {
		if ac.Ref(ref.kind) == "" && matchAny(ref.patterns, text) {
			missing = ref.kind
			break
		}
	}

	var best *rule
	for i := range c.t.rules {
		r := &c.t.rules[i]
		if !matchAny(r.patterns, text) {
			continue
		}
		if best == nil || r.weight > best.weight {
			best = r
		}
	}

	if best != nil {
		conf := best.weight
		if missing != "" {
			conf -= c.t.contextPenalty
			return Result{
				Path:           PathClarify,
				Confidence:     clamp(conf),
				Candidate:      best.action,
				Rule:           best.id,
				MissingContext: missing,
			}
		}
		if conf >= c.t.threshold {
			return Result{Path: PathAction, Confidence: clamp(conf), Candidate: best.action, Rule: best.id}
		}
	}

	for _, d := range c.t.direct {
		if matchAny(d.patterns, text) {
			return Result{Path: PathDirectAnswer, Confidence: d.weight, Rule: d.id}
		}
	}

	conf := c.t.defaultConfidence
	if missing != "" {
		conf -= c.t.contextPenalty
	}
	return Result{Path: PathRetrieval, Confidence: clamp(conf), Rule: "default", MissingContext: missing}
}

// isGibberish reports input without a single word-like token, or input that
// is mostly symbols and digits with at most one word.
func isGibberish(s string) bool {
	var letters, other int
	for _, r := range s {
		switch {
		case unicode.IsLetter(r):
			letters++
		case unicode.IsSpace(r):
		default:
			other++
		}
	}
	if letters == 0 {
		return true
	}
	words := 0
	for _, tok := range strings.FieldsFunc(s, func(r rune) bool { return !unicode.IsLetter(r) && r != '\'' }) {
		if wordLike(tok) {
			words++
		}
	}
	if words == 0 {
		return true
	}
	return words < 2 && float64(other) > 0.4*float64(letters+other)
}

// wordLike accepts tokens that contain a vowel and no long consonant run.
// Scripts without case or vowels of the Latin kind are always accepted.
func wordLike(tok string) bool {
	tok = strings.ToLower(strings.Trim(tok, "'"))
	if tok == "" {
		return false
	}
	latin := true
	for _, r := range tok {
		if r > unicode.MaxLatin1 {
			latin = false
			break
		}
	}
	if !latin {
		return true
	}
	if len(tok) > 24 {
		return false
	}
	hasVowel := false
	run := 0
	for _, r := range tok {
		if strings.ContainsRune("aeiouyàáâäèéêëìíîïòóôöùúûü", r) {
			hasVowel = true
			run = 0
			continue
		}
		run++
		if run >= 5 {
			return false
		}
	}
	return hasVowel
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
