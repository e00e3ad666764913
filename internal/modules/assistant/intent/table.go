package intent

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/maigie-backend/internal/modules/assistant/action"
)

//go:embed intents.yaml
var defaultTable []byte

type yamlTable struct {
	Version           int             `yaml:"version"`
	Threshold         float64         `yaml:"threshold"`
	DefaultConfidence float64         `yaml:"default_confidence"`
	ClarifyConfidence float64         `yaml:"clarify_confidence"`
	ContextPenalty    float64         `yaml:"context_penalty"`
	Rules             []yamlRule      `yaml:"rules"`
	Direct            []yamlDirect    `yaml:"direct"`
	References        []yamlReference `yaml:"references"`
}

type yamlRule struct {
	ID       string   `yaml:"id"`
	Action   string   `yaml:"action"`
	Weight   float64  `yaml:"weight"`
	Patterns []string `yaml:"patterns"`
}

type yamlDirect struct {
	ID       string   `yaml:"id"`
	Patterns []string `yaml:"patterns"`
}

type yamlReference struct {
	Kind     string   `yaml:"kind"`
	Patterns []string `yaml:"patterns"`
}

type rule struct {
	id       string
	action   action.Type
	weight   float64
	patterns []*regexp.Regexp
}

type reference struct {
	kind     string
	patterns []*regexp.Regexp
}

type table struct {
	threshold         float64
	defaultConfidence float64
	clarifyConfidence float64
	contextPenalty    float64
	rules             []rule
	direct            []rule
	references        []reference
}

// loadTable reads path when set, otherwise the embedded table.
func loadTable(path string) (*table, error) {
	data := defaultTable
	if p := strings.TrimSpace(path); p != "" {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read intent table: %w", err)
		}
		data = b
	}
	return parseTable(data)
}

func parseTable(data []byte) (*table, error) {
	var raw yamlTable
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse intent table: %w", err)
	}
	if raw.Version != 1 {
		return nil, fmt.Errorf("intent table: unsupported version %d", raw.Version)
	}
	t := &table{
		threshold:         raw.Threshold,
		defaultConfidence: raw.DefaultConfidence,
		clarifyConfidence: raw.ClarifyConfidence,
		contextPenalty:    raw.ContextPenalty,
	}
	for _, r := range raw.Rules {
		at := action.Type(r.Action)
		if !at.IsDomain() {
			return nil, fmt.Errorf("intent rule %q: unknown action %q", r.ID, r.Action)
		}
		pats, err := compileAll(r.ID, r.Patterns)
		if err != nil {
			return nil, err
		}
		t.rules = append(t.rules, rule{id: r.ID, action: at, weight: r.Weight, patterns: pats})
	}
	for _, d := range raw.Direct {
		pats, err := compileAll(d.ID, d.Patterns)
		if err != nil {
			return nil, err
		}
		t.direct = append(t.direct, rule{id: d.ID, weight: 0.9, patterns: pats})
	}
	for _, ref := range raw.References {
		pats, err := compileAll("ref:"+ref.Kind, ref.Patterns)
		if err != nil {
			return nil, err
		}
		t.references = append(t.references, reference{kind: ref.Kind, patterns: pats})
	}
	return t, nil
}

func compileAll(id string, patterns []string) ([]*regexp.Regexp, error) {
	if len(patterns) == 0 {
		return nil, fmt.Errorf("intent rule %q: no patterns", id)
	}
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("intent rule %q: %w", id, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func matchAny(pats []*regexp.Regexp, s string) bool {
	for _, re := range pats {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
