package prompts

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// Spec declares one task prompt.
type Spec struct {
	Name    PromptName
	Version int
	// Task is a text/template rendered with Input.
	Task string
}

type Template struct {
	Name    PromptName
	Version int
	Task    func(Input) (string, error)
}

// MakeTemplate compiles a Spec into a Template.
func MakeTemplate(s Spec) (Template, error) {
	if strings.TrimSpace(string(s.Name)) == "" {
		return Template{}, fmt.Errorf("missing prompt name")
	}
	if s.Version <= 0 {
		return Template{}, fmt.Errorf("invalid version for %s", s.Name)
	}
	taskT, err := template.New(string(s.Name)).Option("missingkey=zero").Parse(s.Task)
	if err != nil {
		return Template{}, fmt.Errorf("%s task template parse: %w", s.Name, err)
	}
	return Template{
		Name:    s.Name,
		Version: s.Version,
		Task: func(in Input) (string, error) {
			var b bytes.Buffer
			if err := taskT.Execute(&b, in); err != nil {
				return "", fmt.Errorf("%s render: %w", s.Name, err)
			}
			return strings.TrimSpace(b.String()), nil
		},
	}, nil
}
