package prompts

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/yungbote/maigie-backend/internal/platform/tokens"
)

const PromptNoteSummary PromptName = "note_summary"

const summarySystem = `You summarize a student's own study notes.
Use only facts that appear in the note. Answer in plain text, no JSON and no preamble.`

var summaryTask = template.Must(template.New(string(PromptNoteSummary)).Option("missingkey=zero").Parse(
	`Summarize the note below.
{{- if eq .Style "bullets"}} Use short bullet points.{{else if eq .Style "detailed"}} Cover every main idea in a few paragraphs.{{else}} Keep it to two or three sentences.{{end}}

Title: {{.Title}}
---
{{.Content}}
---`))

type SummaryInput struct {
	Title   string
	Content string
	Style   string
}

// NoteSummary renders the summarize prompt. The note body is clipped to budget
// tokens; a non-positive budget leaves it whole.
func NoteSummary(counter tokens.Counter, budget int, in SummaryInput) (system, task string, err error) {
	if counter == nil {
		counter = tokens.Estimate{}
	}
	if budget > 0 {
		in.Content = tokens.Truncate(counter, in.Content, budget)
	}
	var b bytes.Buffer
	if err := summaryTask.Execute(&b, in); err != nil {
		return "", "", err
	}
	return summarySystem, strings.TrimSpace(b.String()), nil
}
