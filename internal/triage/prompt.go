// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package triage

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/pdiddy/paper-digest/internal/prompt"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// discardInstruction asks for the identifiers to drop and biases the model
// towards keeping papers.
const discardInstruction = `Identify any papers that are absolutely and completely irrelevant to the criteria, and you are absolutely sure your friend will not enjoy. Return a list of arxiv IDs to filter out. Be extremely cautious, and if you are unsure at all, do not add a paper in this list. You will check it in detail later.

Respond with a JSON object of the form {"filtered_ids": ["<arxiv id>", ...]} and nothing else. Use an empty list when no paper should be filtered out.`

var triagePromptTmpl = template.Must(template.New("triage").Funcs(template.FuncMap{
	"truncate": prompt.Truncate,
}).Parse(`{{.Base}}
 {{.Criteria}}
{{range .Papers}}ArXiv ID: {{.ID}} Title: {{.Title}} Abstract: {{truncate .Abstract $.AbstractLimit}}
{{end}}{{.Instruction}}`))

type triagePromptData struct {
	Base          string
	Criteria      string
	Papers        []types.Paper
	AbstractLimit int
	Instruction   string
}

// renderPrompt builds the single prompt for one batch.
func renderPrompt(prompts prompt.Set, batch []types.Paper, abstractLimit int) (string, error) {
	var buf bytes.Buffer
	err := triagePromptTmpl.Execute(&buf, triagePromptData{
		Base:          prompts.Base,
		Criteria:      prompts.Criteria,
		Papers:        batch,
		AbstractLimit: abstractLimit,
		Instruction:   discardInstruction,
	})
	if err != nil {
		return "", fmt.Errorf("executing triage template: %w", err)
	}
	return buf.String(), nil
}
