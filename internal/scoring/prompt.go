// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package scoring

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/pdiddy/paper-digest/internal/prompt"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// responseContract tells the model the exact shape of the reply.
const responseContract = `Return a JSON array with exactly one object per paper above, in the same order, and no other text. Each object must have the keys:
  "ARXIVID": the ArXiv ID of the paper, copied exactly,
  "RELEVANCE": an integer from 1 to 10,
  "NOVELTY": an integer from 1 to 10,
  "COMMENT": a short comment on the paper,
  "CRITERION": the criterion the paper matches.`

var paperTmpl = template.Must(template.New("paper").Funcs(template.FuncMap{
	"join":     strings.Join,
	"truncate": prompt.Truncate,
}).Parse(`ArXiv ID: {{.Paper.ID}}
Title: {{.Paper.Title}}
Authors: {{join .Paper.Authors " and "}}
Abstract: {{truncate .Paper.Abstract .Limit}}`))

// PaperString renders one paper the way it appears inside a scoring prompt.
func PaperString(p types.Paper, abstractLimit int) (string, error) {
	var buf bytes.Buffer
	if err := paperTmpl.Execute(&buf, struct {
		Paper types.Paper
		Limit int
	}{p, abstractLimit}); err != nil {
		return "", fmt.Errorf("rendering paper %s: %w", p.ID, err)
	}
	return buf.String(), nil
}

// renderPrompt builds the scoring prompt for one batch: base instructions,
// criteria, the rendered papers and the closing instructions, joined by
// newlines.
func renderPrompt(prompts prompt.Set, batch []types.Paper, abstractLimit int) (string, error) {
	rendered := make([]string, 0, len(batch))
	for _, p := range batch {
		s, err := PaperString(p, abstractLimit)
		if err != nil {
			return "", err
		}
		rendered = append(rendered, s)
	}
	return strings.Join([]string{
		prompts.Base,
		prompts.Criteria + "\n",
		strings.Join(rendered, "\n\n") + "\n",
		prompts.Postfix,
		responseContract,
	}, "\n"), nil
}
