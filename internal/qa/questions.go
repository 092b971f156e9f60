// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package qa

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paper-digest/internal/llm"
)

// Kind is a question variant. Each kind owns its prompt template and the
// contract its reply must satisfy.
type Kind interface {
	// Name identifies the kind in question files and metrics.
	Name() string

	// Render builds the full prompt for one turn.
	Render(turn Turn) (string, error)

	// Parse validates a reply and returns the answer text to store.
	Parse(raw string) (string, error)
}

// Turn is the input to one question's prompt.
type Turn struct {
	Text     string
	History  []Pair
	Question string
	Rules    string
}

// Pair is an answered question carried into later prompts.
type Pair struct {
	Question string
	Answer   string
}

// Question is one configured question.
type Question struct {
	Text string
	Kind Kind
}

// Built-in kinds.
var (
	Standard   Kind = standardKind{}
	Pseudocode Kind = pseudocodeKind{}
)

var kinds = map[string]Kind{
	Standard.Name():   Standard,
	Pseudocode.Name(): Pseudocode,
}

// KindByName returns the kind registered under name.
func KindByName(name string) (Kind, bool) {
	k, ok := kinds[strings.ToLower(strings.TrimSpace(name))]
	return k, ok
}

// DefaultQuestions are asked when no questions file is configured.
var DefaultQuestions = []Question{
	{Text: "What problem does the paper address, and why does it matter?", Kind: Standard},
	{Text: "What is the main idea of the proposed method?", Kind: Standard},
	{Text: "How is the method evaluated, and what are the key results?", Kind: Standard},
	{Text: "What are the limitations and open questions?", Kind: Standard},
	{Text: "Write pseudocode for the core algorithm of the paper.", Kind: Pseudocode},
}

// DefaultRules are the answering rules appended to every prompt.
const DefaultRules = `- You are a helpful assistant that answers questions about a research paper.
- Answer in bullet points, using markdown formatting.
- Include the important details, such as numbers, names and equations, that support the answer.`

var turnTmpl = template.Must(template.New("turn").Funcs(template.FuncMap{
	"history": formatHistory,
}).Parse(`Paper Content:
{{.Turn.Text}}

Previous Questions and Answers:
{{history .Turn.History}}

Current Question: {{.Turn.Question}}

Rules:
{{.Turn.Rules}}

Please answer the current question, taking into account the previous Q&A if relevant.

{{.Contract}}`))

func formatHistory(pairs []Pair) string {
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = "Q: " + p.Question + "\nA: " + p.Answer
	}
	return strings.Join(parts, "\n\n")
}

func render(turn Turn, contract string) (string, error) {
	var buf bytes.Buffer
	if err := turnTmpl.Execute(&buf, struct {
		Turn     Turn
		Contract string
	}{turn, contract}); err != nil {
		return "", fmt.Errorf("executing question template: %w", err)
	}
	return buf.String(), nil
}

type standardKind struct{}

const standardContract = `Respond with a JSON object of the form {"answer": "<markdown answer>"} and nothing else.`

func (standardKind) Name() string { return "standard" }

func (standardKind) Render(turn Turn) (string, error) { return render(turn, standardContract) }

func (standardKind) Parse(raw string) (string, error) {
	reply, err := llm.DecodeObject[struct {
		Answer string `json:"answer"`
	}](raw)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(reply.Answer) == "" {
		return "", fmt.Errorf("answer is empty")
	}
	return reply.Answer, nil
}

type pseudocodeKind struct{}

const pseudocodeContract = `Respond with a JSON object of the form {"explanation": "<short markdown explanation>", "pseudocode": "<the algorithm as pseudocode>"} and nothing else. Do not wrap the pseudocode in a code fence.`

func (pseudocodeKind) Name() string { return "pseudocode" }

func (pseudocodeKind) Render(turn Turn) (string, error) { return render(turn, pseudocodeContract) }

func (pseudocodeKind) Parse(raw string) (string, error) {
	reply, err := llm.DecodeObject[struct {
		Explanation string `json:"explanation"`
		Pseudocode  string `json:"pseudocode"`
	}](raw)
	if err != nil {
		return "", err
	}
	code := strings.TrimSpace(llm.StripCodeFences(reply.Pseudocode))
	if code == "" {
		return "", fmt.Errorf("pseudocode is empty")
	}
	var sb strings.Builder
	if e := strings.TrimSpace(reply.Explanation); e != "" {
		sb.WriteString(e)
		sb.WriteString("\n\n")
	}
	sb.WriteString("```\n")
	sb.WriteString(code)
	sb.WriteString("\n```")
	return sb.String(), nil
}

// pseudocodePrefix marks a pseudocode question in a plain-text file.
const pseudocodePrefix = "[pseudocode]"

// LoadQuestions reads the question list. A .yaml/.yml file holds a list of
// {question, kind} entries; any other file has one question per line, with
// blank lines skipped and a leading "[pseudocode]" selecting that kind.
func LoadQuestions(path string) ([]Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading questions file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return parseYAMLQuestions(data)
	default:
		return ParseQuestions(string(data)), nil
	}
}

// ParseQuestions parses the plain-text question format.
func ParseQuestions(text string) []Question {
	var out []Question
	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		q := Question{Text: line, Kind: Standard}
		if rest, ok := strings.CutPrefix(line, pseudocodePrefix); ok {
			q = Question{Text: strings.TrimSpace(rest), Kind: Pseudocode}
		}
		if q.Text != "" {
			out = append(out, q)
		}
	}
	return out
}

type yamlQuestion struct {
	Question string `yaml:"question"`
	Kind     string `yaml:"kind"`
}

func parseYAMLQuestions(data []byte) ([]Question, error) {
	var entries []yamlQuestion
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing questions file: %w", err)
	}
	out := make([]Question, 0, len(entries))
	for i, e := range entries {
		text := strings.TrimSpace(e.Question)
		if text == "" {
			continue
		}
		kind := Standard
		if e.Kind != "" {
			k, ok := KindByName(e.Kind)
			if !ok {
				return nil, fmt.Errorf("question %d: unknown kind %q", i+1, e.Kind)
			}
			kind = k
		}
		out = append(out, Question{Text: text, Kind: kind})
	}
	return out, nil
}
