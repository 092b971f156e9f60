// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package qa answers a fixed list of questions about one selected paper.
// Questions are asked in order and each prompt carries every earlier answer
// of the run, so the loop is strictly sequential. Results are cached per
// (date, paper) and never recomputed while the cache entry exists.
package qa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/pdiddy/paper-digest/internal/cache"
	"github.com/pdiddy/paper-digest/internal/llm"
	"github.com/pdiddy/paper-digest/internal/metrics"
	"github.com/pdiddy/paper-digest/internal/prompt"
	"github.com/pdiddy/paper-digest/internal/telemetry"
	"github.com/pdiddy/paper-digest/pkg/types"
)

const stage = "qa"

// Defaults applied when Expander fields are zero.
const (
	DefaultTimeout   = 30 * time.Second
	DefaultTextLimit = 50000
)

// ErrorAnswerPrefix starts the answer stored for a question that could not
// be answered.
const ErrorAnswerPrefix = "Error getting answer: "

// ErrPaperNotFound is returned when a paper id is not in the selection
// snapshot of the requested date.
var ErrPaperNotFound = errors.New("paper not found")

// TextSource retrieves the full text of a paper.
type TextSource interface {
	FullText(ctx context.Context, paper types.Paper) (string, error)
}

// Expander runs Q&A sessions.
type Expander struct {
	Caller    llm.Caller
	Text      TextSource
	Cache     *cache.Store
	Progress  *ProgressStore
	Questions []Question

	// Rules are appended to every prompt (default DefaultRules).
	Rules string

	// TextLimit caps the paper text in each prompt (default 50000).
	TextLimit int

	// Timeout bounds each LLM call (default 30s).
	Timeout time.Duration

	// Attempts bounds the tries per question (default 3).
	Attempts int

	Logger *slog.Logger
}

// Key returns the cache and progress key of a paper on date. Version
// suffixes are stripped so every version of a paper shares one entry.
func Key(date, paperID string) string {
	return cache.Key(date, types.BaseID(paperID))
}

// Expand returns the answers for paper on date. A cached result is returned
// without any LLM call. Otherwise the questions are answered in order; a
// question that fails after all retries gets an error answer and the run
// continues. If no text is available or no question could be answered the
// result is an error shape and nothing is cached.
func (e *Expander) Expand(ctx context.Context, paper types.Paper, date string) types.QAResult {
	log := e.logger().With("paper_id", paper.ID, "date", date)
	key := Key(date, paper.ID)

	if e.Cache != nil {
		var cached types.QAResult
		if e.Cache.Get(key, &cached) && !cached.IsError() {
			log.Debug("q&a served from cache")
			return cached
		}
	}
	if len(e.Questions) == 0 {
		return types.ErrorResult("no questions configured")
	}

	ctx, span := telemetry.Tracer().Start(ctx, "qa.expand")
	defer span.End()
	span.SetAttributes(attribute.String("paper.id", paper.ID), attribute.Int("qa.questions", len(e.Questions)))

	total := len(e.Questions)
	progress := e.Progress
	if progress == nil {
		progress = NewProgressStore()
	}
	progress.Set(key, 0, total)
	defer progress.Clear(key)

	text, fromFullText := e.sourceText(ctx, paper, log)
	if strings.TrimSpace(text) == "" {
		return types.ErrorResult(fmt.Sprintf("no text available for paper %s", paper.ID))
	}
	text = prompt.Truncate(text, e.textLimit())

	var (
		history  []Pair
		result   types.QAResult
		answered int
	)
	for i, q := range e.Questions {
		progress.Set(key, i+1, total)
		answer, err := e.ask(ctx, q, Turn{Text: text, History: history, Question: q.Text, Rules: e.rules()}, log)
		if err != nil {
			log.Warn("question failed", "question", i+1, "err", err)
			answer = ErrorAnswerPrefix + err.Error()
		} else {
			answered++
		}
		history = append(history, Pair{Question: q.Text, Answer: answer})
		result.Pairs = append(result.Pairs, types.QAPair{Question: q.Text, Answer: answer})
	}

	span.SetAttributes(attribute.Int("qa.answered", answered), attribute.Bool("qa.full_text", fromFullText))
	if answered == 0 {
		return types.ErrorResult(fmt.Sprintf("no question about paper %s could be answered", paper.ID))
	}
	if e.Cache != nil {
		e.Cache.Put(key, result)
	}
	log.Info("q&a complete", "answered", answered, "questions", total)
	return result
}

// sourceText returns the full text of paper, or its abstract when the full
// text cannot be retrieved.
func (e *Expander) sourceText(ctx context.Context, paper types.Paper, log *slog.Logger) (string, bool) {
	if e.Text != nil {
		text, err := e.Text.FullText(ctx, paper)
		if err == nil && strings.TrimSpace(text) != "" {
			return text, true
		}
		log.Warn("full text unavailable, using abstract", "err", err)
	}
	return paper.Abstract, false
}

func (e *Expander) ask(ctx context.Context, q Question, turn Turn, log *slog.Logger) (string, error) {
	kind := q.Kind
	if kind == nil {
		kind = Standard
	}
	text, err := kind.Render(turn)
	if err != nil {
		return "", err
	}
	start := time.Now()
	defer func() {
		metrics.QuestionDuration.WithLabelValues(kind.Name()).Observe(time.Since(start).Seconds())
	}()
	return llm.Call(ctx, e.Caller, llm.Request{
		Stage:    stage,
		Prompt:   text,
		Attempts: e.Attempts,
		Timeout:  e.timeout(),
		Logger:   log,
	}, kind.Parse)
}

func (e *Expander) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

func (e *Expander) rules() string {
	if e.Rules == "" {
		return DefaultRules
	}
	return e.Rules
}

func (e *Expander) textLimit() int {
	if e.TextLimit <= 0 {
		return DefaultTextLimit
	}
	return e.TextLimit
}

func (e *Expander) timeout() time.Duration {
	if e.Timeout <= 0 {
		return DefaultTimeout
	}
	return e.Timeout
}

// Lookup finds paper id in the selection snapshot cached for date, comparing
// version-stripped ids.
func Lookup(store *cache.Store, date, id string) (types.Paper, error) {
	set := types.NewSelectionSet()
	if !store.Get(cache.Key(date, cache.OutputEntity), set) {
		return types.Paper{}, fmt.Errorf("no selection for %s: %w", date, ErrPaperNotFound)
	}
	p, ok := set.Find(id)
	if !ok {
		return types.Paper{}, fmt.Errorf("paper %s on %s: %w", id, date, ErrPaperNotFound)
	}
	return p, nil
}

// RenderMarkdown formats a result as a markdown document headed by the
// paper title.
func RenderMarkdown(paper types.Paper, result types.QAResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", paper.Title)
	if result.IsError() {
		fmt.Fprintf(&sb, "**Error:** %s\n", result.Error)
		return sb.String()
	}
	for _, p := range result.Pairs {
		fmt.Fprintf(&sb, "**Q:** %s\n\n**A:** %s\n\n", p.Question, p.Answer)
	}
	return sb.String()
}
