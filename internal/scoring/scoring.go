// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package scoring sends triaged papers in batches to the LLM for structured
// relevance and novelty judgments and promotes the papers that clear both
// cutoffs. Every returned record, promoted or not, is kept in a debug trace.
package scoring

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/pdiddy/paper-digest/internal/llm"
	"github.com/pdiddy/paper-digest/internal/metrics"
	"github.com/pdiddy/paper-digest/internal/prompt"
	"github.com/pdiddy/paper-digest/internal/telemetry"
	"github.com/pdiddy/paper-digest/pkg/types"
)

const stage = "scoring"

// Defaults applied when Engine fields are zero.
const (
	DefaultBatchSize = 5
	DefaultTimeout   = 10 * time.Second
)

// Engine is the structured scoring stage.
type Engine struct {
	Caller  llm.Caller
	Prompts prompt.Set

	// BatchSize is the number of papers per prompt (default 5).
	BatchSize int

	// AbstractLimit caps the abstract characters per paper (0 = no cap).
	AbstractLimit int

	// RelevanceCutoff and NoveltyCutoff are the minimum judgments a record
	// needs to be promoted. They are used as given; zero admits every record.
	RelevanceCutoff int
	NoveltyCutoff   int

	// Attempts bounds the tries per batch (default 3).
	Attempts int

	// Timeout bounds each call (default 10s).
	Timeout time.Duration

	Logger *slog.Logger

	// Progress receives one human-readable line per batch; nil discards.
	Progress io.Writer

	// OnBatch, when set, is called before each batch with its 1-based index
	// and the batch count.
	OnBatch func(current, total int)
}

// Result is the outcome of a Run.
type Result struct {
	// Promoted holds the papers that cleared both cutoffs, merged with their
	// judgments and scored relevance + novelty, in reply order.
	Promoted []types.Paper

	// Trace holds, per batch, every record that referenced a known paper.
	Trace [][]types.ScoredPaper

	// FailedBatches counts batches dropped after exhausting retries.
	FailedBatches int

	// Dropped counts records whose identifier matched no known paper.
	Dropped int
}

// Run scores papers. known is the full pre-batching paper set used to check
// record identifiers; when nil, papers itself is used.
func (e *Engine) Run(ctx context.Context, papers []types.Paper, known []types.Paper) Result {
	log := e.Logger
	if log == nil {
		log = slog.Default()
	}
	w := e.Progress
	if w == nil {
		w = io.Discard
	}
	if known == nil {
		known = papers
	}
	index := newPaperIndex(known)

	size := e.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ctx, span := telemetry.Tracer().Start(ctx, "scoring.run")
	defer span.End()

	batches := types.Batched(papers, size)
	var res Result
	for i, batch := range batches {
		if e.OnBatch != nil {
			e.OnBatch(i+1, len(batches))
		}
		records, err := e.scoreBatch(ctx, batch, timeout, log)
		if err != nil {
			res.FailedBatches++
			metrics.BatchesFailed.WithLabelValues(stage).Inc()
			log.Warn("scoring batch dropped", "batch", i+1, "papers", len(batch), "err", err)
			fmt.Fprintf(w, "scoring batch %d/%d failed: %v\n", i+1, len(batches), err)
			res.Trace = append(res.Trace, nil)
			continue
		}

		var trace []types.ScoredPaper
		promoted := 0
		for _, rec := range records {
			paper, ok := index.lookup(rec.ID)
			if !ok {
				res.Dropped++
				log.Debug("dropping score for unknown paper", "paper_id", rec.ID, "batch", i+1)
				continue
			}
			merged := paper.Merge(rec)
			merged.Score = rec.Total()
			pass := e.passes(rec)
			trace = append(trace, types.ScoredPaper{Paper: merged, Promoted: pass})
			if pass {
				res.Promoted = append(res.Promoted, merged)
				promoted++
			}
		}
		res.Trace = append(res.Trace, trace)
		fmt.Fprintf(w, "scoring batch %d/%d: %d records, %d promoted\n", i+1, len(batches), len(records), promoted)
	}

	span.SetAttributes(
		attribute.Int("papers_in", len(papers)),
		attribute.Int("promoted", len(res.Promoted)),
		attribute.Int("failed_batches", res.FailedBatches),
		attribute.Int("dropped_records", res.Dropped),
	)
	return res
}

func (e *Engine) passes(rec types.ScoreRecord) bool {
	return rec.Relevance >= e.RelevanceCutoff && rec.Novelty >= e.NoveltyCutoff
}

func (e *Engine) scoreBatch(ctx context.Context, batch []types.Paper, timeout time.Duration, log *slog.Logger) ([]types.ScoreRecord, error) {
	text, err := renderPrompt(e.Prompts, batch, e.AbstractLimit)
	if err != nil {
		return nil, err
	}
	return llm.Call(ctx, e.Caller, llm.Request{
		Stage:    stage,
		Prompt:   text,
		Attempts: e.Attempts,
		Timeout:  timeout,
		Logger:   log,
	}, ParseRecords)
}

// ParseRecords decodes a scoring reply into records and validates each one.
// Any invalid record rejects the whole reply so the call is retried.
func ParseRecords(raw string) ([]types.ScoreRecord, error) {
	records, err := llm.DecodeArray[types.ScoreRecord](raw)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(records))
	out := records[:0]
	for i, rec := range records {
		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("record %d: %w", i+1, err)
		}
		if seen[rec.ID] {
			continue
		}
		seen[rec.ID] = true
		out = append(out, rec)
	}
	return out, nil
}

// paperIndex resolves record identifiers against the known papers, first
// exactly and then ignoring version suffixes.
type paperIndex struct {
	exact map[string]types.Paper
	base  map[string]types.Paper
}

func newPaperIndex(papers []types.Paper) paperIndex {
	idx := paperIndex{
		exact: make(map[string]types.Paper, len(papers)),
		base:  make(map[string]types.Paper, len(papers)),
	}
	for _, p := range papers {
		if _, ok := idx.exact[p.ID]; !ok {
			idx.exact[p.ID] = p
		}
		if _, ok := idx.base[types.BaseID(p.ID)]; !ok {
			idx.base[types.BaseID(p.ID)] = p
		}
	}
	return idx
}

func (idx paperIndex) lookup(id string) (types.Paper, bool) {
	if p, ok := idx.exact[id]; ok {
		return p, true
	}
	p, ok := idx.base[types.BaseID(id)]
	return p, ok
}
