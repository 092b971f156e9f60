// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package triage runs the coarse, cheap LLM pass that discards only papers
// judged certainly irrelevant. A batch whose call fails is kept whole.
package triage

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

// DefaultBatchSize is the number of papers per triage prompt.
const DefaultBatchSize = 10

const stage = "triage"

// Filter is the coarse triage stage.
type Filter struct {
	Caller  llm.Caller
	Prompts prompt.Set

	// BatchSize is the number of papers per prompt (default 10).
	BatchSize int

	// AbstractLimit caps the abstract characters per paper (0 = no cap).
	AbstractLimit int

	// Attempts bounds the tries per batch (default 1: a failed batch is kept,
	// not retried).
	Attempts int

	// Timeout bounds each call.
	Timeout time.Duration

	Logger *slog.Logger

	// Progress receives one human-readable line per batch; nil discards.
	Progress io.Writer

	// OnBatch, when set, is called before each batch with its 1-based index
	// and the batch count.
	OnBatch func(current, total int)
}

// response is the structural contract of a triage reply.
type response struct {
	FilteredIDs []string `json:"filtered_ids"`
}

// Summary counts the outcome of a Run.
type Summary struct {
	Batches       int
	FailedBatches int
	Discarded     int
}

// Run returns the papers that survive triage, in input order.
func (f *Filter) Run(ctx context.Context, papers []types.Paper) ([]types.Paper, Summary) {
	log := f.Logger
	if log == nil {
		log = slog.Default()
	}
	w := f.Progress
	if w == nil {
		w = io.Discard
	}
	size := f.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	attempts := f.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	ctx, span := telemetry.Tracer().Start(ctx, "triage.run")
	defer span.End()

	batches := types.Batched(papers, size)
	summary := Summary{Batches: len(batches)}
	kept := make([]types.Paper, 0, len(papers))

	for i, batch := range batches {
		if f.OnBatch != nil {
			f.OnBatch(i+1, len(batches))
		}
		discard, err := f.runBatch(ctx, batch, attempts, log)
		if err != nil {
			summary.FailedBatches++
			metrics.BatchesFailed.WithLabelValues(stage).Inc()
			log.Warn("triage batch failed, keeping all papers", "batch", i+1, "papers", len(batch), "err", err)
			fmt.Fprintf(w, "triage batch %d/%d failed, kept %d papers\n", i+1, len(batches), len(batch))
			kept = append(kept, batch...)
			continue
		}
		for _, p := range batch {
			if discard[types.BaseID(p.ID)] {
				summary.Discarded++
				log.Debug("triage discarded paper", "paper_id", p.ID)
				continue
			}
			kept = append(kept, p)
		}
		fmt.Fprintf(w, "triage batch %d/%d: kept %d of %d\n", i+1, len(batches), len(batch)-countIn(batch, discard), len(batch))
	}

	span.SetAttributes(
		attribute.Int("papers_in", len(papers)),
		attribute.Int("papers_out", len(kept)),
		attribute.Int("failed_batches", summary.FailedBatches),
	)
	return kept, summary
}

func (f *Filter) runBatch(ctx context.Context, batch []types.Paper, attempts int, log *slog.Logger) (map[string]bool, error) {
	text, err := renderPrompt(f.Prompts, batch, f.AbstractLimit)
	if err != nil {
		return nil, err
	}
	resp, err := llm.Call(ctx, f.Caller, llm.Request{
		Stage:    stage,
		Prompt:   text,
		Attempts: attempts,
		Timeout:  f.Timeout,
		Logger:   log,
	}, llm.DecodeObject[response])
	if err != nil {
		return nil, err
	}
	discard := make(map[string]bool, len(resp.FilteredIDs))
	for _, id := range resp.FilteredIDs {
		discard[types.BaseID(id)] = true
	}
	return discard, nil
}

// countIn counts the papers of batch whose base id is in set.
func countIn(batch []types.Paper, set map[string]bool) int {
	n := 0
	for _, p := range batch {
		if set[types.BaseID(p.ID)] {
			n++
		}
	}
	return n
}
