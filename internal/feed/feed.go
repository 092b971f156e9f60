// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package feed ingests the raw paper records the pipeline runs on: the
// day's new arXiv submissions per category, or a JSON file for offline
// replay. Every record passes through types.NormalizePaper or is built
// directly in canonical form.
package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/pdiddy/paper-digest/pkg/types"
)

// Source lists papers for one category. Implementations follow the
// Strategy pattern so tests can substitute their own.
type Source interface {
	Name() string
	Fetch(ctx context.Context, category string, since time.Time) ([]types.Paper, error)
}

// Options controls FetchAll.
type Options struct {
	// Since drops submissions older than this instant; zero keeps all.
	Since time.Time

	// Delay is the wait between category requests.
	Delay time.Duration

	Logger *slog.Logger

	// Progress receives one line per category; nil discards.
	Progress io.Writer
}

// FetchAll fetches every category and merges the results. Papers listed in
// several categories are kept once, compared by version-stripped id. A
// failing category is logged and skipped; an error is returned only when
// every category failed.
func FetchAll(ctx context.Context, src Source, categories []string, opts Options) ([]types.Paper, error) {
	if len(categories) == 0 {
		return nil, fmt.Errorf("no feed categories configured")
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	w := opts.Progress
	if w == nil {
		w = io.Discard
	}

	seen := make(map[string]int)
	var (
		papers   []types.Paper
		failures int
		lastErr  error
	)
	for i, cat := range categories {
		if i > 0 && opts.Delay > 0 {
			select {
			case <-ctx.Done():
				return papers, ctx.Err()
			case <-time.After(opts.Delay):
			}
		}
		batch, err := src.Fetch(ctx, cat, opts.Since)
		if err != nil {
			failures++
			lastErr = err
			log.Warn("feed category failed", "source", src.Name(), "category", cat, "err", err)
			fmt.Fprintf(w, "warning: %s %s failed: %v\n", src.Name(), cat, err)
			continue
		}
		added := 0
		for _, p := range batch {
			key := types.BaseID(p.ID)
			if idx, ok := seen[key]; ok {
				mergeInto(&papers[idx], p)
				continue
			}
			seen[key] = len(papers)
			papers = append(papers, p)
			added++
		}
		fmt.Fprintf(w, "%s %s: %d papers (%d new)\n", src.Name(), cat, len(batch), added)
	}
	if failures == len(categories) {
		return nil, fmt.Errorf("all %d feed categories failed: %w", failures, lastErr)
	}
	return papers, nil
}

// mergeInto fills empty fields of dst from src.
func mergeInto(dst *types.Paper, src types.Paper) {
	if dst.Title == "" {
		dst.Title = src.Title
	}
	if len(dst.Authors) == 0 {
		dst.Authors = src.Authors
	}
	if dst.Abstract == "" {
		dst.Abstract = src.Abstract
	}
}

// LoadPapersJSON reads papers from a file holding either a JSON array of
// paper records or an object keyed by paper id. Both the legacy upper-case
// and the lower-case field schemas are accepted.
func LoadPapersJSON(path string) ([]types.Paper, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading papers file: %w", err)
	}
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		var list []types.Paper
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("parsing papers file %s: %w", path, err)
		}
		return list, nil
	}
	set := types.NewSelectionSet()
	if err := json.Unmarshal(data, set); err != nil {
		return nil, fmt.Errorf("parsing papers file %s: %w", path, err)
	}
	return set.Papers(), nil
}

// Since returns the cutoff instant for a lookback window ending at now.
func Since(now time.Time, lookback time.Duration) time.Time {
	if lookback <= 0 {
		return time.Time{}
	}
	return now.Add(-lookback)
}
