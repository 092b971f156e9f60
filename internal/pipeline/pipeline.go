// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs one daily selection: fetch the feed, resolve authors,
// split off author matches, apply the impact pre-filter, triage, score,
// aggregate and rank, then cache and write the result.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/pdiddy/paper-digest/internal/authors"
	"github.com/pdiddy/paper-digest/internal/cache"
	"github.com/pdiddy/paper-digest/internal/feed"
	"github.com/pdiddy/paper-digest/internal/impact"
	"github.com/pdiddy/paper-digest/internal/metrics"
	"github.com/pdiddy/paper-digest/internal/output"
	"github.com/pdiddy/paper-digest/internal/scoring"
	"github.com/pdiddy/paper-digest/internal/selection"
	"github.com/pdiddy/paper-digest/internal/telemetry"
	"github.com/pdiddy/paper-digest/internal/triage"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// ErrRunning is returned when a run is requested while another is active.
var ErrRunning = errors.New("a pipeline run is already in progress")

// AuthorResolver maps author display names to their resolved identities.
type AuthorResolver interface {
	Resolve(ctx context.Context, names []string) types.AuthorRecord
}

// Pipeline wires the selection stages together.
type Pipeline struct {
	// Source lists the day's papers. Ignored when Papers is non-nil.
	Source feed.Source

	// Papers, when non-nil, replaces the feed (offline replay).
	Papers []types.Paper

	Authors AuthorResolver
	Targets authors.TargetSet

	// Triage is optional; when nil every impact survivor goes to scoring.
	Triage  *triage.Filter
	Scoring *scoring.Engine

	Cache   *cache.Store
	Writers []output.Writer
	Tracker *Tracker
	Config  types.Config

	Logger *slog.Logger

	// Progress receives human-readable stage lines; nil discards.
	Progress io.Writer

	// Now returns the current time (default time.Now).
	Now func() time.Time
}

// Report summarises one run.
type Report struct {
	RunID string
	Date  string

	Fetched       int
	AuthorMatched int
	ImpactKept    int
	Triaged       int
	Promoted      int

	// Selection is the ranked result; empty when the feed had no papers.
	Selection *types.SelectionSet

	FailedWriters int
}

// Run executes the pipeline for date (YYYY-MM-DD; today when empty).
// Individual batch, lookup and writer failures degrade the result but do not
// fail the run; only a feed failure does.
func (p *Pipeline) Run(ctx context.Context, date string) (Report, error) {
	log := p.Logger
	if log == nil {
		log = slog.Default()
	}
	w := p.Progress
	if w == nil {
		w = io.Discard
	}
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	if date == "" {
		date = cache.Date(now())
	}
	tracker := p.Tracker
	if tracker == nil {
		tracker = &Tracker{}
	}
	if !tracker.TryStart("fetching papers") {
		return Report{}, ErrRunning
	}

	rep := Report{RunID: uuid.NewString(), Date: date, Selection: types.NewSelectionSet()}
	log = log.With("run_id", rep.RunID, "date", date)

	ctx, span := telemetry.Tracer().Start(ctx, "pipeline.run")
	span.SetAttributes(attribute.String("run_id", rep.RunID), attribute.String("date", date))
	defer span.End()

	err := p.run(ctx, &rep, tracker, log, w, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		tracker.Finish("failed: " + err.Error())
		return rep, err
	}
	tracker.Finish(fmt.Sprintf("done: %d papers selected", rep.Selection.Len()))
	return rep, nil
}

func (p *Pipeline) run(ctx context.Context, rep *Report, tracker *Tracker, log *slog.Logger, w io.Writer, now func() time.Time) error {
	cfg := p.Config

	papers, err := p.fetch(ctx, log, w, now)
	if err != nil {
		return err
	}
	rep.Fetched = len(papers)
	metrics.PapersByStage.WithLabelValues("fetched").Set(float64(len(papers)))
	fmt.Fprintf(w, "fetched %d papers\n", len(papers))
	if len(papers) == 0 {
		log.Info("feed returned no papers, nothing to write")
		return nil
	}
	p.dump("papers.debug.json", papers, log)

	tracker.Update(0, 0, "resolving authors")
	names := types.AuthorNames(papers)
	record := p.resolveAuthors(ctx, rep.Date, names, log)
	p.dump("all_authors.debug.json", record, log)
	p.dump("author_id_set.debug.json", p.Targets.IDs(), log)
	fmt.Fprintf(w, "resolved %d of %d authors\n", len(record), len(names))

	matched, rest := authors.FilterByAuthor(papers, record, p.Targets, cfg.Selection.AuthorMatchScore)
	rep.AuthorMatched = len(matched)
	metrics.PapersByStage.WithLabelValues("author_matched").Set(float64(len(matched)))
	fmt.Fprintf(w, "%d papers by target authors\n", len(matched))

	kept := impact.FilterByHIndex(rest, record, cfg.Filtering.HIndexCutoff)
	rep.ImpactKept = len(kept)
	metrics.PapersByStage.WithLabelValues("impact").Set(float64(len(kept)))
	fmt.Fprintf(w, "%d papers after h-index filter\n", len(kept))

	triaged := kept
	if p.Triage != nil && len(kept) > 0 {
		p.Triage.OnBatch = func(cur, total int) { tracker.Update(cur, total, "triage") }
		var sum triage.Summary
		triaged, sum = p.Triage.Run(ctx, kept)
		log.Info("triage done", "kept", len(triaged), "discarded", sum.Discarded, "failed_batches", sum.FailedBatches)
	}
	rep.Triaged = len(triaged)
	metrics.PapersByStage.WithLabelValues("triage").Set(float64(len(triaged)))
	fmt.Fprintf(w, "%d papers after triage\n", len(triaged))

	var promoted []types.Paper
	if p.Scoring != nil && len(triaged) > 0 {
		p.Scoring.OnBatch = func(cur, total int) { tracker.Update(cur, total, "scoring") }
		res := p.Scoring.Run(ctx, triaged, papers)
		promoted = res.Promoted
		p.dump("gpt_paper_batches.debug.json", res.Trace, log)
		log.Info("scoring done", "promoted", len(promoted), "failed_batches", res.FailedBatches, "dropped", res.Dropped)
	}
	rep.Promoted = len(promoted)
	metrics.PapersByStage.WithLabelValues("promoted").Set(float64(len(promoted)))

	rep.Selection = selection.Rank(selection.Aggregate(matched, promoted))
	metrics.PapersByStage.WithLabelValues("selected").Set(float64(rep.Selection.Len()))
	fmt.Fprintf(w, "selected %d papers\n", rep.Selection.Len())

	tracker.Update(0, 0, "writing output")
	if p.Cache != nil {
		p.Cache.Put(cache.Key(rep.Date, cache.OutputEntity), rep.Selection)
	}
	rep.FailedWriters = output.WriteAll(ctx, p.Writers, output.Digest{Date: rep.Date, Selection: rep.Selection}, log)
	return nil
}

func (p *Pipeline) fetch(ctx context.Context, log *slog.Logger, w io.Writer, now func() time.Time) ([]types.Paper, error) {
	if p.Papers != nil {
		return p.Papers, nil
	}
	if p.Source == nil {
		return nil, errors.New("no paper source configured")
	}
	ctx, span := telemetry.Tracer().Start(ctx, "pipeline.fetch")
	defer span.End()

	papers, err := feed.FetchAll(ctx, p.Source, p.Config.Filtering.ArxivCategories, feed.Options{
		Since:    feed.Since(now(), p.Config.Feed.Lookback),
		Delay:    p.Config.Feed.Delay,
		Logger:   log,
		Progress: w,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching feed: %w", err)
	}
	return papers, nil
}

// dump writes v as indented JSON under the output dir when debug dumps are
// enabled. Failures are logged.
// resolveAuthors returns the author record for names. A record cached for
// date is reused and only names missing from it are looked up.
func (p *Pipeline) resolveAuthors(ctx context.Context, date string, names []string, log *slog.Logger) types.AuthorRecord {
	key := cache.Key(date, cache.AuthorsEntity)
	record := types.AuthorRecord{}
	cached := p.Cache != nil && p.Cache.Get(key, &record)
	if record == nil {
		record = types.AuthorRecord{}
	}

	missing := names
	if cached {
		missing = nil
		for _, name := range names {
			if _, ok := record[name]; !ok {
				missing = append(missing, name)
			}
		}
		log.Info("reusing cached author record", "date", date, "names", len(record), "missing", len(missing))
	}
	if p.Authors != nil && len(missing) > 0 {
		for name, aliases := range p.Authors.Resolve(ctx, missing) {
			record[name] = aliases
		}
	}
	if p.Cache != nil && !cached {
		p.Cache.Put(key, record)
	}
	return record
}

func (p *Pipeline) dump(name string, v any, log *slog.Logger) {
	if !p.Config.Output.DumpDebug {
		return
	}
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		log.Warn("encoding debug dump", "file", name, "err", err)
		return
	}
	if err := os.MkdirAll(p.Config.Output.Dir, 0o755); err != nil {
		log.Warn("creating output directory", "err", err)
		return
	}
	path := filepath.Join(p.Config.Output.Dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Warn("writing debug dump", "path", path, "err", err)
	}
}
