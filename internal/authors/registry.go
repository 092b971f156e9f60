// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package authors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paper-digest/internal/metrics"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// MatchComment annotates papers selected by author identity.
const MatchComment = "Author match"

// Options controls a ResolveAll run.
type Options struct {
	// Delay is the wait between consecutive lookups.
	Delay time.Duration

	// Logger receives per-name diagnostics; nil uses slog.Default().
	Logger *slog.Logger

	// Progress receives one human-readable line per lookup; nil discards.
	Progress io.Writer
}

// ThrottleDelay returns the wait between lookups: short with an API key,
// about one second without one to stay under the anonymous rate limit.
func ThrottleDelay(cfg types.AuthorsConfig, hasKey bool) time.Duration {
	if hasKey {
		return cfg.DelayKeyed
	}
	return cfg.DelayAnonymous
}

// ResolveAll looks up every name through r and returns the names that
// resolved to at least one alias. A failed lookup is logged and the name is
// left out; it never aborts the run.
func ResolveAll(ctx context.Context, r Resolver, names []string, opts Options) types.AuthorRecord {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	w := opts.Progress
	if w == nil {
		w = io.Discard
	}

	record := make(types.AuthorRecord)
	for i, name := range names {
		if ctx.Err() != nil {
			log.Warn("author lookup cancelled", "remaining", len(names)-i)
			break
		}
		if i > 0 && opts.Delay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(opts.Delay):
			}
		}

		aliases, err := r.Lookup(ctx, name)
		switch {
		case err != nil:
			metrics.AuthorLookups.WithLabelValues("failed").Inc()
			log.Warn("author lookup failed", "resolver", r.Name(), "author", name, "err", err)
			fmt.Fprintf(w, "failed  %s: %v\n", name, err)
		case len(aliases) == 0:
			metrics.AuthorLookups.WithLabelValues("unknown").Inc()
			fmt.Fprintf(w, "unknown %s\n", name)
		default:
			metrics.AuthorLookups.WithLabelValues("ok").Inc()
			record[name] = aliases
			fmt.Fprintf(w, "resolved %s (%d aliases)\n", name, len(aliases))
		}
	}
	return record
}

// FilterByAuthor splits papers into those with at least one author whose
// resolved aliases include a target identity, and the rest. Matched papers
// carry MatchComment and score. Input order is preserved in both slices.
func FilterByAuthor(papers []types.Paper, record types.AuthorRecord, targets TargetSet, score float64) (matched, rest []types.Paper) {
	for _, p := range papers {
		if hasTargetAuthor(p, record, targets) {
			p.Comment = MatchComment
			p.Score = score
			matched = append(matched, p)
			continue
		}
		rest = append(rest, p)
	}
	return matched, rest
}

func hasTargetAuthor(p types.Paper, record types.AuthorRecord, targets TargetSet) bool {
	for _, name := range p.Authors {
		for _, alias := range record[name] {
			if targets.Has(alias.AuthorID) {
				return true
			}
		}
	}
	return false
}

// LoadSnapshot reads an author record written by SaveSnapshot. Files ending
// in .yaml or .yml are decoded as YAML, anything else as JSON.
func LoadSnapshot(path string) (types.AuthorRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	record := make(types.AuthorRecord)
	if isYAML(path) {
		err = yaml.Unmarshal(data, &record)
	} else {
		err = json.Unmarshal(data, &record)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing author snapshot %s: %w", path, err)
	}
	return record, nil
}

// SaveSnapshot writes record to path by temp file and rename.
func SaveSnapshot(path string, record types.AuthorRecord) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(record)
	} else {
		data, err = json.MarshalIndent(record, "", "    ")
	}
	if err != nil {
		return fmt.Errorf("encoding author snapshot: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".authors-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming snapshot: %w", err)
	}
	return nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// Registry resolves names through a Resolver, replaying a snapshot file when
// one is configured and readable.
type Registry struct {
	Resolver     Resolver
	SnapshotFile string
	Options      Options
}

// Resolve returns the author record for names. Names already present in a
// readable SnapshotFile are replayed without network calls; the rest are
// resolved live, merged into the snapshot and the file is rewritten.
func (g *Registry) Resolve(ctx context.Context, names []string) types.AuthorRecord {
	log := g.Options.Logger
	if log == nil {
		log = slog.Default()
	}

	snapshot := make(types.AuthorRecord)
	if g.SnapshotFile != "" {
		if record, err := LoadSnapshot(g.SnapshotFile); err == nil {
			snapshot = record
		} else if !os.IsNotExist(err) {
			log.Warn("ignoring unreadable author snapshot", "path", g.SnapshotFile, "err", err)
		}
	}

	record := make(types.AuthorRecord, len(names))
	var missing []string
	for _, name := range names {
		if aliases, ok := snapshot[name]; ok {
			record[name] = aliases
			continue
		}
		missing = append(missing, name)
	}
	if replayed := len(record); replayed > 0 {
		log.Info("replaying author snapshot", "path", g.SnapshotFile, "names", replayed, "missing", len(missing))
		metrics.AuthorLookups.WithLabelValues("replayed").Add(float64(replayed))
	}
	if len(missing) == 0 {
		return record
	}

	live := ResolveAll(ctx, g.Resolver, missing, g.Options)
	for name, aliases := range live {
		record[name] = aliases
		snapshot[name] = aliases
	}

	if g.SnapshotFile != "" && len(live) > 0 {
		if err := SaveSnapshot(g.SnapshotFile, snapshot); err != nil {
			log.Warn("could not write author snapshot", "path", g.SnapshotFile, "err", err)
		}
	}
	return record
}
