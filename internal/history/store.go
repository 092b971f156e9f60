// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package history indexes every dated selection snapshot in the result cache
// into SQLite so past runs can be listed and searched by title and abstract.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/paper-digest/internal/cache"
	"github.com/pdiddy/paper-digest/pkg/types"
)

const defaultMaxResults = 20

// Store is the history index.
type Store struct {
	db         *sqlx.DB
	cache      *cache.Store
	maxResults int
}

// Open opens or creates the index database at dbPath over the snapshots of
// the given cache.
func Open(dbPath string, c *cache.Store, maxResults int) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}
	db, err := sqlx.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	s := &Store{db: db, cache: c, maxResults: maxResults}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS entries (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			date TEXT NOT NULL,
			rank INTEGER NOT NULL,
			paper_id TEXT NOT NULL,
			base_id TEXT NOT NULL,
			title TEXT,
			authors TEXT,
			abstract TEXT,
			url TEXT,
			comment TEXT,
			criterion TEXT,
			score REAL,
			UNIQUE(date, base_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_base_id ON entries(base_id)`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			date TEXT PRIMARY KEY,
			file_mod_time TEXT NOT NULL,
			papers INTEGER NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	var ftsExists int
	if err := s.db.Get(&ftsExists,
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='entries_fts'`,
	); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}
	if ftsExists > 0 {
		return nil
	}
	ftsStatements := []string{
		`CREATE VIRTUAL TABLE entries_fts USING fts5(title, abstract, content=entries, content_rowid=rowid)`,
		`CREATE TRIGGER entries_ai AFTER INSERT ON entries BEGIN
			INSERT INTO entries_fts(rowid, title, abstract) VALUES (new.rowid, new.title, new.abstract);
		END`,
		`CREATE TRIGGER entries_ad AFTER DELETE ON entries BEGIN
			INSERT INTO entries_fts(entries_fts, rowid, title, abstract) VALUES('delete', old.rowid, old.title, old.abstract);
		END`,
		`CREATE TRIGGER entries_au AFTER UPDATE ON entries BEGIN
			INSERT INTO entries_fts(entries_fts, rowid, title, abstract) VALUES('delete', old.rowid, old.title, old.abstract);
			INSERT INTO entries_fts(rowid, title, abstract) VALUES (new.rowid, new.title, new.abstract);
		END`,
	}
	for _, stmt := range ftsStatements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("creating FTS infrastructure: %w", err)
		}
	}
	return nil
}

// IngestSummary holds counts from an indexing pass.
type IngestSummary struct {
	Indexed int
	Updated int
	Skipped int
	Failed  int
}

// Ingest indexes every output snapshot in the cache. Snapshots whose file
// has not changed since the last pass are skipped.
func (s *Store) Ingest(ctx context.Context, w io.Writer) (IngestSummary, error) {
	if w == nil {
		w = io.Discard
	}
	var summary IngestSummary
	for _, date := range s.cache.Dates(cache.OutputEntity) {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		status, err := s.IndexDate(ctx, date)
		switch {
		case err != nil:
			fmt.Fprintf(w, "failed  %s: %v\n", date, err)
			summary.Failed++
		case status == StatusSkipped:
			summary.Skipped++
		case status == StatusUpdated:
			fmt.Fprintf(w, "updated %s\n", date)
			summary.Updated++
		default:
			fmt.Fprintf(w, "indexed %s\n", date)
			summary.Indexed++
		}
	}
	fmt.Fprintf(w, "indexed: %d, updated: %d, skipped: %d, failed: %d\n",
		summary.Indexed, summary.Updated, summary.Skipped, summary.Failed)
	return summary, nil
}

// Status is the outcome of indexing one snapshot.
type Status int

const (
	StatusIndexed Status = iota
	StatusUpdated
	StatusSkipped
)

// IndexDate (re)indexes the snapshot for one date.
func (s *Store) IndexDate(ctx context.Context, date string) (Status, error) {
	key := cache.Key(date, cache.OutputEntity)
	info, err := os.Stat(s.cache.Path(key))
	if err != nil {
		return 0, fmt.Errorf("stat snapshot: %w", err)
	}
	modTime := info.ModTime().UTC().Format(time.RFC3339Nano)

	var stored string
	err = s.db.GetContext(ctx, &stored, `SELECT file_mod_time FROM snapshots WHERE date = ?`, date)
	if err == nil && stored == modTime {
		return StatusSkipped, nil
	}
	isUpdate := err == nil

	set := types.NewSelectionSet()
	if !s.cache.Get(key, set) {
		return 0, fmt.Errorf("snapshot %s unreadable", key)
	}
	if err := s.indexSnapshot(ctx, date, set, modTime); err != nil {
		return 0, err
	}
	if isUpdate {
		return StatusUpdated, nil
	}
	return StatusIndexed, nil
}

// entryRow is the stored form of one selected paper.
type entryRow struct {
	Date      string  `db:"date"`
	Rank      int     `db:"rank"`
	PaperID   string  `db:"paper_id"`
	BaseID    string  `db:"base_id"`
	Title     string  `db:"title"`
	Authors   string  `db:"authors"`
	Abstract  string  `db:"abstract"`
	URL       string  `db:"url"`
	Comment   string  `db:"comment"`
	Criterion string  `db:"criterion"`
	Score     float64 `db:"score"`
}

func (s *Store) indexSnapshot(ctx context.Context, date string, set *types.SelectionSet, modTime string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE date = ?`, date); err != nil {
		return fmt.Errorf("deleting old entries: %w", err)
	}
	// One row per base id: the first (best ranked) version of a paper wins.
	seen := make(map[string]bool, set.Len())
	rank := 0
	for _, id := range set.Keys() {
		p, _ := set.Get(id)
		baseID := types.BaseID(p.ID)
		if seen[baseID] {
			continue
		}
		seen[baseID] = true
		authorsJSON, _ := json.Marshal(p.Authors)
		row := entryRow{
			Date: date, Rank: rank, PaperID: p.ID, BaseID: baseID,
			Title: p.Title, Authors: string(authorsJSON), Abstract: p.Abstract,
			URL: p.URL, Comment: p.Comment, Criterion: p.Criterion, Score: set.Score(id),
		}
		if _, err := tx.NamedExecContext(ctx,
			`INSERT INTO entries (date, rank, paper_id, base_id, title, authors, abstract, url, comment, criterion, score)
			 VALUES (:date, :rank, :paper_id, :base_id, :title, :authors, :abstract, :url, :comment, :criterion, :score)`,
			row,
		); err != nil {
			return fmt.Errorf("inserting %s: %w", p.ID, err)
		}
		rank++
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO snapshots (date, file_mod_time, papers) VALUES (?, ?, ?)
		 ON CONFLICT(date) DO UPDATE SET file_mod_time=excluded.file_mod_time, papers=excluded.papers`,
		date, modTime, rank,
	); err != nil {
		return fmt.Errorf("updating snapshot status: %w", err)
	}
	return tx.Commit()
}
