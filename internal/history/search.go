// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package history

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// DateSummary is one indexed run.
type DateSummary struct {
	Date   string `db:"date" json:"date"`
	Papers int    `db:"papers" json:"papers"`
}

// Dates lists indexed runs, newest first.
func (s *Store) Dates(ctx context.Context) ([]DateSummary, error) {
	var out []DateSummary
	if err := s.db.SelectContext(ctx, &out, `SELECT date, papers FROM snapshots ORDER BY date DESC`); err != nil {
		return nil, fmt.Errorf("listing dates: %w", err)
	}
	return out, nil
}

// QueryOptions holds search parameters.
type QueryOptions struct {
	// Query is the FTS5 search string over titles and abstracts. Empty lists
	// entries by date and rank.
	Query string

	// Date restricts results to one run.
	Date string

	// MaxResults limits the result count. Zero uses the store default.
	MaxResults int
}

// Entry is one selected paper of one run.
type Entry struct {
	Date      string   `json:"date"`
	Rank      int      `json:"rank"`
	PaperID   string   `json:"arxiv_id"`
	Title     string   `json:"title"`
	Authors   []string `json:"authors"`
	Abstract  string   `json:"abstract"`
	URL       string   `json:"url"`
	Comment   string   `json:"comment,omitempty"`
	Criterion string   `json:"criterion,omitempty"`
	Score     float64  `json:"score"`
}

// Search queries the index. Full-text results are ordered by match rank,
// the rest newest run first, then by selection rank.
func (s *Store) Search(ctx context.Context, opts QueryOptions) ([]Entry, error) {
	limit := opts.MaxResults
	if limit <= 0 {
		limit = s.maxResults
	}

	var (
		qb     strings.Builder
		args   []any
		useFTS = strings.TrimSpace(opts.Query) != ""
	)
	const cols = `e.date, e.rank, e.paper_id, e.base_id, e.title, e.authors, e.abstract, e.url, e.comment, e.criterion, e.score`
	if useFTS {
		qb.WriteString(`SELECT ` + cols + ` FROM entries_fts
			JOIN entries e ON e.rowid = entries_fts.rowid
			WHERE entries_fts MATCH ?`)
		args = append(args, opts.Query)
	} else {
		qb.WriteString(`SELECT ` + cols + ` FROM entries e WHERE 1=1`)
	}
	if opts.Date != "" {
		qb.WriteString(` AND e.date = ?`)
		args = append(args, opts.Date)
	}
	if useFTS {
		qb.WriteString(` ORDER BY entries_fts.rank`)
	} else {
		qb.WriteString(` ORDER BY e.date DESC, e.rank`)
	}
	qb.WriteString(` LIMIT ?`)
	args = append(args, limit)

	var rows []entryRow
	if err := s.db.SelectContext(ctx, &rows, qb.String(), args...); err != nil {
		return nil, fmt.Errorf("searching history: %w", err)
	}
	out := make([]Entry, 0, len(rows))
	for _, r := range rows {
		e := Entry{
			Date: r.Date, Rank: r.Rank, PaperID: r.PaperID, Title: r.Title,
			Abstract: r.Abstract, URL: r.URL, Comment: r.Comment,
			Criterion: r.Criterion, Score: r.Score,
		}
		json.Unmarshal([]byte(r.Authors), &e.Authors)
		out = append(out, e)
	}
	return out, nil
}

// Appearances returns every run that selected the paper, compared by
// version-stripped id, newest first.
func (s *Store) Appearances(ctx context.Context, baseID string) ([]string, error) {
	var dates []string
	if err := s.db.SelectContext(ctx, &dates,
		`SELECT date FROM entries WHERE base_id = ? ORDER BY date DESC`, baseID,
	); err != nil {
		return nil, fmt.Errorf("listing appearances: %w", err)
	}
	return dates, nil
}
