// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package impact discards papers with no sufficiently cited author before any
// language-model spend.
package impact

import "github.com/pdiddy/paper-digest/pkg/types"

// MaxAuthorHIndex returns the best h-index over all aliases of all authors
// of p. Unresolved authors contribute zero.
func MaxAuthorHIndex(p types.Paper, record types.AuthorRecord) int {
	best := 0
	for _, name := range p.Authors {
		if h := record.MaxHIndex(name); h > best {
			best = h
		}
	}
	return best
}

// FilterByHIndex returns, in input order, the papers with at least one author
// whose best h-index meets or exceeds cutoff.
func FilterByHIndex(papers []types.Paper, record types.AuthorRecord, cutoff int) []types.Paper {
	var kept []types.Paper
	for _, p := range papers {
		if MaxAuthorHIndex(p, record) >= cutoff {
			kept = append(kept, p)
		}
	}
	return kept
}
