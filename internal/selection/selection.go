// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package selection merges author-matched and LLM-promoted papers into one
// SelectionSet and ranks it.
package selection

import (
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/pdiddy/paper-digest/pkg/types"
)

// Aggregate builds the selection set. Author matches are inserted first so
// their entry wins over any later LLM promotion of the same id. Each paper's
// Score field is the score it enters the set with.
func Aggregate(matched, promoted []types.Paper) *types.SelectionSet {
	set := types.NewSelectionSet()
	for _, p := range matched {
		set.Add(p, p.Score)
	}
	for _, p := range promoted {
		if !set.Add(p, p.Score) {
			slog.Debug("paper already selected, keeping first entry", "paper_id", p.ID)
		}
	}
	return set
}

// Rank returns a new set ordered by descending score. Equal scores are
// ordered by version-stripped id so the order is reproducible.
func Rank(set *types.SelectionSet) *types.SelectionSet {
	return set.Ranked()
}

// SortByCriterion returns the papers of set ordered by criterion priority
// (the position of the criterion in order), then relevance descending, then
// novelty descending. Papers whose criterion is not listed sort last.
func SortByCriterion(set *types.SelectionSet, order []string) []types.Paper {
	papers := set.Papers()
	rank := make(map[string]int, len(order))
	for i, c := range order {
		rank[normalizeCriterion(c)] = i
	}
	priority := func(p types.Paper) int {
		if r, ok := rank[normalizeCriterion(p.Criterion)]; ok {
			return r
		}
		if r, ok := criterionNumber(p.Criterion, len(order)); ok {
			return r
		}
		return len(order)
	}

	sort.SliceStable(papers, func(i, j int) bool {
		pi, pj := priority(papers[i]), priority(papers[j])
		if pi != pj {
			return pi < pj
		}
		if ri, rj := papers[i].RelevanceValue(), papers[j].RelevanceValue(); ri != rj {
			return ri > rj
		}
		return papers[i].NoveltyValue() > papers[j].NoveltyValue()
	})
	return papers
}

func normalizeCriterion(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// criterionNumber accepts a 1-based criterion number, which is how the
// scoring prompt asks the model to name criteria.
func criterionNumber(s string, n int) (int, bool) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v < 1 || v > n {
		return 0, false
	}
	return v - 1, true
}
