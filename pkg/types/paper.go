// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the paper-digest pipeline:
// papers and their annotations, author identity records, LLM score records,
// the ranked selection set, Q&A results, and configuration.
package types

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// arxivAbsBase is the landing page prefix used when a record carries no URL.
const arxivAbsBase = "https://arxiv.org/abs/"

// Paper is a single feed entry plus the annotations added while it moves
// through the pipeline. Identity is the ID alone: every derived collection is
// keyed by it, so two records with the same ID collapse to one.
type Paper struct {
	// ID is the arXiv identifier as it appeared in the feed (e.g. "2401.01234v2").
	ID string `json:"arxiv_id" yaml:"arxiv_id"`

	// Title is the paper title.
	Title string `json:"title" yaml:"title"`

	// Authors lists author display names in source order.
	Authors []string `json:"authors" yaml:"authors"`

	// Abstract is the paper abstract.
	Abstract string `json:"abstract" yaml:"abstract"`

	// URL is the landing page of the paper.
	URL string `json:"url" yaml:"url"`

	// Comment is a short free-text annotation ("Author match" or the LLM comment).
	Comment string `json:"comment,omitempty" yaml:"comment,omitempty"`

	// Relevance is the LLM relevance judgment (1-10), nil when not scored.
	Relevance *int `json:"relevance,omitempty" yaml:"relevance,omitempty"`

	// Novelty is the LLM novelty judgment (1-10), nil when not scored.
	Novelty *int `json:"novelty,omitempty" yaml:"novelty,omitempty"`

	// Criterion names the user topic the paper matched.
	Criterion string `json:"criterion,omitempty" yaml:"criterion,omitempty"`

	// Score is the sortable selection score assigned by the aggregator.
	Score float64 `json:"score,omitempty" yaml:"score,omitempty"`
}

// BaseID returns the ID with any trailing arXiv version suffix removed
// (e.g. "2401.01234v2" -> "2401.01234"). IDs without a version are returned
// unchanged.
func BaseID(id string) string {
	id = strings.TrimSpace(id)
	if vIdx := strings.LastIndex(id, "v"); vIdx > 0 && vIdx < len(id)-1 {
		if _, err := strconv.Atoi(id[vIdx+1:]); err == nil {
			return id[:vIdx]
		}
	}
	return id
}

// SameID reports whether two identifiers refer to the same paper once
// version suffixes are ignored.
func SameID(a, b string) bool {
	return a != "" && BaseID(a) == BaseID(b)
}

// AbsURL returns the arXiv landing page URL for an identifier.
func AbsURL(id string) string {
	return arxivAbsBase + id
}

// Batched splits papers into consecutive groups of at most size.
func Batched(papers []Paper, size int) [][]Paper {
	if size <= 0 {
		size = 1
	}
	var out [][]Paper
	for i := 0; i < len(papers); i += size {
		end := min(i+size, len(papers))
		out = append(out, papers[i:end])
	}
	return out
}

// Merge returns a copy of p with the score record's judgments applied.
func (p Paper) Merge(r ScoreRecord) Paper {
	rel, nov := r.Relevance, r.Novelty
	p.Relevance = &rel
	p.Novelty = &nov
	p.Comment = r.Comment
	p.Criterion = r.Criterion
	return p
}

// RelevanceValue returns the relevance judgment or 0 when absent.
func (p Paper) RelevanceValue() int {
	if p.Relevance == nil {
		return 0
	}
	return *p.Relevance
}

// NoveltyValue returns the novelty judgment or 0 when absent.
func (p Paper) NoveltyValue() int {
	if p.Novelty == nil {
		return 0
	}
	return *p.Novelty
}

// paperKeys lists, per canonical field, the accepted spellings in priority
// order. Snapshots written by earlier versions used upper-case keys for the
// LLM-produced fields.
var paperKeys = map[string][]string{
	"id":        {"ARXIVID", "arxiv_id", "id"},
	"title":     {"title", "TITLE"},
	"authors":   {"authors", "AUTHORS"},
	"abstract":  {"abstract", "ABSTRACT"},
	"url":       {"url", "URL"},
	"comment":   {"COMMENT", "comment"},
	"relevance": {"RELEVANCE", "relevance"},
	"novelty":   {"NOVELTY", "novelty"},
	"criterion": {"CRITERION", "criterion"},
	"score":     {"score", "SCORE"},
}

// UnmarshalJSON accepts either schema variant and always yields a canonical
// Paper. A record without an identifier is rejected.
func (p *Paper) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding paper: %w", err)
	}
	np, err := NormalizePaper(raw)
	if err != nil {
		return err
	}
	*p = np
	return nil
}

// NormalizePaper builds a canonical Paper from a decoded JSON object whose
// keys may follow either the upper-case legacy schema or the lower-case one.
func NormalizePaper(raw map[string]json.RawMessage) (Paper, error) {
	var p Paper
	if err := pickString(raw, "id", &p.ID); err != nil {
		return Paper{}, err
	}
	if p.ID == "" {
		return Paper{}, fmt.Errorf("paper record has no identifier")
	}
	for field, dst := range map[string]*string{
		"title":     &p.Title,
		"abstract":  &p.Abstract,
		"url":       &p.URL,
		"comment":   &p.Comment,
		"criterion": &p.Criterion,
	} {
		if err := pickString(raw, field, dst); err != nil {
			return Paper{}, err
		}
	}
	if msg, ok := pick(raw, "authors"); ok {
		if err := json.Unmarshal(msg, &p.Authors); err != nil {
			return Paper{}, fmt.Errorf("paper %s: authors: %w", p.ID, err)
		}
	}
	var err error
	if p.Relevance, err = pickInt(raw, "relevance"); err != nil {
		return Paper{}, fmt.Errorf("paper %s: %w", p.ID, err)
	}
	if p.Novelty, err = pickInt(raw, "novelty"); err != nil {
		return Paper{}, fmt.Errorf("paper %s: %w", p.ID, err)
	}
	if msg, ok := pick(raw, "score"); ok {
		if err := json.Unmarshal(msg, &p.Score); err != nil {
			return Paper{}, fmt.Errorf("paper %s: score: %w", p.ID, err)
		}
	}
	if p.URL == "" {
		p.URL = AbsURL(p.ID)
	}
	return p, nil
}

func pick(raw map[string]json.RawMessage, field string) (json.RawMessage, bool) {
	for _, key := range paperKeys[field] {
		if msg, ok := raw[key]; ok && string(msg) != "null" {
			return msg, true
		}
	}
	return nil, false
}

func pickString(raw map[string]json.RawMessage, field string, dst *string) error {
	msg, ok := pick(raw, field)
	if !ok {
		return nil
	}
	if err := json.Unmarshal(msg, dst); err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	return nil
}

// pickInt decodes an integer field that LLM output sometimes renders as a
// quoted string or as a float with no fractional part.
func pickInt(raw map[string]json.RawMessage, field string) (*int, error) {
	msg, ok := pick(raw, field)
	if !ok {
		return nil, nil
	}
	var n json.Number
	if err := json.Unmarshal(msg, &n); err != nil {
		var s string
		if err := json.Unmarshal(msg, &s); err != nil {
			return nil, fmt.Errorf("%s: not a number", field)
		}
		n = json.Number(strings.TrimSpace(s))
	}
	v, err := n.Int64()
	if err != nil {
		f, ferr := n.Float64()
		if ferr != nil {
			return nil, fmt.Errorf("%s: %w", field, err)
		}
		if f != math.Trunc(f) {
			return nil, fmt.Errorf("%s: %s is not an integer", field, n)
		}
		v = int64(f)
	}
	iv := int(v)
	return &iv, nil
}
