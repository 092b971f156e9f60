// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"encoding/json"
	"fmt"
)

// Score bounds for relevance and novelty judgments.
const (
	MinJudgment = 1
	MaxJudgment = 10
)

// ScoreRecord is one per-paper judgment returned by the scoring LLM.
type ScoreRecord struct {
	ID        string `json:"ARXIVID" yaml:"arxiv_id"`
	Relevance int    `json:"RELEVANCE" yaml:"relevance"`
	Novelty   int    `json:"NOVELTY" yaml:"novelty"`
	Comment   string `json:"COMMENT" yaml:"comment"`
	Criterion string `json:"CRITERION" yaml:"criterion"`
}

// UnmarshalJSON accepts upper- or lower-case keys and numeric judgments
// rendered either as numbers or as quoted strings.
func (r *ScoreRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var rec ScoreRecord
	if err := pickString(raw, "id", &rec.ID); err != nil {
		return err
	}
	if err := pickString(raw, "comment", &rec.Comment); err != nil {
		return err
	}
	if err := pickString(raw, "criterion", &rec.Criterion); err != nil {
		return err
	}
	rel, err := pickInt(raw, "relevance")
	if err != nil {
		return err
	}
	nov, err := pickInt(raw, "novelty")
	if err != nil {
		return err
	}
	if rel != nil {
		rec.Relevance = *rel
	}
	if nov != nil {
		rec.Novelty = *nov
	}
	*r = rec
	return nil
}

// Validate checks the structural contract: a non-empty identifier and both
// judgments within [MinJudgment, MaxJudgment].
func (r ScoreRecord) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("missing paper identifier")
	}
	if r.Relevance < MinJudgment || r.Relevance > MaxJudgment {
		return fmt.Errorf("paper %s: relevance %d out of range [%d,%d]", r.ID, r.Relevance, MinJudgment, MaxJudgment)
	}
	if r.Novelty < MinJudgment || r.Novelty > MaxJudgment {
		return fmt.Errorf("paper %s: novelty %d out of range [%d,%d]", r.ID, r.Novelty, MinJudgment, MaxJudgment)
	}
	return nil
}

// Total returns relevance + novelty, the selection score of an LLM-scored paper.
func (r ScoreRecord) Total() float64 {
	return float64(r.Relevance + r.Novelty)
}

// ScoredPaper pairs a judgment with the paper it refers to. The scoring
// engine keeps one per returned record, promoted or not, as a debug trace.
type ScoredPaper struct {
	Paper    Paper `json:"paper" yaml:"paper"`
	Promoted bool  `json:"promoted" yaml:"promoted"`
}
