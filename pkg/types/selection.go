// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// SelectionSet is the ordered mapping from paper identifier to enriched paper
// together with each paper's sortable score. Iteration order is insertion
// order until Ranked re-keys the set; after ranking the order IS the ranking
// and must survive serialization, which is why the JSON codec writes and reads
// an ordered object.
//
// Add is safe for concurrent use. The first writer for an identifier wins.
type SelectionSet struct {
	mu      sync.Mutex
	order   []string
	entries map[string]Paper
}

// NewSelectionSet returns an empty set.
func NewSelectionSet() *SelectionSet {
	return &SelectionSet{entries: make(map[string]Paper)}
}

// Add inserts paper with score unless its identifier is already present.
// It reports whether the paper was inserted.
func (s *SelectionSet) Add(paper Paper, score float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entries == nil {
		s.entries = make(map[string]Paper)
	}
	if _, ok := s.entries[paper.ID]; ok {
		return false
	}
	paper.Score = score
	s.entries[paper.ID] = paper
	s.order = append(s.order, paper.ID)
	return true
}

// Has reports whether id is in the set.
func (s *SelectionSet) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[id]
	return ok
}

// Get returns the paper stored under id.
func (s *SelectionSet) Get(id string) (Paper, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.entries[id]
	return p, ok
}

// Find returns the paper whose identifier matches id once version suffixes
// are ignored.
func (s *SelectionSet) Find(id string) (Paper, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.entries[id]; ok {
		return p, true
	}
	for _, key := range s.order {
		if SameID(key, id) {
			return s.entries[key], true
		}
	}
	return Paper{}, false
}

// Score returns the sortable score of id, or 0 when absent.
func (s *SelectionSet) Score(id string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[id].Score
}

// Len returns the number of papers in the set.
func (s *SelectionSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Keys returns the identifiers in set order.
func (s *SelectionSet) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// Papers returns the papers in set order.
func (s *SelectionSet) Papers() []Paper {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Paper, len(s.order))
	for i, id := range s.order {
		out[i] = s.entries[id]
	}
	return out
}

// Ranked returns a new set holding the same papers ordered by descending
// score. Equal scores are ordered by version-stripped identifier so the
// ranking never depends on arrival order.
func (s *SelectionSet) Ranked() *SelectionSet {
	papers := s.Papers()
	sort.SliceStable(papers, func(i, j int) bool {
		if papers[i].Score != papers[j].Score {
			return papers[i].Score > papers[j].Score
		}
		return BaseID(papers[i].ID) < BaseID(papers[j].ID)
	})
	out := NewSelectionSet()
	for _, p := range papers {
		out.Add(p, p.Score)
	}
	return out
}

// MarshalJSON writes the set as a JSON object whose key order is the set order.
func (s *SelectionSet) MarshalJSON() ([]byte, error) {
	papers := s.Papers()
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range papers {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(p.ID)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("encoding paper %s: %w", p.ID, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an ordered JSON object, keeping file order. Entries
// without a stored score fall back to relevance + novelty.
func (s *SelectionSet) UnmarshalJSON(data []byte) error {
	fresh := NewSelectionSet()
	err := decodeOrderedObject(data, func(key string, raw json.RawMessage) error {
		var p Paper
		if err := json.Unmarshal(raw, &p); err != nil {
			return fmt.Errorf("entry %q: %w", key, err)
		}
		score := p.Score
		if score == 0 {
			score = float64(p.RelevanceValue() + p.NoveltyValue())
		}
		fresh.Add(p, score)
		return nil
	})
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = fresh.order
	s.entries = fresh.entries
	return nil
}

// decodeOrderedObject walks the members of a JSON object in document order.
func decodeOrderedObject(data []byte, fn func(key string, raw json.RawMessage) error) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("reading object start: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("reading key: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected string key, got %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("reading value for %q: %w", key, err)
		}
		if err := fn(key, raw); err != nil {
			return err
		}
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("reading object end: %w", err)
	}
	return nil
}
