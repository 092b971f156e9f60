// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// AuthorAlias is one candidate identity returned for a free-text author name.
// Field names follow the Semantic Scholar author search response so that
// snapshot files can be replayed directly.
type AuthorAlias struct {
	// AuthorID is the canonical identity id (e.g. a Semantic Scholar authorId).
	AuthorID string `json:"authorId" yaml:"author_id"`

	// Name is the display name of the identity.
	Name string `json:"name" yaml:"name"`

	// HIndex is the citation-impact number of the identity.
	HIndex int `json:"hIndex" yaml:"h_index"`
}

// AuthorRecord maps a free-text author name to its candidate aliases. A name
// may resolve to several aliases; names that failed to resolve are absent.
type AuthorRecord map[string][]AuthorAlias

// MaxHIndex returns the best citation-impact number across the aliases of
// name, or 0 when the name is unresolved.
func (r AuthorRecord) MaxHIndex(name string) int {
	best := 0
	for _, a := range r[name] {
		if a.HIndex > best {
			best = a.HIndex
		}
	}
	return best
}

// AuthorNames returns the distinct author names across papers, in first-seen order.
func AuthorNames(papers []Paper) []string {
	seen := make(map[string]bool)
	var names []string
	for _, p := range papers {
		for _, a := range p.Authors {
			if a == "" || seen[a] {
				continue
			}
			seen[a] = true
			names = append(names, a)
		}
	}
	return names
}
