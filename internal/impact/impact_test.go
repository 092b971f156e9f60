// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package impact

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pdiddy/paper-digest/pkg/types"
)

func TestFilterByHIndex(t *testing.T) {
	record := types.AuthorRecord{
		"Famous":  {{AuthorID: "F1", HIndex: 3}, {AuthorID: "F2", HIndex: 40}},
		"Junior":  {{AuthorID: "J1", HIndex: 4}},
		"Exactly": {{AuthorID: "E1", HIndex: 15}},
	}
	papers := []types.Paper{
		{ID: "p1", Authors: []string{"Junior", "Famous"}},
		{ID: "p2", Authors: []string{"Junior"}},
		{ID: "p3", Authors: []string{"Unresolved"}},
		{ID: "p4", Authors: []string{"Exactly"}},
		{ID: "p5"},
	}

	tests := []struct {
		name   string
		cutoff int
		want   []string
	}{
		{"default cutoff", 15, []string{"p1", "p4"}},
		{"high cutoff", 41, nil},
		{"zero cutoff keeps everything", 0, []string{"p1", "p2", "p3", "p4", "p5"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, p := range FilterByHIndex(papers, record, tt.cutoff) {
				got = append(got, p.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMaxAuthorHIndex(t *testing.T) {
	record := types.AuthorRecord{"A": {{HIndex: 7}}, "B": {{HIndex: 9}}}
	assert.Equal(t, 9, MaxAuthorHIndex(types.Paper{Authors: []string{"A", "B"}}, record))
	assert.Equal(t, 0, MaxAuthorHIndex(types.Paper{Authors: []string{"C"}}, record))
}
