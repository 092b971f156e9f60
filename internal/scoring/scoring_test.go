// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-digest/internal/prompt"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// mockCaller replies through fn and records prompts.
type mockCaller struct {
	fn      func(call int, prompt string) (string, error)
	prompts []string
}

func (m *mockCaller) Complete(_ context.Context, _, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	return m.fn(len(m.prompts), prompt)
}

func (m *mockCaller) ModelName() string { return "mock" }

var idPattern = regexp.MustCompile(`ArXiv ID: (\S+)`)

// echoScores returns one record per paper in the prompt, with judgments
// from the table (default 8/8).
func echoScores(table map[string][2]int) func(int, string) (string, error) {
	return func(_ int, p string) (string, error) {
		var recs []map[string]any
		for _, m := range idPattern.FindAllStringSubmatch(p, -1) {
			j, ok := table[m[1]]
			if !ok {
				j = [2]int{8, 8}
			}
			recs = append(recs, map[string]any{
				"ARXIVID": m[1], "RELEVANCE": j[0], "NOVELTY": j[1], "COMMENT": "c-" + m[1], "CRITERION": "1",
			})
		}
		data, err := json.Marshal(recs)
		return string(data), err
	}
}

func makePapers(n int) []types.Paper {
	papers := make([]types.Paper, n)
	for i := range papers {
		papers[i] = types.Paper{ID: fmt.Sprintf("p%d", i+1), Title: "T", Authors: []string{"A", "B"}, Abstract: "abs"}
	}
	return papers
}

func newEngine(c *mockCaller) *Engine {
	return &Engine{
		Caller:          c,
		Prompts:         prompt.Set{Base: "BASE", Criteria: "CRIT", Postfix: "POST"},
		RelevanceCutoff: 7,
		NoveltyCutoff:   6,
	}
}

func TestRun_CutoffsAndScore(t *testing.T) {
	c := &mockCaller{fn: echoScores(map[string][2]int{"p2": {8, 6}, "p3": {5, 9}})}
	papers := []types.Paper{{ID: "p2", Title: "Two"}, {ID: "p3", Title: "Three"}}

	res := newEngine(c).Run(context.Background(), papers, nil)

	require.Len(t, res.Promoted, 1)
	p := res.Promoted[0]
	assert.Equal(t, "p2", p.ID)
	assert.Equal(t, 14.0, p.Score)
	assert.Equal(t, 8, p.RelevanceValue())
	assert.Equal(t, 6, p.NoveltyValue())
	assert.Equal(t, "c-p2", p.Comment)
	assert.Equal(t, "Two", p.Title, "original fields are kept")

	require.Len(t, res.Trace, 1)
	require.Len(t, res.Trace[0], 2, "rejected records stay in the trace")
	assert.True(t, res.Trace[0][0].Promoted)
	assert.False(t, res.Trace[0][1].Promoted)
}

func TestRun_ZeroCutoffsAdmitEveryRecord(t *testing.T) {
	c := &mockCaller{fn: echoScores(map[string][2]int{"p2": {8, 6}, "p3": {1, 1}})}
	papers := []types.Paper{{ID: "p2", Title: "Two"}, {ID: "p3", Title: "Three"}}
	e := newEngine(c)
	e.RelevanceCutoff, e.NoveltyCutoff = 0, 0

	res := e.Run(context.Background(), papers, nil)

	assert.Len(t, res.Promoted, 2)
}

func TestRun_EveryPromotedPaperClearsCutoffs(t *testing.T) {
	table := map[string][2]int{}
	for i := 1; i <= 20; i++ {
		table[fmt.Sprintf("p%d", i)] = [2]int{i%10 + 1, (i*7)%10 + 1}
	}
	c := &mockCaller{fn: echoScores(table)}

	res := newEngine(c).Run(context.Background(), makePapers(20), nil)
	for _, p := range res.Promoted {
		assert.GreaterOrEqual(t, p.RelevanceValue(), 7, p.ID)
		assert.GreaterOrEqual(t, p.NoveltyValue(), 6, p.ID)
	}
	assert.Len(t, c.prompts, 4, "20 papers in batches of 5")
}

func TestRun_IdentifierRoundTrip(t *testing.T) {
	c := &mockCaller{fn: echoScores(nil)}
	papers := makePapers(7)

	res := newEngine(c).Run(context.Background(), papers, nil)

	require.Len(t, res.Promoted, 7)
	for i, p := range res.Promoted {
		assert.Equal(t, papers[i].ID, p.ID)
	}
}

func TestRun_UnknownIDDropped(t *testing.T) {
	c := &mockCaller{fn: func(int, string) (string, error) {
		return `[{"ARXIVID":"p1","RELEVANCE":9,"NOVELTY":9,"COMMENT":"","CRITERION":"1"},
		         {"ARXIVID":"p99","RELEVANCE":10,"NOVELTY":10,"COMMENT":"","CRITERION":"1"}]`, nil
	}}

	res := newEngine(c).Run(context.Background(), makePapers(1), nil)

	require.Len(t, res.Promoted, 1)
	assert.Equal(t, "p1", res.Promoted[0].ID)
	assert.Equal(t, 1, res.Dropped)
	assert.Len(t, res.Trace[0], 1)
}

func TestRun_KnownSetWiderThanBatch(t *testing.T) {
	c := &mockCaller{fn: func(int, string) (string, error) {
		return `[{"ARXIVID":"p9","RELEVANCE":9,"NOVELTY":9,"COMMENT":"","CRITERION":"1"}]`, nil
	}}
	all := makePapers(10)

	res := newEngine(c).Run(context.Background(), all[:2], all)
	require.Len(t, res.Promoted, 1)
	assert.Equal(t, "p9", res.Promoted[0].ID)
}

func TestRun_VersionlessRecordMatches(t *testing.T) {
	c := &mockCaller{fn: func(int, string) (string, error) {
		return `[{"ARXIVID":"2401.00001","RELEVANCE":9,"NOVELTY":9,"COMMENT":"","CRITERION":"1"}]`, nil
	}}
	res := newEngine(c).Run(context.Background(), []types.Paper{{ID: "2401.00001v2"}}, nil)
	require.Len(t, res.Promoted, 1)
	assert.Equal(t, "2401.00001v2", res.Promoted[0].ID)
}

func TestRun_RetriesMalformedThenSucceeds(t *testing.T) {
	c := &mockCaller{fn: func(call int, p string) (string, error) {
		switch call {
		case 1:
			return "Here are my thoughts on the papers.", nil
		case 2:
			return `[{"ARXIVID":"p1","RELEVANCE":11,"NOVELTY":9}]`, nil
		default:
			return echoScores(nil)(call, p)
		}
	}}

	res := newEngine(c).Run(context.Background(), makePapers(1), nil)

	assert.Len(t, res.Promoted, 1)
	assert.Len(t, c.prompts, 3)
	assert.Contains(t, c.prompts[2], "relevance 11 out of range")
}

func TestRun_BatchDroppedAfterThreeFailures(t *testing.T) {
	c := &mockCaller{fn: func(call int, p string) (string, error) {
		if strings.Contains(p, "ArXiv ID: p1\n") {
			return "I cannot score these.", nil
		}
		return echoScores(nil)(call, p)
	}}

	res := newEngine(c).Run(context.Background(), makePapers(6), nil)

	assert.Equal(t, 1, res.FailedBatches)
	assert.Len(t, res.Promoted, 1, "only the second batch survives")
	assert.Len(t, c.prompts, 4, "three tries for the failed batch, one for the other")
	assert.Nil(t, res.Trace[0])
}

func TestParseRecords(t *testing.T) {
	recs, err := ParseRecords("```json\n[{\"ARXIVID\":\"a\",\"RELEVANCE\":\"7\",\"NOVELTY\":6},{\"ARXIVID\":\"a\",\"RELEVANCE\":1,\"NOVELTY\":1}]\n```")
	require.NoError(t, err)
	require.Len(t, recs, 1, "duplicate ids keep the first record")
	assert.Equal(t, 7, recs[0].Relevance)

	recs, err = ParseRecords("{\"ARXIVID\":\"a\",\"RELEVANCE\":7,\"NOVELTY\":6}\n{\"ARXIVID\":\"b\",\"RELEVANCE\":2,\"NOVELTY\":3}")
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	_, err = ParseRecords(`[{"RELEVANCE":7,"NOVELTY":6}]`)
	assert.Error(t, err)

	_, err = ParseRecords(`[{"ARXIVID":"a","RELEVANCE":7.5,"NOVELTY":6}]`)
	assert.Error(t, err, "fractional judgments are rejected so the call is retried")
}

func TestPaperString(t *testing.T) {
	p := types.Paper{ID: "2401.00001", Title: "Attention", Authors: []string{"Ada", "Bob"}, Abstract: "0123456789"}
	got, err := PaperString(p, 4)
	require.NoError(t, err)
	assert.Equal(t, "ArXiv ID: 2401.00001\nTitle: Attention\nAuthors: Ada and Bob\nAbstract: 0123", got)
}

func TestRenderPrompt(t *testing.T) {
	got, err := renderPrompt(prompt.Set{Base: "BASE", Criteria: "CRIT", Postfix: "POST"}, makePapers(2), 4000)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "BASE\nCRIT\n\nArXiv ID: p1\n"))
	assert.Contains(t, got, "Abstract: abs\n\nArXiv ID: p2\n")
	assert.Contains(t, got, "\nPOST\n")
	assert.Contains(t, got, `"ARXIVID"`)
}
