// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package authors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-digest/internal/httputil"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// fakeResolver answers from a fixed table and counts lookups.
type fakeResolver struct {
	table map[string][]types.AuthorAlias
	fail  map[string]bool
	calls []string
}

func (f *fakeResolver) Name() string { return "fake" }

func (f *fakeResolver) Lookup(_ context.Context, name string) ([]types.AuthorAlias, error) {
	f.calls = append(f.calls, name)
	if f.fail[name] {
		return nil, errors.New("HTTP 500")
	}
	return f.table[name], nil
}

// --- targets ---

func TestParseTargets(t *testing.T) {
	input := `# target authors
Jane Doe, A100

John Roe,A200
# Commented Out, A300
No Id Here
Trailing Comma,
Extra Columns, A400, ignored
`
	targets, err := ParseTargets(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, TargetSet{"A100": "Jane Doe", "A200": "John Roe", "A400": "Extra Columns"}, targets)
	assert.True(t, targets.Has("A100"))
	assert.False(t, targets.Has("A300"))
	assert.Equal(t, []string{"A100", "A200", "A400"}, targets.IDs())
}

func TestLoadTargets_MissingFile(t *testing.T) {
	_, err := LoadTargets(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}

// --- FilterByAuthor ---

func TestFilterByAuthor_SelectsTargetAuthor(t *testing.T) {
	targets := TargetSet{"A100": "Jane Doe"}
	record := types.AuthorRecord{
		"Jane Doe": {{AuthorID: "A999", HIndex: 2}, {AuthorID: "A100", HIndex: 40}},
		"Bob":      {{AuthorID: "B1", HIndex: 50}},
	}
	papers := []types.Paper{
		{ID: "P1", Authors: []string{"Bob", "Jane Doe"}},
		{ID: "P2", Authors: []string{"Bob"}},
		{ID: "P3", Authors: []string{"Unresolved Person"}},
	}

	matched, rest := FilterByAuthor(papers, record, targets, 7.0)

	require.Len(t, matched, 1)
	assert.Equal(t, "P1", matched[0].ID)
	assert.Equal(t, MatchComment, matched[0].Comment)
	assert.Equal(t, 7.0, matched[0].Score)
	assert.Equal(t, []string{"P2", "P3"}, []string{rest[0].ID, rest[1].ID})
}

func TestFilterByAuthor_NoTargets(t *testing.T) {
	papers := []types.Paper{{ID: "P1", Authors: []string{"Jane Doe"}}}
	matched, rest := FilterByAuthor(papers, types.AuthorRecord{"Jane Doe": {{AuthorID: "A100"}}}, TargetSet{}, 7)
	assert.Empty(t, matched)
	assert.Len(t, rest, 1)
}

// --- ResolveAll ---

func TestResolveAll_SkipsFailuresAndUnknowns(t *testing.T) {
	r := &fakeResolver{
		table: map[string][]types.AuthorAlias{"Jane Doe": {{AuthorID: "A100", Name: "Jane Doe", HIndex: 12}}},
		fail:  map[string]bool{"Broken": true},
	}
	var progress strings.Builder

	rec := ResolveAll(context.Background(), r, []string{"Jane Doe", "Broken", "Nobody"}, Options{Progress: &progress})

	assert.Equal(t, types.AuthorRecord{"Jane Doe": {{AuthorID: "A100", Name: "Jane Doe", HIndex: 12}}}, rec)
	assert.Equal(t, []string{"Jane Doe", "Broken", "Nobody"}, r.calls)
	assert.Contains(t, progress.String(), "failed  Broken")
	assert.Contains(t, progress.String(), "unknown Nobody")
}

func TestResolveAll_ThrottlesBetweenLookups(t *testing.T) {
	r := &fakeResolver{}
	start := time.Now()
	ResolveAll(context.Background(), r, []string{"a", "b", "c"}, Options{Delay: 20 * time.Millisecond})
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestResolveAll_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := &fakeResolver{}
	rec := ResolveAll(ctx, r, []string{"a", "b"}, Options{})
	assert.Empty(t, rec)
	assert.Empty(t, r.calls)
}

func TestThrottleDelay(t *testing.T) {
	cfg := types.DefaultConfig().Authors
	assert.Equal(t, 20*time.Millisecond, ThrottleDelay(cfg, true))
	assert.Equal(t, time.Second, ThrottleDelay(cfg, false))
}

// --- Semantic Scholar ---

func TestSemanticScholarResolver_RequestAndParse(t *testing.T) {
	var captured *http.Request
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r
		fmt.Fprint(w, `{"total":2,"data":[{"authorId":"A100","name":"Jane Doe","hIndex":31},{"authorId":"A101","name":"J. Doe","hIndex":null}]}`)
	}))
	defer ts.Close()

	old := semanticAuthorSearchBase
	semanticAuthorSearchBase = ts.URL
	defer func() { semanticAuthorSearchBase = old }()

	r := &SemanticScholarResolver{Client: ts.Client(), APIKey: "s2key", Limit: 10}
	aliases, err := r.Lookup(context.Background(), "Jane Doe")
	require.NoError(t, err)

	q := captured.URL.Query()
	assert.Equal(t, "Jane Doe", q.Get("query"))
	assert.Equal(t, "authorId,name,hIndex", q.Get("fields"))
	assert.Equal(t, "10", q.Get("limit"))
	assert.Equal(t, "s2key", captured.Header.Get("X-API-KEY"))

	require.Len(t, aliases, 2)
	assert.Equal(t, types.AuthorAlias{AuthorID: "A100", Name: "Jane Doe", HIndex: 31}, aliases[0])
	assert.Equal(t, 0, aliases[1].HIndex)
}

func TestSemanticScholarResolver_RetriesThenFails(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	old := semanticAuthorSearchBase
	semanticAuthorSearchBase = ts.URL
	defer func() { semanticAuthorSearchBase = old }()

	r := &SemanticScholarResolver{Client: ts.Client(), Retry: httputil.FixedPolicy{Attempts: 3, Delay: time.Millisecond}}
	_, err := r.Lookup(context.Background(), "Jane Doe")
	require.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestSemanticScholarResolver_NoKeyNoHeader(t *testing.T) {
	var header string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Get("X-API-KEY")
		fmt.Fprint(w, `{"total":0,"data":[]}`)
	}))
	defer ts.Close()

	old := semanticAuthorSearchBase
	semanticAuthorSearchBase = ts.URL
	defer func() { semanticAuthorSearchBase = old }()

	aliases, err := (&SemanticScholarResolver{Client: ts.Client()}).Lookup(context.Background(), "Nobody")
	require.NoError(t, err)
	assert.Empty(t, aliases)
	assert.Empty(t, header)
}

// --- OpenAlex ---

func TestOpenAlexResolver(t *testing.T) {
	var captured *http.Request
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r
		fmt.Fprint(w, `{"results":[
			{"id":"https://openalex.org/A5023888391","display_name":"Jane Doe","summary_stats":{"h_index":44}},
			{"id":"https://openalex.org/A2","display_name":"Jane D.","summary_stats":{"h_index":3}},
			{"id":"https://openalex.org/A3","display_name":"J Doe","summary_stats":{"h_index":1}}
		]}`)
	}))
	defer ts.Close()

	old := openAlexAuthorsBase
	openAlexAuthorsBase = ts.URL
	defer func() { openAlexAuthorsBase = old }()

	r := &OpenAlexResolver{Client: ts.Client(), Email: "me@example.org", Limit: 2}
	aliases, err := r.Lookup(context.Background(), "Jane Doe")
	require.NoError(t, err)

	assert.Equal(t, "Jane Doe", captured.URL.Query().Get("search"))
	assert.Equal(t, "me@example.org", captured.URL.Query().Get("mailto"))
	require.Len(t, aliases, 2)
	assert.Equal(t, types.AuthorAlias{AuthorID: "A5023888391", Name: "Jane Doe", HIndex: 44}, aliases[0])
}

// --- snapshots and Registry ---

func TestSnapshotRoundTrip(t *testing.T) {
	rec := types.AuthorRecord{"Jane Doe": {{AuthorID: "A100", Name: "Jane Doe", HIndex: 31}}}
	for _, name := range []string{"authors.json", "authors.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			require.NoError(t, SaveSnapshot(path, rec))
			got, err := LoadSnapshot(path)
			require.NoError(t, err)
			assert.Equal(t, rec, got)
		})
	}
}

func TestRegistry_ReplaysSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authors.json")
	rec := types.AuthorRecord{"Jane Doe": {{AuthorID: "A100"}}, "John Roe": {{AuthorID: "A200"}}}
	require.NoError(t, SaveSnapshot(path, rec))

	r := &fakeResolver{}
	g := &Registry{Resolver: r, SnapshotFile: path}
	got := g.Resolve(context.Background(), []string{"Jane Doe"})

	assert.Equal(t, types.AuthorRecord{"Jane Doe": {{AuthorID: "A100"}}}, got)
	assert.Empty(t, r.calls, "replay makes no lookups")
}

func TestRegistry_LooksUpNamesMissingFromSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authors.json")
	require.NoError(t, SaveSnapshot(path, types.AuthorRecord{"Day One Author": {{AuthorID: "X1", HIndex: 5}}}))

	r := &fakeResolver{table: map[string][]types.AuthorAlias{"Jane Doe": {{AuthorID: "A100", HIndex: 31}}}}
	g := &Registry{Resolver: r, SnapshotFile: path}
	got := g.Resolve(context.Background(), []string{"Day One Author", "Jane Doe"})

	assert.Equal(t, []string{"Jane Doe"}, r.calls)
	assert.Equal(t, 31, got.MaxHIndex("Jane Doe"))
	assert.Equal(t, 5, got.MaxHIndex("Day One Author"))

	targets := TargetSet{"A100": "Jane Doe"}
	matched, _ := FilterByAuthor([]types.Paper{{ID: "p1", Authors: []string{"Jane Doe"}}}, got, targets, 7)
	assert.Len(t, matched, 1)

	saved, err := LoadSnapshot(path)
	require.NoError(t, err)
	assert.Len(t, saved, 2, "live results are merged into the snapshot")

	r.calls = nil
	g.Resolve(context.Background(), []string{"Jane Doe"})
	assert.Empty(t, r.calls, "merged names replay on the next run")
}

func TestRegistry_WritesSnapshotAfterLiveLookup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authors.json")
	r := &fakeResolver{table: map[string][]types.AuthorAlias{"Jane Doe": {{AuthorID: "A100"}}}}
	g := &Registry{Resolver: r, SnapshotFile: path}

	got := g.Resolve(context.Background(), []string{"Jane Doe"})
	assert.Len(t, got, 1)

	saved, err := LoadSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, got, saved)
}
