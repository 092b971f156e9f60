// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-digest/internal/cache"
	"github.com/pdiddy/paper-digest/internal/history"
	"github.com/pdiddy/paper-digest/internal/pipeline"
	"github.com/pdiddy/paper-digest/internal/qa"
	"github.com/pdiddy/paper-digest/pkg/types"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type fakeExpander struct {
	result types.QAResult
	papers []types.Paper
}

func (f *fakeExpander) Expand(_ context.Context, p types.Paper, _ string) types.QAResult {
	f.papers = append(f.papers, p)
	return f.result
}

func intPtr(n int) *int { return &n }

func newTestServer(t *testing.T) (*Server, *fakeExpander) {
	t.Helper()
	store := cache.New(t.TempDir(), nil)

	set := types.NewSelectionSet()
	set.Add(types.Paper{ID: "2406.00001v2", Title: "Agents", Relevance: intPtr(8), Novelty: intPtr(8), Criterion: "2"}, 16)
	set.Add(types.Paper{ID: "2406.00002", Title: "Retrieval", Relevance: intPtr(7), Novelty: intPtr(7), Criterion: "1"}, 14)
	store.Put(cache.Key("2024-06-01", cache.OutputEntity), set)

	older := types.NewSelectionSet()
	older.Add(types.Paper{ID: "2405.00009", Title: "Old"}, 7)
	store.Put(cache.Key("2024-05-31", cache.OutputEntity), older)

	store.Put(cache.Key("2024-06-01", cache.AuthorsEntity), types.AuthorRecord{
		"Jane Doe": {{AuthorID: "A1", Name: "Jane Doe", HIndex: 30}},
	})

	exp := &fakeExpander{result: types.QAResult{Pairs: []types.QAPair{
		{Question: "What is the problem?", Answer: "Agents **fail**."},
	}}}
	return &Server{
		Cache:         store,
		QA:            exp,
		QAProgress:    qa.NewProgressStore(),
		Tracker:       &pipeline.Tracker{},
		CriteriaOrder: []string{"Retrieval criterion", "Agent criterion"},
	}, exp
}

func get(t *testing.T, s *Server, method, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	s.Router().ServeHTTP(w, req)
	var body map[string]any
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	}
	return w, body
}

func paperIDs(body map[string]any) []string {
	var ids []string
	for _, p := range body["papers"].([]any) {
		ids = append(ids, p.(map[string]any)["arxiv_id"].(string))
	}
	return ids
}

func TestGetPapers_LatestByDefault(t *testing.T) {
	s, _ := newTestServer(t)
	w, body := get(t, s, http.MethodGet, "/api/papers")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2024-06-01", body["date"])
	assert.Equal(t, []string{"2406.00001v2", "2406.00002"}, paperIDs(body))
	assert.Equal(t, []any{"2024-06-01", "2024-05-31"}, body["available_dates"])
}

func TestGetPapers_SortByCriterion(t *testing.T) {
	s, _ := newTestServer(t)
	_, body := get(t, s, http.MethodGet, "/api/papers?date=2024-06-01&sort=criterion")
	assert.Equal(t, []string{"2406.00002", "2406.00001v2"}, paperIDs(body))
}

func TestGetPapers_Errors(t *testing.T) {
	s, _ := newTestServer(t)

	w, body := get(t, s, http.MethodGet, "/api/papers?date=2023-01-01")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, body["error"], "2023-01-01")

	w, _ = get(t, s, http.MethodGet, "/api/papers?date=../../etc")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetQA_VersionInsensitiveLookup(t *testing.T) {
	s, exp := newTestServer(t)
	w, body := get(t, s, http.MethodGet, "/api/qa/2406.00001?date=2024-06-01")

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, exp.papers, 1)
	assert.Equal(t, "2406.00001v2", exp.papers[0].ID)
	assert.Equal(t, "2406.00001v2", body["arxiv_id"])
	answers := body["answers"].([]any)
	require.Len(t, answers, 1)
	assert.Equal(t, "What is the problem?", answers[0].(map[string]any)["question"])
	assert.Contains(t, body["html"], "<strong>fail</strong>")
}

func TestGetQA_NotFound(t *testing.T) {
	s, exp := newTestServer(t)
	w, body := get(t, s, http.MethodGet, "/api/qa/9999.99999")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Paper not found", body["error"])
	assert.Empty(t, exp.papers)
}

func TestGetQA_ErrorShape(t *testing.T) {
	s, exp := newTestServer(t)
	exp.result = types.ErrorResult("Could not retrieve paper text")

	w, body := get(t, s, http.MethodGet, "/api/qa/2406.00002")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"error": "Could not retrieve paper text"}, body)
}

func TestGetQAProgress(t *testing.T) {
	s, _ := newTestServer(t)

	_, body := get(t, s, http.MethodGet, "/api/qa/2406.00001/progress?date=2024-06-01")
	assert.Equal(t, map[string]any{"current": 0.0, "total": 0.0}, body)

	s.QAProgress.Set(qa.Key("2024-06-01", "2406.00001v2"), 2, 5)
	_, body = get(t, s, http.MethodGet, "/api/qa/2406.00001/progress?date=2024-06-01")
	assert.Equal(t, map[string]any{"current": 2.0, "total": 5.0}, body)
}

func TestGetProgress(t *testing.T) {
	s, _ := newTestServer(t)
	require.True(t, s.Tracker.TryStart("fetching papers"))
	s.Tracker.Update(1, 4, "triage")

	_, body := get(t, s, http.MethodGet, "/api/progress")
	assert.Equal(t, map[string]any{"running": true, "current": 1.0, "total": 4.0, "message": "triage"}, body)
}

func TestPostRun(t *testing.T) {
	s, _ := newTestServer(t)

	w, _ := get(t, s, http.MethodPost, "/api/run")
	assert.Equal(t, http.StatusNotImplemented, w.Code)

	var runs atomic.Int32
	done := make(chan struct{})
	s.Run = func(context.Context) error {
		runs.Add(1)
		close(done)
		return nil
	}
	w, _ = get(t, s, http.MethodPost, "/api/run")
	assert.Equal(t, http.StatusAccepted, w.Code)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("run was not started")
	}
	assert.Equal(t, int32(1), runs.Load())

	require.True(t, s.Tracker.TryStart("busy"))
	w, _ = get(t, s, http.MethodPost, "/api/run")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestGetAuthors(t *testing.T) {
	s, _ := newTestServer(t)

	w, body := get(t, s, http.MethodGet, "/api/authors/2024-06-01")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, body, "Jane Doe")

	w, body = get(t, s, http.MethodGet, "/api/authors/2024-01-01")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "No author data found for this date", body["error"])
}

func TestHistoryRoutes_WithoutIndex(t *testing.T) {
	s, _ := newTestServer(t)

	_, body := get(t, s, http.MethodGet, "/api/history")
	dates := body["dates"].([]any)
	require.Len(t, dates, 2)
	assert.Equal(t, "2024-06-01", dates[0].(map[string]any)["date"])

	w, _ := get(t, s, http.MethodGet, "/api/search?q=agents")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHistoryRoutes_WithIndex(t *testing.T) {
	s, _ := newTestServer(t)
	h, err := history.Open(filepath.Join(t.TempDir(), "history.db"), s.Cache, 0)
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	_, err = h.Ingest(context.Background(), nil)
	require.NoError(t, err)
	s.History = h

	_, body := get(t, s, http.MethodGet, "/api/history")
	dates := body["dates"].([]any)
	require.Len(t, dates, 2)
	assert.Equal(t, 2.0, dates[0].(map[string]any)["papers"])

	w, body := get(t, s, http.MethodGet, "/api/search?q=retrieval")
	require.Equal(t, http.StatusOK, w.Code)
	results := body["results"].([]any)
	require.Len(t, results, 1)
	assert.Equal(t, "2406.00002", results[0].(map[string]any)["arxiv_id"])
}

func TestMetrics(t *testing.T) {
	s, _ := newTestServer(t)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
