// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package output

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-digest/pkg/types"
)

func intPtr(n int) *int { return &n }

func sampleDigest() Digest {
	set := types.NewSelectionSet()
	set.Add(types.Paper{
		ID: "2406.00001", Title: "Agents <at> Scale", Authors: []string{"Jane Doe", "John Roe"},
		Abstract: "We scale agents.", URL: "https://arxiv.org/abs/2406.00001",
		Comment: "Strong match", Relevance: intPtr(9), Novelty: intPtr(8), Criterion: "1",
	}, 17)
	set.Add(types.Paper{
		ID: "2406.00002", Title: "Matched", Authors: []string{"A"}, URL: "https://arxiv.org/abs/2406.00002",
		Comment: "Author match",
	}, 7)
	return Digest{Date: "2024-06-01", Selection: set}
}

func TestNew(t *testing.T) {
	cfg := types.OutputConfig{Dir: "out", Formats: []types.OutputFormat{"json", "Markdown", "html", "slack"}}
	writers, err := New(cfg, nil, nil)
	require.NoError(t, err)

	var names []string
	for _, w := range writers {
		names = append(names, w.Name())
	}
	assert.Equal(t, []string{"json", "markdown", "html"}, names, "slack without webhook is skipped")

	cfg.SlackWebhook = "https://hooks.example/x"
	writers, err = New(cfg, nil, nil)
	require.NoError(t, err)
	assert.Len(t, writers, 4)

	_, err = New(types.OutputConfig{Formats: []types.OutputFormat{"pdf"}}, nil, nil)
	assert.ErrorContains(t, err, "unknown output format")
}

func TestJSONWriter(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, (&JSONWriter{Dir: dir}).Write(context.Background(), sampleDigest()))

	data, err := os.ReadFile(filepath.Join(dir, "output.json"))
	require.NoError(t, err)
	got := types.NewSelectionSet()
	require.NoError(t, json.Unmarshal(data, got))
	assert.Equal(t, []string{"2406.00001", "2406.00002"}, got.Keys())
}

func TestMarkdownWriter(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, (&MarkdownWriter{Dir: dir}).Write(context.Background(), sampleDigest()))

	data, err := os.ReadFile(filepath.Join(dir, "2024-06-01_output.md"))
	require.NoError(t, err)
	md := string(data)
	assert.True(t, strings.HasPrefix(md, "# Personalized Daily Arxiv Papers 2024-06-01\n\nTotal relevant papers: 2\n"))
	assert.Contains(t, md, "## 0. [Agents <at> Scale](https://arxiv.org/abs/2406.00001)")
	assert.Contains(t, md, "**Relevance:** 9\n**Novelty:** 8")
	assert.Contains(t, md, "**Comment:** Author match")
	assert.Less(t, strings.Index(md, "## 0."), strings.Index(md, "## 1."))
}

func TestHTMLWriter(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, (&HTMLWriter{Dir: dir}).Write(context.Background(), sampleDigest()))

	data, err := os.ReadFile(filepath.Join(dir, "2024-06-01_output.html"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "<h1>Personalized Daily Arxiv Papers 2024-06-01</h1>")
	assert.Contains(t, string(data), `<a href="https://arxiv.org/abs/2406.00002">Matched</a>`)
}

func TestMarkdownToHTML(t *testing.T) {
	html, err := MarkdownToHTML("- **bold** item\n\n```\ncode\n```\n")
	require.NoError(t, err)
	assert.Contains(t, html, "<strong>bold</strong>")
	assert.Contains(t, html, "<pre><code>code\n</code></pre>")
}

func TestSlackWriter(t *testing.T) {
	var got slackMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	w := &SlackWriter{WebhookURL: srv.URL, Client: srv.Client()}
	require.NoError(t, w.Write(context.Background(), sampleDigest()))

	assert.Equal(t, "Arxiv update 2024-06-01: 2 relevant papers", got.Text)
	require.Len(t, got.Blocks, 5)
	assert.Contains(t, got.Blocks[2].Text.Text, "*<https://arxiv.org/abs/2406.00001|Agents &lt;at&gt; Scale>*")
	assert.Contains(t, got.Blocks[2].Text.Text, "*Relevance*: 9  *Novelty*: 8")
}

func TestSlackWriter_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid_token", http.StatusForbidden)
	}))
	defer srv.Close()

	err := (&SlackWriter{WebhookURL: srv.URL, Client: srv.Client()}).Write(context.Background(), sampleDigest())
	assert.ErrorContains(t, err, "HTTP 403")
}

func TestBuildSlackMessage_BlockLimit(t *testing.T) {
	set := types.NewSelectionSet()
	for i := 0; i < 40; i++ {
		set.Add(types.Paper{ID: fmt.Sprint(i), Title: "T"}, 1)
	}
	msg := buildSlackMessage(Digest{Date: "d", Selection: set})
	assert.LessOrEqual(t, len(msg.Blocks), slackBlockLimit)
}

// failingWriter always errors.
type failingWriter struct{ calls int }

func (f *failingWriter) Name() string { return "failing" }

func (f *failingWriter) Write(context.Context, Digest) error {
	f.calls++
	return errors.New("disk full")
}

func TestWriteAll_IsolatesFailures(t *testing.T) {
	dir := t.TempDir()
	bad := &failingWriter{}
	failed := WriteAll(context.Background(), []Writer{bad, &JSONWriter{Dir: dir}}, sampleDigest(), nil)

	assert.Equal(t, 1, failed)
	assert.Equal(t, 1, bad.calls)
	assert.FileExists(t, filepath.Join(dir, "output.json"))
}
