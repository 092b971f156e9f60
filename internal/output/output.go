// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package output writes a ranked selection in the configured formats: a
// JSON file, a dated markdown digest, an HTML rendering of that digest and
// a Slack incoming-webhook message.
package output

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/pdiddy/paper-digest/pkg/types"
)

// Digest is one run's ranked selection.
type Digest struct {
	Date      string
	Selection *types.SelectionSet
}

// Writer persists or publishes a digest.
type Writer interface {
	Name() string
	Write(ctx context.Context, d Digest) error
}

// New returns a writer per format. An unknown format is an error; the slack
// format without a webhook is skipped with a warning.
func New(cfg types.OutputConfig, client *http.Client, log *slog.Logger) ([]Writer, error) {
	if log == nil {
		log = slog.Default()
	}
	var writers []Writer
	for _, f := range cfg.Formats {
		switch types.OutputFormat(strings.ToLower(strings.TrimSpace(string(f)))) {
		case types.OutputJSON:
			writers = append(writers, &JSONWriter{Dir: cfg.Dir})
		case types.OutputMarkdown:
			writers = append(writers, &MarkdownWriter{Dir: cfg.Dir})
		case types.OutputHTML:
			writers = append(writers, &HTMLWriter{Dir: cfg.Dir})
		case types.OutputSlack:
			if cfg.SlackWebhook == "" {
				log.Warn("slack output requested but no webhook is configured, not pushing to slack")
				continue
			}
			writers = append(writers, &SlackWriter{WebhookURL: cfg.SlackWebhook, Client: client})
		default:
			return nil, fmt.Errorf("unknown output format %q", f)
		}
	}
	return writers, nil
}

// WriteAll runs every writer. A failing writer is logged and the others
// still run. It returns the number of writers that failed.
func WriteAll(ctx context.Context, writers []Writer, d Digest, log *slog.Logger) int {
	if log == nil {
		log = slog.Default()
	}
	failed := 0
	for _, w := range writers {
		if err := w.Write(ctx, d); err != nil {
			failed++
			log.Warn("output writer failed", "writer", w.Name(), "err", err)
			continue
		}
		log.Debug("output written", "writer", w.Name(), "date", d.Date)
	}
	return failed
}

// JSONWriter writes output.json, the ordered id -> paper mapping.
type JSONWriter struct {
	Dir string
}

func (w *JSONWriter) Name() string { return "json" }

func (w *JSONWriter) Write(_ context.Context, d Digest) error {
	data, err := json.MarshalIndent(d.Selection, "", "    ")
	if err != nil {
		return fmt.Errorf("encoding selection: %w", err)
	}
	return writeFile(filepath.Join(w.Dir, "output.json"), data)
}

// MarkdownWriter writes {date}_output.md.
type MarkdownWriter struct {
	Dir string
}

func (w *MarkdownWriter) Name() string { return "markdown" }

func (w *MarkdownWriter) Write(_ context.Context, d Digest) error {
	return writeFile(filepath.Join(w.Dir, d.Date+"_output.md"), []byte(RenderMarkdown(d)))
}

// HTMLWriter writes {date}_output.html, the markdown digest rendered to HTML.
type HTMLWriter struct {
	Dir string
}

func (w *HTMLWriter) Name() string { return "html" }

func (w *HTMLWriter) Write(_ context.Context, d Digest) error {
	body, err := MarkdownToHTML(RenderMarkdown(d))
	if err != nil {
		return err
	}
	page := "<!doctype html><html><head><meta charset=\"utf-8\"><title>Paper digest " + d.Date +
		"</title></head><body>\n" + body + "</body></html>\n"
	return writeFile(filepath.Join(w.Dir, d.Date+"_output.html"), []byte(page))
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// MarkdownToHTML renders GitHub-flavoured markdown.
func MarkdownToHTML(src string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("markdown convert: %w", err)
	}
	return buf.String(), nil
}

// RenderMarkdown formats the digest: a header with the paper count, a linked
// table of contents, then one section per paper in ranked order.
func RenderMarkdown(d Digest) string {
	papers := d.Selection.Papers()
	var b strings.Builder
	fmt.Fprintf(&b, "# Personalized Daily Arxiv Papers %s\n\n", d.Date)
	fmt.Fprintf(&b, "Total relevant papers: %d\n\n", len(papers))

	b.WriteString("Table of contents with paper titles:\n\n")
	for i, p := range papers {
		fmt.Fprintf(&b, "%d. [%s](#link%d)\n", i, p.Title, i)
		fmt.Fprintf(&b, "**Authors:** %s\n\n", strings.Join(p.Authors, ", "))
	}
	b.WriteString("---\n\n")

	for i, p := range papers {
		fmt.Fprintf(&b, "## %d. [%s](%s) <a id=\"link%d\"></a>\n\n", i, p.Title, p.URL, i)
		fmt.Fprintf(&b, "**ArXiv ID:** %s\n\n", p.ID)
		fmt.Fprintf(&b, "**Authors:** %s\n\n", strings.Join(p.Authors, ", "))
		fmt.Fprintf(&b, "**Abstract:** %s\n\n", p.Abstract)
		if p.Comment != "" {
			fmt.Fprintf(&b, "**Comment:** %s\n\n", p.Comment)
		}
		if p.Relevance != nil && p.Novelty != nil {
			fmt.Fprintf(&b, "**Relevance:** %d\n**Novelty:** %d\n\n", *p.Relevance, *p.Novelty)
		}
		if p.Criterion != "" {
			fmt.Fprintf(&b, "**Criterion:** %s\n\n", p.Criterion)
		}
		b.WriteString("---\n\n")
	}
	return b.String()
}

// writeFile writes data through a temp file and rename.
func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".output-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming %s: %w", path, err)
	}
	return nil
}
