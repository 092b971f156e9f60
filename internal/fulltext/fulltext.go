// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fulltext retrieves the text of a paper for the Q&A expander. It
// tries the arXiv HTML rendition first, then downloads the PDF and converts
// it to markdown. Callers fall back to the abstract when both fail.
package fulltext

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pdiddy/paper-digest/internal/convert"
	"github.com/pdiddy/paper-digest/internal/httputil"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// arXiv endpoints. Declared as vars so tests can substitute httptest servers.
var (
	arxivHTMLBase = "https://arxiv.org/html/"
	arxivPDFBase  = "https://arxiv.org/pdf/"
)

// minHTMLChars is the shortest HTML rendition accepted as full text. Shorter
// pages are error or placeholder pages.
const minHTMLChars = 500

// Fetcher retrieves full text. Converter and PapersDir are optional; without
// them only the HTML rendition is tried.
type Fetcher struct {
	Client    *http.Client
	UserAgent string

	// Converter turns downloaded PDFs into markdown.
	Converter convert.Converter

	// PapersDir holds raw/ PDFs and markdown/ conversions.
	PapersDir string

	Logger *slog.Logger

	once sync.Once
	html *htmlConverter
}

// FullText returns the paper text as markdown.
func (f *Fetcher) FullText(ctx context.Context, paper types.Paper) (string, error) {
	log := f.Logger
	if log == nil {
		log = slog.Default()
	}

	text, htmlErr := f.fromHTML(ctx, paper.ID)
	if htmlErr == nil {
		log.Debug("full text from HTML rendition", "paper_id", paper.ID, "chars", len(text))
		return text, nil
	}
	log.Debug("HTML rendition unavailable", "paper_id", paper.ID, "err", htmlErr)

	if f.Converter == nil || f.PapersDir == "" {
		return "", htmlErr
	}
	text, pdfErr := f.fromPDF(ctx, paper.ID)
	if pdfErr != nil {
		return "", errors.Join(htmlErr, pdfErr)
	}
	log.Debug("full text from PDF", "paper_id", paper.ID, "chars", len(text))
	return text, nil
}

func (f *Fetcher) fromHTML(ctx context.Context, id string) (string, error) {
	req, err := f.newRequest(ctx, arxivHTMLBase+id, "text/html")
	if err != nil {
		return "", err
	}
	page, err := httputil.GetBody(ctx, f.client(), req, httputil.FixedPolicy{Attempts: 1})
	if err != nil {
		return "", fmt.Errorf("fetching HTML rendition: %w", err)
	}
	f.once.Do(func() { f.html = newHTMLConverter() })
	title, body, err := f.html.Convert(page)
	if err != nil {
		return "", fmt.Errorf("converting HTML rendition: %w", err)
	}
	if len(body) < minHTMLChars {
		return "", fmt.Errorf("HTML rendition too short (%d chars)", len(body))
	}
	if title != "" && !strings.HasPrefix(body, "# ") {
		body = "# " + title + "\n\n" + body
	}
	return body, nil
}

func (f *Fetcher) fromPDF(ctx context.Context, id string) (string, error) {
	name := strings.ReplaceAll(id, "/", "_")
	rawDir := filepath.Join(f.PapersDir, "raw")
	pdfPath := filepath.Join(rawDir, name+".pdf")

	if _, err := os.Stat(pdfPath); err != nil {
		if err := os.MkdirAll(rawDir, 0o755); err != nil {
			return "", fmt.Errorf("creating PDF directory: %w", err)
		}
		if err := f.download(ctx, arxivPDFBase+id, pdfPath); err != nil {
			return "", err
		}
	}
	return convert.File(ctx, f.Converter, id, pdfPath, filepath.Join(f.PapersDir, "markdown"))
}

// download fetches url to destPath through a temporary file so a partial
// download never appears under the final name.
func (f *Fetcher) download(ctx context.Context, url, destPath string) error {
	req, err := f.newRequest(ctx, url, "application/pdf")
	if err != nil {
		return err
	}
	resp, err := httputil.DoWithRetry(ctx, f.client(), req, 3)
	if err != nil {
		return fmt.Errorf("downloading PDF: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".download-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, copyErr := io.Copy(tmpFile, resp.Body)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing download: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

func (f *Fetcher) newRequest(ctx context.Context, url, accept string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}
	req.Header.Set("Accept", accept)
	return req, nil
}

func (f *Fetcher) client() *http.Client {
	if f.Client == nil {
		return http.DefaultClient
	}
	return f.Client
}
