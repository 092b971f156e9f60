// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert turns downloaded PDFs into markdown text through a
// pluggable Converter, keeping a markdown copy next to the PDF so each file
// is converted once.
package convert

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdiddy/paper-digest/internal/container"
)

// ImageMarkitdown is the container image that performs the conversion.
const ImageMarkitdown = "markitdown:latest"

// Converter transforms a PDF file into markdown text.
type Converter interface {
	Convert(ctx context.Context, pdfPath string) (string, error)
}

// MarkitdownConverter converts PDFs by piping them through the markitdown
// container image.
type MarkitdownConverter struct {
	runtime container.Runtime
}

// NewMarkitdownConverter verifies that the markitdown image exists in rt and
// returns a converter that uses it.
func NewMarkitdownConverter(ctx context.Context, rt container.Runtime) (*MarkitdownConverter, error) {
	if err := rt.ImageExists(ctx, ImageMarkitdown); err != nil {
		return nil, fmt.Errorf("markitdown image not available in %s: %w", rt.Name(), err)
	}
	return &MarkitdownConverter{runtime: rt}, nil
}

// Convert pipes the PDF at pdfPath through the container and returns the
// markdown it prints.
func (m *MarkitdownConverter) Convert(ctx context.Context, pdfPath string) (string, error) {
	f, err := os.Open(pdfPath)
	if err != nil {
		return "", fmt.Errorf("opening PDF %s: %w", pdfPath, err)
	}
	defer f.Close()

	var out bytes.Buffer
	if err := m.runtime.Run(ctx, ImageMarkitdown, f, &out); err != nil {
		return "", fmt.Errorf("converting %s with markitdown: %w", pdfPath, err)
	}
	if strings.TrimSpace(out.String()) == "" {
		return "", fmt.Errorf("markitdown produced empty output for %s", pdfPath)
	}
	return out.String(), nil
}

// File converts pdfPath and stores the markdown as {name}.md in mdDir. When
// that file already exists its body is returned without converting again.
func File(ctx context.Context, c Converter, paperID, pdfPath, mdDir string) (string, error) {
	base := strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath))
	mdPath := filepath.Join(mdDir, base+".md")

	if data, err := os.ReadFile(mdPath); err == nil {
		return stripFrontmatter(string(data)), nil
	}

	body, err := c.Convert(ctx, pdfPath)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(mdDir, 0o755); err != nil {
		return body, fmt.Errorf("creating markdown directory: %w", err)
	}
	if err := os.WriteFile(mdPath, []byte(addFrontmatter(paperID, pdfPath, body)), 0o644); err != nil {
		return body, fmt.Errorf("writing %s: %w", mdPath, err)
	}
	return body, nil
}

// addFrontmatter prepends YAML frontmatter to the converted markdown.
func addFrontmatter(paperID, pdfPath, body string) string {
	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "paper_id: %q\n", paperID)
	fmt.Fprintf(&b, "source_pdf: %q\n", pdfPath)
	fmt.Fprintf(&b, "converted_at: %q\n", time.Now().UTC().Format(time.RFC3339))
	b.WriteString("---\n\n")
	b.WriteString(body)
	return b.String()
}

// stripFrontmatter removes a leading frontmatter block written by addFrontmatter.
func stripFrontmatter(s string) string {
	rest, ok := strings.CutPrefix(s, "---\n")
	if !ok {
		return s
	}
	_, body, ok := strings.Cut(rest, "\n---\n")
	if !ok {
		return s
	}
	return strings.TrimPrefix(body, "\n")
}
