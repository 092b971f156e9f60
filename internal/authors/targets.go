// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package authors resolves free-text author names to canonical identity
// records and selects papers written by operator-curated target authors.
package authors

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
)

// TargetSet is the operator-curated set of high-value identity ids, mapped
// to the display name given in the list file.
type TargetSet map[string]string

// Has reports whether id is a target identity.
func (t TargetSet) Has(id string) bool {
	_, ok := t[id]
	return ok
}

// IDs returns the target ids in lexical order.
func (t TargetSet) IDs() []string {
	ids := make([]string, 0, len(t))
	for id := range t {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ParseTargets reads a two-column list of "display name, identity id" lines.
// Lines starting with # and blank lines are ignored. A line without a
// second column is skipped with a warning.
func ParseTargets(r io.Reader) (TargetSet, error) {
	targets := make(TargetSet)
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if strings.HasPrefix(line, "#") || strings.TrimSpace(line) == "" {
			continue
		}
		name, id, ok := strings.Cut(line, ",")
		id = strings.TrimSpace(id)
		if !ok || id == "" {
			slog.Warn("skipping author line without identity id", "line", lineNo)
			continue
		}
		if extra := strings.Index(id, ","); extra >= 0 {
			id = strings.TrimSpace(id[:extra])
		}
		targets[id] = strings.TrimSpace(name)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading author list: %w", err)
	}
	return targets, nil
}

// LoadTargets parses the author list at path.
func LoadTargets(path string) (TargetSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening author list: %w", err)
	}
	defer f.Close()
	return ParseTargets(f)
}
