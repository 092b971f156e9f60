// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package prompt loads the operator-supplied prompt texts that the triage and
// scoring stages interpolate verbatim into their LLM prompts.
package prompt

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/pdiddy/paper-digest/pkg/types"
)

// Set holds the prompt texts. The core treats them as opaque strings.
type Set struct {
	// Base is the instruction preamble.
	Base string

	// Criteria is the user's relevance criteria text.
	Criteria string

	// Postfix is the closing instruction of the scoring prompt.
	Postfix string
}

// Load reads the three prompt files named by cfg. A missing file is a
// configuration error.
func Load(cfg types.PromptConfig) (Set, error) {
	var s Set
	for _, f := range []struct {
		path string
		dst  *string
	}{
		{cfg.BaseFile, &s.Base},
		{cfg.CriteriaFile, &s.Criteria},
		{cfg.PostfixFile, &s.Postfix},
	} {
		data, err := os.ReadFile(f.path)
		if err != nil {
			return Set{}, fmt.Errorf("reading prompt file: %w", err)
		}
		*f.dst = string(data)
	}
	return s, nil
}

// CriteriaOrder returns the non-empty, non-comment lines of the criteria
// text in order. The position of a line is its priority when sorting papers
// by matched criterion.
func CriteriaOrder(criteria string) []string {
	var order []string
	for _, line := range strings.Split(criteria, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		order = append(order, line)
	}
	return order
}

// Truncate returns at most limit bytes of s without splitting a UTF-8
// sequence. A non-positive limit returns s unchanged.
func Truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
