// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-digest/internal/cache"
	"github.com/pdiddy/paper-digest/internal/qa"
	"github.com/pdiddy/paper-digest/pkg/types"
)

var qaCmd = &cobra.Command{
	Use:   "qa <arxiv-id>",
	Short: "Answer the configured questions about a selected paper",
	Long: `QA looks the paper up in the cached selection for the date (comparing ids
without version suffixes), answers every configured question against its full
text, and writes the answers as markdown to {output.dir}/papers/{id}.md.
Answers are cached; a second run for the same paper and date is free.`,
	Args: cobra.ExactArgs(1),
	RunE: runQA,
}

func init() {
	qaCmd.Flags().String("date", "", "selection date (YYYY-MM-DD, default latest)")
	rootCmd.AddCommand(qaCmd)
}

func runQA(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store := newCache(cfg)

	date, _ := cmd.Flags().GetString("date")
	if date == "" {
		latest, ok := store.Latest(cache.OutputEntity)
		if !ok {
			return fmt.Errorf("no cached selection found in %s", cfg.Output.CacheDir)
		}
		date = latest
	}
	paper, err := qa.Lookup(store, date, args[0])
	if err != nil {
		return err
	}

	exp, err := newExpander(cmd.Context(), cfg, store, qa.NewProgressStore())
	if err != nil {
		return err
	}
	result := exp.Expand(cmd.Context(), paper, date)
	if result.IsError() {
		return fmt.Errorf("qa for %s: %s", paper.ID, result.Error)
	}

	path := filepath.Join(cfg.Output.Dir, "papers", types.BaseID(paper.ID)+".md")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating papers directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(qa.RenderMarkdown(paper, result)), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	failed := 0
	for _, p := range result.Pairs {
		if strings.HasPrefix(p.Answer, qa.ErrorAnswerPrefix) {
			failed++
		}
	}
	fmt.Fprintf(os.Stdout, "wrote %s (%d answers, %d failed)\n", path, len(result.Pairs), failed)
	return nil
}
