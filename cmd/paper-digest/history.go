// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-digest/internal/history"
	"github.com/pdiddy/paper-digest/pkg/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past runs or search their selections",
	Long: `History indexes every cached selection snapshot into a SQLite full-text
index and either lists the indexed run dates (newest first) or, with --query,
searches selected paper titles and abstracts across all runs.`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().String("query", "", "full-text search over titles and abstracts")
	historyCmd.Flags().String("date", "", "restrict results to one run date")
	historyCmd.Flags().Int("max-results", 20, "maximum number of results")
	historyCmd.Flags().Bool("json", false, "output results as JSON")
	rootCmd.AddCommand(historyCmd)
}

func historyPath(cfg types.Config) string {
	return filepath.Join(cfg.Output.Dir, "history.db")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	maxResults, _ := cmd.Flags().GetInt("max-results")
	store, err := history.Open(historyPath(cfg), newCache(cfg), maxResults)
	if err != nil {
		return err
	}
	defer store.Close()

	if _, err := store.Ingest(cmd.Context(), os.Stderr); err != nil {
		return err
	}

	query, _ := cmd.Flags().GetString("query")
	date, _ := cmd.Flags().GetString("date")
	asJSON, _ := cmd.Flags().GetBool("json")

	if query == "" && date == "" {
		dates, err := store.Dates(cmd.Context())
		if err != nil {
			return err
		}
		if asJSON {
			return json.NewEncoder(os.Stdout).Encode(dates)
		}
		for _, d := range dates {
			fmt.Fprintf(os.Stdout, "%s  %d papers\n", d.Date, d.Papers)
		}
		return nil
	}

	entries, err := store.Search(cmd.Context(), history.QueryOptions{Query: query, Date: date})
	if err != nil {
		return err
	}
	if asJSON {
		return json.NewEncoder(os.Stdout).Encode(entries)
	}
	for _, e := range entries {
		fmt.Fprintf(os.Stdout, "%s  %5.1f  %-14s %s\n", e.Date, e.Score, e.PaperID, e.Title)
	}
	return nil
}
