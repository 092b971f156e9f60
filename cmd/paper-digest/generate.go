// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/paper-digest/internal/cache"
	"github.com/pdiddy/paper-digest/internal/feed"
	"github.com/pdiddy/paper-digest/internal/pipeline"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Run the selection pipeline once",
	Long: `Generate fetches the day's papers, selects those by followed authors,
filters the rest by author h-index, triages and scores them with the
configured LLM, and writes the ranked selection in every configured output
format. The result is also cached under the run date.`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().String("papers", "", "read papers from a JSON file instead of the arXiv feed")
	generateCmd.Flags().String("authors", "", "author snapshot file to replay or write")
	generateCmd.Flags().StringSlice("output-format", nil, "output formats: json, markdown, html, slack")
	generateCmd.Flags().String("date", "", "run date (YYYY-MM-DD, default today)")

	viper.BindPFlag("authors.snapshot_file", generateCmd.Flags().Lookup("authors"))
	viper.BindPFlag("output.formats", generateCmd.Flags().Lookup("output-format"))

	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	date, _ := cmd.Flags().GetString("date")
	if date != "" {
		if _, err := time.Parse(cache.DateLayout, date); err != nil {
			return fmt.Errorf("invalid --date %q: %w", date, err)
		}
	}

	p, err := newPipeline(cfg, &pipeline.Tracker{})
	if err != nil {
		return err
	}
	if path, _ := cmd.Flags().GetString("papers"); path != "" {
		papers, err := feed.LoadPapersJSON(path)
		if err != nil {
			return err
		}
		p.Papers = papers
	}

	rep, err := p.Run(cmd.Context(), date)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "%s: %d fetched, %d by followed authors, %d after h-index, %d after triage, %d promoted, %d selected\n",
		rep.Date, rep.Fetched, rep.AuthorMatched, rep.ImpactKept, rep.Triaged, rep.Promoted, rep.Selection.Len())
	if rep.FailedWriters > 0 {
		return fmt.Errorf("%d output writer(s) failed", rep.FailedWriters)
	}
	return nil
}
