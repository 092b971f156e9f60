// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-digest/internal/authors"
)

var authorsCmd = &cobra.Command{
	Use:   "authors",
	Short: "Inspect the followed-author list and identity lookups",
}

var authorsParseCmd = &cobra.Command{
	Use:   "parse <file>",
	Short: "Print the identity ids parsed from an author list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		targets, err := authors.LoadTargets(args[0])
		if err != nil {
			return err
		}
		for _, id := range targets.IDs() {
			fmt.Fprintf(os.Stdout, "%s\t%s\n", id, targets[id])
		}
		fmt.Fprintf(os.Stderr, "%d identities\n", len(targets))
		return nil
	},
}

var authorsLookupCmd = &cobra.Command{
	Use:   "lookup <name>...",
	Short: "Resolve author names to identities with their h-index",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		resolver, err := newResolver(cfg, httpClient(cfg))
		if err != nil {
			return err
		}
		record := authors.ResolveAll(cmd.Context(), resolver, args, authors.Options{
			Delay:    authors.ThrottleDelay(cfg.Authors, cfg.Authors.APIKey != ""),
			Logger:   logger,
			Progress: os.Stderr,
		})
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(record)
	},
}

func init() {
	authorsCmd.AddCommand(authorsParseCmd, authorsLookupCmd)
	rootCmd.AddCommand(authorsCmd)
}
