// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the paper-digest CLI.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/paper-digest/internal/secrets"
	"github.com/pdiddy/paper-digest/internal/telemetry"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// secretsDir holds one file per credential.
const secretsDir = ".secrets/"

var (
	// creds resolves API keys loaded at startup.
	creds *secrets.Store

	// logger is configured from --debug before any command runs.
	logger = slog.Default()

	// shutdownTracing flushes the tracer provider on exit.
	shutdownTracing = func(context.Context) error { return nil }
)

// rootCmd is the base command for the paper-digest CLI.
var rootCmd = &cobra.Command{
	Use:   "paper-digest",
	Short: "Daily personalised arXiv paper selection",
	Long: `paper-digest selects the day's most relevant arXiv papers for a reader.
Papers by followed authors are selected directly; the rest pass an author
h-index filter, a coarse LLM triage and a structured LLM scoring stage before
being ranked. Selected papers can be expanded with on-demand Q&A.

The generate command runs the pipeline once; serve exposes the results over a
JSON API and can run the pipeline on a schedule.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.NewStore(secretsDir)
		if err != nil {
			return err
		}
		creds = s

		level := slog.LevelInfo
		if viper.GetBool("output.debug") {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)

		shutdown, err := telemetry.Setup(cmd.Context(), viper.GetString("telemetry.otlp_endpoint"))
		if err != nil {
			logger.Warn("tracing disabled", "err", err)
			return nil
		}
		shutdownTracing = shutdown
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return shutdownTracing(context.Background())
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./paper-digest.yaml or ~/.config/paper-digest/config.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	viper.BindPFlag("output.debug", rootCmd.PersistentFlags().Lookup("debug"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("paper-digest")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "paper-digest"))
		}
	}

	viper.SetEnvPrefix("PAPER_DIGEST")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults(types.DefaultConfig())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setDefaults registers every field of cfg as a viper default so that
// environment overrides reach Unmarshal.
func setDefaults(cfg types.Config) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return
	}
	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil {
		return
	}
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, v := range m {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			if sub, ok := v.(map[string]any); ok {
				walk(key, sub)
				continue
			}
			viper.SetDefault(key, v)
		}
	}
	walk("", tree)
}

// loadConfig decodes the merged configuration and fills credentials from
// the secrets store.
func loadConfig() (types.Config, error) {
	cfg := types.DefaultConfig()
	if err := viper.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("parsing configuration: %w", err)
	}
	if creds != nil {
		if cfg.AI.APIKey == "" {
			key := secrets.AnthropicAPIKey
			if cfg.AI.Provider == types.ProviderOpenAI {
				key = secrets.OpenAIAPIKey
			}
			cfg.AI.APIKey = creds.Resolve(key)
		}
		if cfg.Authors.APIKey == "" {
			cfg.Authors.APIKey = creds.Resolve(secrets.SemanticScholarAPIKey)
		}
		if cfg.Output.SlackWebhook == "" {
			cfg.Output.SlackWebhook = creds.Resolve(secrets.SlackWebhookURL)
		}
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
