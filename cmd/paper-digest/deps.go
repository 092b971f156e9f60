// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/pdiddy/paper-digest/internal/authors"
	"github.com/pdiddy/paper-digest/internal/cache"
	"github.com/pdiddy/paper-digest/internal/container"
	"github.com/pdiddy/paper-digest/internal/convert"
	"github.com/pdiddy/paper-digest/internal/feed"
	"github.com/pdiddy/paper-digest/internal/fulltext"
	"github.com/pdiddy/paper-digest/internal/httputil"
	"github.com/pdiddy/paper-digest/internal/llm"
	"github.com/pdiddy/paper-digest/internal/output"
	"github.com/pdiddy/paper-digest/internal/pipeline"
	"github.com/pdiddy/paper-digest/internal/prompt"
	"github.com/pdiddy/paper-digest/internal/qa"
	"github.com/pdiddy/paper-digest/internal/scoring"
	"github.com/pdiddy/paper-digest/internal/secrets"
	"github.com/pdiddy/paper-digest/internal/triage"
	"github.com/pdiddy/paper-digest/pkg/types"
)

func httpClient(cfg types.Config) *http.Client {
	return &http.Client{Timeout: cfg.HTTP.Timeout}
}

func newCache(cfg types.Config) *cache.Store {
	return cache.New(cfg.Output.CacheDir, logger)
}

func newResolver(cfg types.Config, client *http.Client) (authors.Resolver, error) {
	retry := httputil.FixedPolicy{Attempts: cfg.Authors.MaxRetries, Delay: cfg.Authors.RetryDelay}
	switch cfg.Authors.Source {
	case "", "semantic_scholar":
		return &authors.SemanticScholarResolver{
			Client:    client,
			APIKey:    cfg.Authors.APIKey,
			UserAgent: cfg.HTTP.UserAgent,
			Limit:     cfg.Authors.LookupLimit,
			Retry:     retry,
		}, nil
	case "openalex":
		email := ""
		if creds != nil {
			email = creds.Resolve(secrets.OpenAlexEmail)
		}
		return &authors.OpenAlexResolver{
			Client:    client,
			UserAgent: cfg.HTTP.UserAgent,
			Email:     email,
			Limit:     cfg.Authors.LookupLimit,
			Retry:     retry,
		}, nil
	default:
		return nil, fmt.Errorf("unknown authors.source %q", cfg.Authors.Source)
	}
}

func newRegistry(cfg types.Config, client *http.Client) (*authors.Registry, error) {
	resolver, err := newResolver(cfg, client)
	if err != nil {
		return nil, err
	}
	return &authors.Registry{
		Resolver:     resolver,
		SnapshotFile: cfg.Authors.SnapshotFile,
		Options: authors.Options{
			Delay:    authors.ThrottleDelay(cfg.Authors, cfg.Authors.APIKey != ""),
			Logger:   logger,
			Progress: os.Stderr,
		},
	}, nil
}

// newPipeline builds the full pipeline. Missing prompt files, an unreadable
// target list or a missing LLM credential are errors.
func newPipeline(cfg types.Config, tracker *pipeline.Tracker) (*pipeline.Pipeline, error) {
	prompts, err := prompt.Load(cfg.Prompts)
	if err != nil {
		return nil, err
	}
	caller, err := llm.NewCaller(cfg.AI)
	if err != nil {
		return nil, err
	}
	targets, err := authors.LoadTargets(cfg.Authors.TargetsFile)
	if err != nil {
		return nil, err
	}
	client := httpClient(cfg)
	registry, err := newRegistry(cfg, client)
	if err != nil {
		return nil, err
	}
	writers, err := output.New(cfg.Output, client, logger)
	if err != nil {
		return nil, err
	}

	return &pipeline.Pipeline{
		Source: &feed.ArxivSource{
			Client:     client,
			UserAgent:  cfg.HTTP.UserAgent,
			MaxResults: cfg.Feed.MaxResults,
		},
		Authors: registry,
		Targets: targets,
		Triage: &triage.Filter{
			Caller:        caller,
			Prompts:       prompts,
			BatchSize:     cfg.Selection.TriageBatchSize,
			AbstractLimit: cfg.Selection.AbstractLimit,
			Timeout:       cfg.AI.Timeout,
			Logger:        logger,
			Progress:      os.Stderr,
		},
		Scoring: &scoring.Engine{
			Caller:          caller,
			Prompts:         prompts,
			BatchSize:       cfg.Selection.BatchSize,
			AbstractLimit:   cfg.Selection.AbstractLimit,
			RelevanceCutoff: cfg.Filtering.RelevanceCutoff,
			NoveltyCutoff:   cfg.Filtering.NoveltyCutoff,
			Attempts:        cfg.AI.MaxRetries,
			Timeout:         cfg.AI.Timeout,
			Logger:          logger,
			Progress:        os.Stderr,
		},
		Cache:    newCache(cfg),
		Writers:  writers,
		Tracker:  tracker,
		Config:   cfg,
		Logger:   logger,
		Progress: os.Stderr,
	}, nil
}

// newTextSource builds the full-text chain. PDF conversion is enabled only
// when a container runtime with the converter image is available.
func newTextSource(ctx context.Context, cfg types.Config) *fulltext.Fetcher {
	f := &fulltext.Fetcher{
		Client:    httpClient(cfg),
		UserAgent: cfg.HTTP.UserAgent,
		PapersDir: filepath.Join(cfg.Output.Dir, "papers"),
		Logger:    logger,
	}
	rt, err := container.DetectRuntime(ctx, "")
	if err != nil {
		logger.Debug("pdf conversion disabled", "err", err)
		return f
	}
	conv, err := convert.NewMarkitdownConverter(ctx, rt)
	if err != nil {
		logger.Debug("pdf conversion disabled", "err", err)
		return f
	}
	f.Converter = conv
	return f
}

func newExpander(ctx context.Context, cfg types.Config, store *cache.Store, progress *qa.ProgressStore) (*qa.Expander, error) {
	caller, err := llm.NewCaller(cfg.AI)
	if err != nil {
		return nil, err
	}
	questions := qa.DefaultQuestions
	if cfg.QA.QuestionsFile != "" {
		questions, err = qa.LoadQuestions(cfg.QA.QuestionsFile)
		if err != nil {
			return nil, err
		}
	}
	return &qa.Expander{
		Caller:    caller,
		Text:      newTextSource(ctx, cfg),
		Cache:     store,
		Progress:  progress,
		Questions: questions,
		TextLimit: cfg.QA.TextLimit,
		Timeout:   cfg.QA.Timeout,
		Attempts:  cfg.AI.MaxRetries,
		Logger:    logger,
	}, nil
}
