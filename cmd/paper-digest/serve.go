// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/paper-digest/internal/history"
	"github.com/pdiddy/paper-digest/internal/pipeline"
	"github.com/pdiddy/paper-digest/internal/prompt"
	"github.com/pdiddy/paper-digest/internal/qa"
	"github.com/pdiddy/paper-digest/internal/server"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve selections and on-demand Q&A over HTTP",
	Long: `Serve exposes the cached selections, author snapshots, run progress, Q&A
expansion and the history index as a JSON API, plus Prometheus metrics at
/metrics. With --schedule (a cron spec) the pipeline also runs periodically;
POST /api/run starts a run on demand.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default :5000)")
	serveCmd.Flags().String("schedule", "", `cron spec for pipeline runs, e.g. "0 9 * * *"`)

	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	viper.BindPFlag("server.schedule", serveCmd.Flags().Lookup("schedule"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := newCache(cfg)
	progress := qa.NewProgressStore()
	exp, err := newExpander(ctx, cfg, store, progress)
	if err != nil {
		return err
	}
	prompts, err := prompt.Load(cfg.Prompts)
	if err != nil {
		return err
	}

	tracker := &pipeline.Tracker{}
	run := func(ctx context.Context) error {
		p, err := newPipeline(cfg, tracker)
		if err != nil {
			return err
		}
		_, err = p.Run(ctx, "")
		return err
	}

	hist, err := history.Open(historyPath(cfg), store, 0)
	if err != nil {
		logger.Warn("history index disabled", "err", err)
		hist = nil
	} else {
		defer hist.Close()
		if _, err := hist.Ingest(ctx, nil); err != nil {
			logger.Warn("initial history indexing failed", "err", err)
		}
		w, err := history.NewWatcher(hist, 0, logger)
		if err != nil {
			logger.Warn("history watcher disabled", "err", err)
		} else {
			go func() {
				if err := w.Run(ctx); err != nil {
					logger.Warn("history watcher stopped", "err", err)
				}
			}()
		}
	}

	if cfg.Server.Schedule != "" {
		c := cron.New()
		if _, err := c.AddFunc(cfg.Server.Schedule, func() {
			if err := run(ctx); err != nil {
				logger.Warn("scheduled run failed", "err", err)
			}
		}); err != nil {
			return fmt.Errorf("invalid schedule %q: %w", cfg.Server.Schedule, err)
		}
		c.Start()
		defer c.Stop()
		logger.Info("pipeline scheduled", "schedule", cfg.Server.Schedule)
	}

	if !cfg.Output.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &server.Server{
		Cache:         store,
		QA:            exp,
		QAProgress:    progress,
		Tracker:       tracker,
		History:       hist,
		CriteriaOrder: prompt.CriteriaOrder(prompts.Criteria),
		Run:           run,
		Logger:        logger,
	}
	httpSrv := &http.Server{Addr: cfg.Server.Addr, Handler: srv.Router()}

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Server.Addr)
		errc <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
