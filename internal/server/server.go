// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server is the JSON front end over the result cache, the Q&A
// expander, the run tracker and the history index.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pdiddy/paper-digest/internal/cache"
	"github.com/pdiddy/paper-digest/internal/history"
	"github.com/pdiddy/paper-digest/internal/output"
	"github.com/pdiddy/paper-digest/internal/pipeline"
	"github.com/pdiddy/paper-digest/internal/qa"
	"github.com/pdiddy/paper-digest/internal/selection"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// Expander answers the Q&A questions for a paper.
type Expander interface {
	Expand(ctx context.Context, paper types.Paper, date string) types.QAResult
}

// Server holds the handlers' dependencies.
type Server struct {
	Cache      *cache.Store
	QA         Expander
	QAProgress *qa.ProgressStore
	Tracker    *pipeline.Tracker

	// History is optional; the history routes answer 503 without it.
	History *history.Store

	// CriteriaOrder ranks criteria for ?sort=criterion.
	CriteriaOrder []string

	// Run, when set, starts a pipeline run for POST /api/run.
	Run func(ctx context.Context) error

	Logger *slog.Logger
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	api := r.Group("/api")
	{
		api.GET("/papers", s.getPapers)
		api.GET("/qa/:id", s.getQA)
		api.GET("/qa/:id/progress", s.getQAProgress)
		api.GET("/progress", s.getProgress)
		api.POST("/run", s.postRun)
		api.GET("/authors/:date", s.getAuthors)
		api.GET("/history", s.getHistory)
		api.GET("/search", s.getSearch)
	}
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

func (s *Server) log() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log().Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func errorJSON(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

// date returns the ?date parameter, or the latest cached output date.
func (s *Server) date(c *gin.Context) (string, bool) {
	if d := c.Query("date"); d != "" {
		if _, err := time.Parse(cache.DateLayout, d); err != nil {
			return "", false
		}
		return d, true
	}
	return s.Cache.Latest(cache.OutputEntity)
}

func (s *Server) getPapers(c *gin.Context) {
	date, ok := s.date(c)
	if !ok {
		errorJSON(c, http.StatusNotFound, "No paper data available yet")
		return
	}
	set := types.NewSelectionSet()
	if !s.Cache.Get(cache.Key(date, cache.OutputEntity), set) {
		errorJSON(c, http.StatusNotFound, "No paper data found for "+date)
		return
	}
	papers := set.Papers()
	if c.Query("sort") == "criterion" {
		papers = selection.SortByCriterion(set, s.CriteriaOrder)
	}
	c.JSON(http.StatusOK, gin.H{
		"date":            date,
		"papers":          papers,
		"available_dates": s.Cache.Dates(cache.OutputEntity),
	})
}

func (s *Server) getQA(c *gin.Context) {
	id := c.Param("id")
	date, ok := s.date(c)
	if !ok {
		errorJSON(c, http.StatusNotFound, "Paper not found")
		return
	}
	paper, err := qa.Lookup(s.Cache, date, id)
	if err != nil {
		if errors.Is(err, qa.ErrPaperNotFound) {
			errorJSON(c, http.StatusNotFound, "Paper not found")
			return
		}
		errorJSON(c, http.StatusInternalServerError, err.Error())
		return
	}

	result := s.QA.Expand(c.Request.Context(), paper, date)
	if result.IsError() {
		errorJSON(c, http.StatusOK, result.Error)
		return
	}
	html, err := output.MarkdownToHTML(qa.RenderMarkdown(paper, result))
	if err != nil {
		s.log().Warn("rendering Q&A html", "paper_id", paper.ID, "err", err)
	}
	c.JSON(http.StatusOK, gin.H{
		"arxiv_id": paper.ID,
		"answers":  result.Pairs,
		"html":     html,
	})
}

func (s *Server) getQAProgress(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		date, _ = s.Cache.Latest(cache.OutputEntity)
	}
	c.JSON(http.StatusOK, s.QAProgress.Get(qa.Key(date, c.Param("id"))))
}

func (s *Server) getProgress(c *gin.Context) {
	if s.Tracker == nil {
		c.JSON(http.StatusOK, types.RunProgress{})
		return
	}
	c.JSON(http.StatusOK, s.Tracker.Get())
}

func (s *Server) postRun(c *gin.Context) {
	if s.Run == nil {
		errorJSON(c, http.StatusNotImplemented, "Runs are not enabled on this server")
		return
	}
	if s.Tracker != nil && s.Tracker.Get().Running {
		errorJSON(c, http.StatusConflict, pipeline.ErrRunning.Error())
		return
	}
	go func() {
		if err := s.Run(context.Background()); err != nil {
			s.log().Warn("pipeline run failed", "err", err)
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}

func (s *Server) getAuthors(c *gin.Context) {
	date := c.Param("date")
	var record types.AuthorRecord
	if !s.Cache.Get(cache.Key(date, cache.AuthorsEntity), &record) {
		errorJSON(c, http.StatusNotFound, "No author data found for this date")
		return
	}
	c.JSON(http.StatusOK, record)
}

func (s *Server) getHistory(c *gin.Context) {
	if s.History == nil {
		var dates []history.DateSummary
		for _, d := range s.Cache.Dates(cache.OutputEntity) {
			dates = append(dates, history.DateSummary{Date: d})
		}
		c.JSON(http.StatusOK, gin.H{"dates": dates})
		return
	}
	dates, err := s.History.Dates(c.Request.Context())
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"dates": dates})
}

func (s *Server) getSearch(c *gin.Context) {
	if s.History == nil {
		errorJSON(c, http.StatusServiceUnavailable, "History index is not available")
		return
	}
	var params struct {
		Query string `form:"q"`
		Date  string `form:"date"`
		Limit int    `form:"limit"`
	}
	if err := c.ShouldBindQuery(&params); err != nil {
		errorJSON(c, http.StatusBadRequest, err.Error())
		return
	}
	entries, err := s.History.Search(c.Request.Context(), history.QueryOptions{
		Query:      params.Query,
		Date:       params.Date,
		MaxResults: params.Limit,
	})
	if err != nil {
		errorJSON(c, http.StatusBadRequest, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": entries})
}
