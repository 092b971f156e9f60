// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics registers the Prometheus collectors shared by the pipeline
// components. Collectors live on the default registry and are served by the
// HTTP front end at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "paper_digest"

var (
	// LLMCalls counts LLM calls by stage and outcome
	// (ok, transport_error, parse_error, validation_error, empty).
	LLMCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "llm",
		Name:      "calls_total",
		Help:      "LLM calls by stage and outcome",
	}, []string{"stage", "outcome"})

	// LLMCallDuration observes the latency of single LLM calls.
	LLMCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "llm",
		Name:      "call_duration_seconds",
		Help:      "Latency of a single LLM call",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
	}, []string{"stage"})

	// BatchesFailed counts batches abandoned after exhausting retries.
	BatchesFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "batches_failed_total",
		Help:      "Batches abandoned by stage",
	}, []string{"stage"})

	// PapersByStage records how many papers survived each pipeline stage in
	// the most recent run.
	PapersByStage = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "papers",
		Help:      "Papers remaining after each stage of the last run",
	}, []string{"stage"})

	// CacheLookups counts cache reads by entity kind and result (hit, miss).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Cache lookups by kind and result",
	}, []string{"kind", "result"})

	// AuthorLookups counts identity searches by outcome (ok, failed, replayed).
	AuthorLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "authors",
		Name:      "lookups_total",
		Help:      "Author identity lookups by outcome",
	}, []string{"outcome"})

	// QuestionDuration observes the time to answer one Q&A question.
	QuestionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "qa",
		Name:      "question_duration_seconds",
		Help:      "Time to answer one question, by question kind",
		Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120},
	}, []string{"kind"})
)
