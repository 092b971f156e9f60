// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/pdiddy/paper-digest/internal/metrics"
	"github.com/pdiddy/paper-digest/internal/telemetry"
)

// ErrInvalidResponse wraps every parse or validation failure of a reply.
var ErrInvalidResponse = errors.New("invalid response")

// DefaultAttempts is the number of tries when Request.Attempts is unset.
const DefaultAttempts = 3

// backoffBase controls the base duration for exponential backoff after a
// transport failure. Tests override this to avoid real sleeps.
var backoffBase = time.Second

// Request describes one logical LLM call.
type Request struct {
	// Stage labels logs, metrics and spans (e.g. "triage", "scoring", "qa").
	Stage string

	// System is an optional system prompt.
	System string

	// Prompt is the user prompt.
	Prompt string

	// Attempts bounds the number of tries (default 3).
	Attempts int

	// Timeout bounds each try; zero means no per-call bound.
	Timeout time.Duration

	// Logger receives attempt diagnostics; nil uses slog.Default().
	Logger *slog.Logger
}

// Call sends req through caller and hands the reply to parse. A transport
// failure is retried after an exponential backoff; an empty reply or a parse
// failure is retried with corrective feedback appended to the prompt. After
// the last try the last error is returned.
func Call[T any](ctx context.Context, caller Caller, req Request, parse func(raw string) (T, error)) (T, error) {
	var zero T
	attempts := req.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	log := req.Logger
	if log == nil {
		log = slog.Default()
	}

	ctx, span := telemetry.Tracer().Start(ctx, "llm."+req.Stage)
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", caller.ModelName()), attribute.Int("llm.prompt_chars", len(req.Prompt)))

	feedback := ""
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		span.SetAttributes(attribute.Int("llm.attempts", attempt))
		prompt := req.Prompt
		if feedback != "" {
			prompt += "\n\n" + feedback
		}

		raw, err := complete(ctx, caller, req, prompt)
		if err != nil {
			lastErr = err
			metrics.LLMCalls.WithLabelValues(req.Stage, "transport_error").Inc()
			log.Warn("llm call failed", "stage", req.Stage, "attempt", attempt, "err", err)
			if ctx.Err() != nil {
				break
			}
			if attempt < attempts {
				if serr := sleep(ctx, time.Duration(math.Pow(2, float64(attempt-1)))*backoffBase); serr != nil {
					lastErr = serr
					break
				}
			}
			continue
		}

		if strings.TrimSpace(raw) == "" {
			lastErr = fmt.Errorf("%w: %w", ErrInvalidResponse, ErrEmptyResponse)
			metrics.LLMCalls.WithLabelValues(req.Stage, "empty").Inc()
			log.Warn("llm returned empty response", "stage", req.Stage, "attempt", attempt)
			feedback = "Your previous response was empty. Return valid JSON only."
			continue
		}

		out, err := parse(raw)
		if err != nil {
			lastErr = fmt.Errorf("%w: %v", ErrInvalidResponse, err)
			metrics.LLMCalls.WithLabelValues(req.Stage, "invalid").Inc()
			log.Warn("llm response rejected", "stage", req.Stage, "attempt", attempt, "err", err)
			feedback = fmt.Sprintf("Your previous response could not be used: %s. Fix it and return valid JSON only.", err)
			continue
		}

		metrics.LLMCalls.WithLabelValues(req.Stage, "ok").Inc()
		log.Debug("llm call succeeded", "stage", req.Stage, "attempt", attempt, "response_chars", len(raw))
		return out, nil
	}

	span.RecordError(lastErr)
	span.SetStatus(codes.Error, "llm call failed")
	return zero, fmt.Errorf("%s failed after %d attempts: %w", req.Stage, attempts, lastErr)
}

func complete(ctx context.Context, caller Caller, req Request, prompt string) (string, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}
	start := time.Now()
	defer func() {
		metrics.LLMCallDuration.WithLabelValues(req.Stage).Observe(time.Since(start).Seconds())
	}()
	return caller.Complete(ctx, req.System, prompt)
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// DecodeObject extracts the JSON object embedded in raw and decodes it into T.
func DecodeObject[T any](raw string) (T, error) {
	var out T
	js := ExtractJSON(raw)
	if js == "" {
		return out, fmt.Errorf("no JSON object found")
	}
	if err := json.Unmarshal([]byte(js), &out); err != nil {
		return out, fmt.Errorf("decoding JSON object: %w", err)
	}
	return out, nil
}

// DecodeArray decodes a list of records from raw. It accepts a JSON array
// (optionally fenced) or one JSON object per line.
func DecodeArray[T any](raw string) ([]T, error) {
	var arrayErr error
	if js := ExtractJSONArray(raw); js != "" {
		var out []T
		if arrayErr = json.Unmarshal([]byte(js), &out); arrayErr == nil {
			return out, nil
		}
	}

	var out []T
	sc := bufio.NewScanner(strings.NewReader(StripCodeFences(raw)))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var rec T
		if err := json.Unmarshal([]byte(cleanJSON(strings.TrimSuffix(line, ","))), &rec); err != nil {
			if arrayErr != nil {
				return nil, fmt.Errorf("decoding JSON array: %w", arrayErr)
			}
			return nil, fmt.Errorf("decoding record line: %w", err)
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scanning response: %w", err)
	}
	if len(out) == 0 {
		if arrayErr != nil {
			return nil, fmt.Errorf("decoding JSON array: %w", arrayErr)
		}
		return nil, fmt.Errorf("no JSON records found")
	}
	return out, nil
}
