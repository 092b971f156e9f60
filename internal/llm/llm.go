// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm provides the language-model call contract shared by the triage,
// scoring and Q&A components: a provider-neutral Caller, Anthropic and
// OpenAI-compatible implementations, and a bounded retry combinator that
// wraps a fallible parse-and-validate step.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	openai "github.com/sashabaranov/go-openai"

	"github.com/pdiddy/paper-digest/pkg/types"
)

// ErrEmptyResponse is returned when a provider answers with no text.
var ErrEmptyResponse = errors.New("empty response")

// Caller abstracts a chat-completion API so components and tests can supply
// their own implementation. Complete sends one user prompt under an optional
// system prompt and returns the raw text of the reply.
type Caller interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
	ModelName() string
}

// CallerFunc adapts an ordinary function to the Caller interface.
type CallerFunc func(ctx context.Context, system, prompt string) (string, error)

// Complete calls f.
func (f CallerFunc) Complete(ctx context.Context, system, prompt string) (string, error) {
	return f(ctx, system, prompt)
}

// ModelName reports a fixed name for function-backed callers.
func (f CallerFunc) ModelName() string { return "func" }

// defaultMaxTokens caps every completion.
const defaultMaxTokens = 4096

// AnthropicMessager is the subset of the Anthropic SDK used by AnthropicCaller.
type AnthropicMessager interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// AnthropicCaller calls the Anthropic Messages API.
type AnthropicCaller struct {
	messages AnthropicMessager
	model    string
}

// NewAnthropicCaller returns a caller backed by the official SDK client.
func NewAnthropicCaller(apiKey, model string, opts ...option.RequestOption) *AnthropicCaller {
	c := anthropic.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	return &AnthropicCaller{messages: &c.Messages, model: model}
}

// ModelName returns the configured model identifier.
func (a *AnthropicCaller) ModelName() string { return a.model }

// Complete sends prompt at temperature 0 and concatenates the text blocks of the reply.
func (a *AnthropicCaller) Complete(ctx context.Context, system, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(a.model),
		MaxTokens:   defaultMaxTokens,
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
		Temperature: anthropic.Float(0),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := a.messages.New(ctx, params)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, b := range resp.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	return sb.String(), nil
}

// ChatCompleter is the subset of the go-openai client used by OpenAICaller.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAICaller calls an OpenAI-compatible chat completions endpoint, such as
// OpenAI itself or Gemini's compatibility layer.
type OpenAICaller struct {
	client ChatCompleter
	model  string
}

// NewOpenAICaller returns a caller for apiKey. A non-empty baseURL points the
// client at a compatible endpoint.
func NewOpenAICaller(apiKey, model, baseURL string) *OpenAICaller {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAICaller{client: openai.NewClientWithConfig(cfg), model: model}
}

// ModelName returns the configured model identifier.
func (o *OpenAICaller) ModelName() string { return o.model }

// Complete sends prompt at temperature 0 and returns the first choice.
func (o *OpenAICaller) Complete(ctx context.Context, system, prompt string) (string, error) {
	var msgs []openai.ChatCompletionMessage
	if system != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    msgs,
		MaxTokens:   defaultMaxTokens,
		Temperature: 0,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

// NewCaller builds the Caller selected by cfg.Provider.
func NewCaller(cfg types.AIConfig) (Caller, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("no API key configured for provider %q", cfg.Provider)
	}
	switch cfg.Provider {
	case types.ProviderAnthropic, "":
		var opts []option.RequestOption
		if cfg.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.BaseURL))
		}
		return NewAnthropicCaller(cfg.APIKey, cfg.Model, opts...), nil
	case types.ProviderOpenAI:
		return NewOpenAICaller(cfg.APIKey, cfg.Model, cfg.BaseURL), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
}
