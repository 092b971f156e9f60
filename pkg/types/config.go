// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "paper-digest/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// FilterConfig holds the cutoffs applied by the impact pre-filter and the
// scoring engine, and the feed categories to ingest.
type FilterConfig struct {
	// RelevanceCutoff is the minimum relevance a scored paper needs (default 7).
	RelevanceCutoff int `json:"relevance_cutoff" yaml:"relevance_cutoff" mapstructure:"relevance_cutoff"`

	// NoveltyCutoff is the minimum novelty a scored paper needs (default 6).
	NoveltyCutoff int `json:"novelty_cutoff" yaml:"novelty_cutoff" mapstructure:"novelty_cutoff"`

	// HIndexCutoff is the minimum best h-index of at least one author (default 15).
	HIndexCutoff int `json:"hindex_cutoff" yaml:"hindex_cutoff" mapstructure:"hindex_cutoff"`

	// ArxivCategories lists the feed categories to ingest (default cs.CL).
	ArxivCategories []string `json:"arxiv_categories" yaml:"arxiv_categories" mapstructure:"arxiv_categories"`
}

// FeedConfig holds settings for the daily arXiv listing.
type FeedConfig struct {
	// MaxResults caps the entries requested per category (default 300).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`

	// Lookback is how far back from now a submission counts as new (default 24h).
	Lookback time.Duration `json:"lookback" yaml:"lookback" mapstructure:"lookback"`

	// Delay is the wait between category requests (default 3s).
	Delay time.Duration `json:"delay" yaml:"delay" mapstructure:"delay"`
}

// SelectionConfig holds batching and author-match settings.
type SelectionConfig struct {
	// AuthorMatchScore is the fixed score given to author-matched papers (default 7.0).
	AuthorMatchScore float64 `json:"author_match_score" yaml:"author_match_score" mapstructure:"author_match_score"`

	// BatchSize is the number of papers per scoring prompt (default 5).
	BatchSize int `json:"batch_size" yaml:"batch_size" mapstructure:"batch_size"`

	// TriageBatchSize is the number of papers per triage prompt (default 10).
	TriageBatchSize int `json:"triage_batch_size" yaml:"triage_batch_size" mapstructure:"triage_batch_size"`

	// AbstractLimit caps the abstract characters rendered into prompts (default 4000).
	AbstractLimit int `json:"abstract_limit" yaml:"abstract_limit" mapstructure:"abstract_limit"`
}

// AIProvider identifies the LLM backend.
type AIProvider string

const (
	ProviderAnthropic AIProvider = "anthropic"
	ProviderOpenAI    AIProvider = "openai"
)

// AIConfig holds shared settings for components that call a Generative AI API.
type AIConfig struct {
	// Provider selects the backend: anthropic or openai (any OpenAI-compatible endpoint).
	Provider AIProvider `json:"provider" yaml:"provider" mapstructure:"provider"`

	// Model is the AI model identifier (e.g. "claude-sonnet-4-5-20250929").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// BaseURL overrides the provider endpoint (e.g. a Gemini OpenAI-compatible URL).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// MaxRetries is the number of attempts for a call whose output fails validation (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// Timeout bounds a single scoring or triage call (default 10s).
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// QAConfig holds settings for the on-demand Q&A expander.
type QAConfig struct {
	// Timeout bounds a single question call (default 30s).
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// TextLimit caps the source text characters embedded in each prompt (default 50000).
	TextLimit int `json:"text_limit" yaml:"text_limit" mapstructure:"text_limit"`

	// QuestionsFile is an optional YAML or plain-text list of questions.
	QuestionsFile string `json:"questions_file,omitempty" yaml:"questions_file,omitempty" mapstructure:"questions_file"`
}

// PromptConfig names the operator-supplied prompt text files.
type PromptConfig struct {
	BaseFile     string `json:"base_file" yaml:"base_file" mapstructure:"base_file"`
	CriteriaFile string `json:"criteria_file" yaml:"criteria_file" mapstructure:"criteria_file"`
	PostfixFile  string `json:"postfix_file" yaml:"postfix_file" mapstructure:"postfix_file"`
}

// AuthorsConfig holds author registry settings.
type AuthorsConfig struct {
	// Source selects the identity search service: semantic_scholar or openalex.
	Source string `json:"source" yaml:"source" mapstructure:"source"`

	// TargetsFile is the two-column list of high-value author identities.
	TargetsFile string `json:"targets_file" yaml:"targets_file" mapstructure:"targets_file"`

	// LookupLimit caps the candidate aliases returned per name (default 10).
	LookupLimit int `json:"lookup_limit" yaml:"lookup_limit" mapstructure:"lookup_limit"`

	// MaxRetries is the number of attempts per name lookup (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// RetryDelay is the fixed wait between failed lookups (default 2s).
	RetryDelay time.Duration `json:"retry_delay" yaml:"retry_delay" mapstructure:"retry_delay"`

	// DelayAnonymous is the wait between lookups without an API key (default 1s).
	DelayAnonymous time.Duration `json:"delay_anonymous" yaml:"delay_anonymous" mapstructure:"delay_anonymous"`

	// DelayKeyed is the wait between lookups with an API key (default 20ms).
	DelayKeyed time.Duration `json:"delay_keyed" yaml:"delay_keyed" mapstructure:"delay_keyed"`

	// SnapshotFile, when set, replays the names it holds; names missing from
	// it are looked up live and merged back into the file.
	SnapshotFile string `json:"snapshot_file,omitempty" yaml:"snapshot_file,omitempty" mapstructure:"snapshot_file"`

	// APIKey is the optional Semantic Scholar key.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`
}

// OutputFormat selects a digest writer.
type OutputFormat string

const (
	OutputJSON     OutputFormat = "json"
	OutputMarkdown OutputFormat = "markdown"
	OutputHTML     OutputFormat = "html"
	OutputSlack    OutputFormat = "slack"
)

// OutputConfig holds settings for persisted results.
type OutputConfig struct {
	// Dir is the output directory (default "out").
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`

	// CacheDir is the result cache root (default "out/cache").
	CacheDir string `json:"cache_dir" yaml:"cache_dir" mapstructure:"cache_dir"`

	// Formats lists the digest writers to run (default json, markdown).
	Formats []OutputFormat `json:"formats" yaml:"formats" mapstructure:"formats"`

	// Debug enables debug-level logging.
	Debug bool `json:"debug" yaml:"debug" mapstructure:"debug"`

	// DumpDebug writes intermediate pipeline state as *.debug.json files.
	DumpDebug bool `json:"dump_debug" yaml:"dump_debug" mapstructure:"dump_debug"`

	// SlackWebhook is the incoming-webhook URL for the slack format.
	SlackWebhook string `json:"slack_webhook,omitempty" yaml:"slack_webhook,omitempty" mapstructure:"slack_webhook"`
}

// ServerConfig holds HTTP front-end settings.
type ServerConfig struct {
	// Addr is the listen address (default ":5000").
	Addr string `json:"addr" yaml:"addr" mapstructure:"addr"`

	// Schedule is a cron spec for the daily pipeline run; empty disables it.
	Schedule string `json:"schedule,omitempty" yaml:"schedule,omitempty" mapstructure:"schedule"`
}

// TelemetryConfig holds tracing settings.
type TelemetryConfig struct {
	// OTLPEndpoint is the OTLP/HTTP collector host:port; empty disables tracing.
	OTLPEndpoint string `json:"otlp_endpoint,omitempty" yaml:"otlp_endpoint,omitempty" mapstructure:"otlp_endpoint"`
}

// Config groups all component configurations.
type Config struct {
	HTTP      HTTPConfig      `json:"http" yaml:"http" mapstructure:"http"`
	Filtering FilterConfig    `json:"filtering" yaml:"filtering" mapstructure:"filtering"`
	Feed      FeedConfig      `json:"feed" yaml:"feed" mapstructure:"feed"`
	Selection SelectionConfig `json:"selection" yaml:"selection" mapstructure:"selection"`
	AI        AIConfig        `json:"ai" yaml:"ai" mapstructure:"ai"`
	QA        QAConfig        `json:"qa" yaml:"qa" mapstructure:"qa"`
	Prompts   PromptConfig    `json:"prompts" yaml:"prompts" mapstructure:"prompts"`
	Authors   AuthorsConfig   `json:"authors" yaml:"authors" mapstructure:"authors"`
	Output    OutputConfig    `json:"output" yaml:"output" mapstructure:"output"`
	Server    ServerConfig    `json:"server" yaml:"server" mapstructure:"server"`
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry" mapstructure:"telemetry"`
}

// DefaultConfig returns the configuration used when no file or environment
// override is present.
func DefaultConfig() Config {
	return Config{
		HTTP: HTTPConfig{
			Timeout:   30 * time.Second,
			UserAgent: "paper-digest/0.1",
		},
		Filtering: FilterConfig{
			RelevanceCutoff: 7,
			NoveltyCutoff:   6,
			HIndexCutoff:    15,
			ArxivCategories: []string{"cs.CL"},
		},
		Feed: FeedConfig{
			MaxResults: 300,
			Lookback:   24 * time.Hour,
			Delay:      3 * time.Second,
		},
		Selection: SelectionConfig{
			AuthorMatchScore: 7.0,
			BatchSize:        5,
			TriageBatchSize:  10,
			AbstractLimit:    4000,
		},
		AI: AIConfig{
			Provider:   ProviderAnthropic,
			Model:      "claude-sonnet-4-5-20250929",
			MaxRetries: 3,
			Timeout:    10 * time.Second,
		},
		QA: QAConfig{
			Timeout:   30 * time.Second,
			TextLimit: 50000,
		},
		Prompts: PromptConfig{
			BaseFile:     "configs/base_prompt.txt",
			CriteriaFile: "configs/paper_topics.txt",
			PostfixFile:  "configs/postfix_prompt.txt",
		},
		Authors: AuthorsConfig{
			Source:         "semantic_scholar",
			TargetsFile:    "configs/authors.txt",
			LookupLimit:    10,
			MaxRetries:     3,
			RetryDelay:     2 * time.Second,
			DelayAnonymous: time.Second,
			DelayKeyed:     20 * time.Millisecond,
		},
		Output: OutputConfig{
			Dir:      "out",
			CacheDir: "out/cache",
			Formats:  []OutputFormat{OutputJSON, OutputMarkdown},
		},
		Server: ServerConfig{
			Addr: ":5000",
		},
	}
}
