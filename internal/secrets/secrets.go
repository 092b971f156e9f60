// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys and credentials from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key name and the
// file contents (trimmed) are the value.
//
// Supported key files: anthropic-api-key, openai-api-key, semantic-scholar-api-key,
// openalex-email, slack-webhook-url. Each has an environment variable fallback.
package secrets

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files produce a warning on stderr but do not abort.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			slog.Warn("could not read secret", "name", name, "err", err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// Key file names.
const (
	AnthropicAPIKey       = "anthropic-api-key"
	OpenAIAPIKey          = "openai-api-key"
	SemanticScholarAPIKey = "semantic-scholar-api-key"
	OpenAlexEmail         = "openalex-email"
	SlackWebhookURL       = "slack-webhook-url"
)

// envFallbacks lists, per key file, the environment variables consulted when
// the file is absent.
var envFallbacks = map[string][]string{
	AnthropicAPIKey:       {"ANTHROPIC_API_KEY"},
	OpenAIAPIKey:          {"OPENAI_API_KEY", "GEMINI_API_KEY"},
	SemanticScholarAPIKey: {"S2_API_KEY", "SEMANTIC_SCHOLAR_API_KEY"},
	OpenAlexEmail:         {"OPENALEX_EMAIL"},
	SlackWebhookURL:       {"SLACK_WEBHOOK_URL"},
}

// Store resolves credentials from loaded key files with environment fallback.
type Store struct {
	files  map[string]string
	lookup func(string) (string, bool)
}

// NewStore loads dir and returns a Store over it.
func NewStore(dir string) (*Store, error) {
	files, err := Load(dir)
	if err != nil {
		return nil, err
	}
	return &Store{files: files, lookup: os.LookupEnv}, nil
}

// Resolve returns the value for key, preferring the key file and falling back
// to the key's environment variables. The empty string means not configured.
func (s *Store) Resolve(key string) string {
	if v := s.files[key]; v != "" {
		return v
	}
	lookup := s.lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	for _, env := range envFallbacks[key] {
		if v, ok := lookup(env); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// Require is Resolve that fails when the credential is not configured.
func (s *Store) Require(key string) (string, error) {
	v := s.Resolve(key)
	if v == "" {
		return "", fmt.Errorf("missing credential %s: add .secrets/%s or set %s", key, key, strings.Join(envFallbacks[key], " or "))
	}
	return v, nil
}
