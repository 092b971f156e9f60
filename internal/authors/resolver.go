// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package authors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pdiddy/paper-digest/internal/httputil"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// Resolver looks up candidate identities for one free-text author name.
// An empty result with a nil error means the name is unknown to the provider.
type Resolver interface {
	Name() string
	Lookup(ctx context.Context, name string) ([]types.AuthorAlias, error)
}

// semanticAuthorSearchBase is the Semantic Scholar author search endpoint.
// Declared as a var so tests can substitute an httptest server.
var semanticAuthorSearchBase = "https://api.semanticscholar.org/graph/v1/author/search"

const semanticAuthorFields = "authorId,name,hIndex"

// SemanticScholarResolver queries the Semantic Scholar author search API.
type SemanticScholarResolver struct {
	Client    *http.Client
	APIKey    string
	UserAgent string

	// Limit caps the aliases returned per name (default 10).
	Limit int

	// Retry bounds the attempts per name.
	Retry httputil.FixedPolicy
}

// Name returns the resolver identifier.
func (r *SemanticScholarResolver) Name() string { return "semantic_scholar" }

// Lookup searches for name and returns up to Limit aliases.
func (r *SemanticScholarResolver) Lookup(ctx context.Context, name string) ([]types.AuthorAlias, error) {
	params := url.Values{
		"query":  {name},
		"fields": {semanticAuthorFields},
		"limit":  {strconv.Itoa(limitOrDefault(r.Limit))},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, semanticAuthorSearchBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if r.UserAgent != "" {
		req.Header.Set("User-Agent", r.UserAgent)
	}
	if r.APIKey != "" {
		req.Header.Set("X-API-KEY", r.APIKey)
	}

	body, err := httputil.GetBody(ctx, clientOrDefault(r.Client), req, r.Retry)
	if err != nil {
		return nil, fmt.Errorf("Semantic Scholar author search: %w", err)
	}

	var sr semanticAuthorResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("parsing Semantic Scholar response: %w", err)
	}
	return capAliases(sr.Data, r.Limit), nil
}

type semanticAuthorResponse struct {
	Total int                 `json:"total"`
	Data  []types.AuthorAlias `json:"data"`
}

// openAlexAuthorsBase is the OpenAlex Authors search endpoint. Declared as a
// var so tests can substitute an httptest server.
var openAlexAuthorsBase = "https://api.openalex.org/authors"

// OpenAlexResolver queries the OpenAlex Authors API. Identity ids are the
// short OpenAlex ids (e.g. "A5023888391").
type OpenAlexResolver struct {
	Client    *http.Client
	UserAgent string

	// Email is sent as mailto parameter for polite pool access.
	Email string

	// Limit caps the aliases returned per name (default 10).
	Limit int

	// Retry bounds the attempts per name.
	Retry httputil.FixedPolicy
}

// Name returns the resolver identifier.
func (r *OpenAlexResolver) Name() string { return "openalex" }

// Lookup searches for name and returns up to Limit aliases.
func (r *OpenAlexResolver) Lookup(ctx context.Context, name string) ([]types.AuthorAlias, error) {
	params := url.Values{
		"search":   {name},
		"per_page": {strconv.Itoa(limitOrDefault(r.Limit))},
		"select":   {"id,display_name,summary_stats"},
	}
	if r.Email != "" {
		params.Set("mailto", r.Email)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, openAlexAuthorsBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if r.UserAgent != "" {
		req.Header.Set("User-Agent", r.UserAgent)
	}

	body, err := httputil.GetBody(ctx, clientOrDefault(r.Client), req, r.Retry)
	if err != nil {
		return nil, fmt.Errorf("OpenAlex author search: %w", err)
	}

	var oar openAlexAuthorResponse
	if err := json.Unmarshal(body, &oar); err != nil {
		return nil, fmt.Errorf("parsing OpenAlex response: %w", err)
	}

	aliases := make([]types.AuthorAlias, 0, len(oar.Results))
	for _, a := range oar.Results {
		aliases = append(aliases, types.AuthorAlias{
			AuthorID: strings.TrimPrefix(a.ID, "https://openalex.org/"),
			Name:     a.DisplayName,
			HIndex:   a.SummaryStats.HIndex,
		})
	}
	return capAliases(aliases, r.Limit), nil
}

type openAlexAuthorResponse struct {
	Results []openAlexAuthor `json:"results"`
}

type openAlexAuthor struct {
	ID           string `json:"id"`
	DisplayName  string `json:"display_name"`
	SummaryStats struct {
		HIndex int `json:"h_index"`
	} `json:"summary_stats"`
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return 10
	}
	return limit
}

func capAliases(aliases []types.AuthorAlias, limit int) []types.AuthorAlias {
	if n := limitOrDefault(limit); len(aliases) > n {
		return aliases[:n]
	}
	return aliases
}

func clientOrDefault(c *http.Client) *http.Client {
	if c == nil {
		return http.DefaultClient
	}
	return c
}
