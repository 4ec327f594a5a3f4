// Package research provides the web-search fallback used when guideline
// text alone cannot resolve an expense's deductibility.
package research

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// ErrResearchUnavailable is returned on transport or auth failure.
// Callers treat it as non-fatal: the affected expense falls back to the
// non-deductible default instead of failing the run.
var ErrResearchUnavailable = errors.New("research tool unavailable")

// ErrInvalidConfig indicates invalid search configuration.
var ErrInvalidConfig = errors.New("invalid configuration")

// Result is one web search hit.
type Result struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Link    string `json:"link"`
}

// Searcher performs a free-text web search.
//
// Search returns (nil, nil) when the query produced no results, and an
// error wrapping ErrResearchUnavailable when the tool itself failed.
type Searcher interface {
	Search(ctx context.Context, query string) (*Result, error)
}

// Config holds SerpAPI client configuration.
type Config struct {
	// APIKey is the SerpAPI key.
	APIKey string `koanf:"api_key"`

	// BaseURL is the API endpoint, overridable for tests.
	BaseURL string `koanf:"base_url"`

	// Location biases search results to a region.
	Location string `koanf:"location"`

	// Language is the interface language parameter (hl).
	Language string `koanf:"language"`

	// MaxResults caps how many organic results are requested.
	MaxResults int `koanf:"max_results"`

	// Timeout bounds each search call.
	Timeout time.Duration `koanf:"timeout"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://serpapi.com/search"
	}
	if c.Location == "" {
		c.Location = "Singapore"
	}
	if c.Language == "" {
		c.Language = "en"
	}
	if c.MaxResults == 0 {
		c.MaxResults = 4
	}
	if c.Timeout == 0 {
		c.Timeout = 15 * time.Second
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("%w: API key required", ErrInvalidConfig)
	}
	return nil
}

// SerpClient implements Searcher against the SerpAPI Google engine.
type SerpClient struct {
	config Config
	client *http.Client
	logger *zap.Logger
}

// NewSerpClient creates a search client from config.
func NewSerpClient(config Config, logger *zap.Logger) (*SerpClient, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SerpClient{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger,
	}, nil
}

// serpResponse is the subset of the SerpAPI payload we consume.
type serpResponse struct {
	OrganicResults []Result `json:"organic_results"`
}

// Search returns the top organic result for the query, or (nil, nil)
// when the engine found nothing.
func (c *SerpClient) Search(ctx context.Context, query string) (*Result, error) {
	params := url.Values{}
	params.Set("engine", "google")
	params.Set("q", query)
	params.Set("api_key", c.config.APIKey)
	params.Set("location", c.config.Location)
	params.Set("hl", c.config.Language)
	params.Set("num", strconv.Itoa(c.config.MaxResults))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", ErrResearchUnavailable, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResearchUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrResearchUnavailable, resp.StatusCode)
	}

	var payload serpResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrResearchUnavailable, err)
	}

	if len(payload.OrganicResults) == 0 {
		c.logger.Debug("search returned no results", zap.String("query", query))
		return nil, nil
	}

	top := payload.OrganicResults[0]
	c.logger.Debug("search result",
		zap.String("query", query),
		zap.String("link", top.Link),
	)
	return &top, nil
}
