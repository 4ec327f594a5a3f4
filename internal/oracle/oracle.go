// Package oracle provides the generative reasoning client used for
// expense classification rationale and report narration. It is never
// an arithmetic authority: every number it sees is already final.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// ErrOracleFailure is returned when the reasoning backend errors or
// times out. Fatal for the property being classified.
var ErrOracleFailure = errors.New("reasoning oracle failure")

// ErrInvalidConfig indicates invalid oracle configuration.
var ErrInvalidConfig = errors.New("invalid configuration")

// Oracle produces text from a grounded prompt.
type Oracle interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Config holds configuration for the chat completion client.
type Config struct {
	// BaseURL is the chat API base URL. Works for the OpenAI API and
	// any OpenAI-compatible server.
	BaseURL string `koanf:"base_url"`

	// Model is the chat model identifier.
	Model string `koanf:"model"`

	// APIKey authenticates against the API.
	APIKey string `koanf:"api_key"`

	// Temperature is fixed low so classification verdicts stay
	// deterministic. Narrative wording may still vary.
	Temperature float64 `koanf:"temperature"`

	// Timeout bounds each completion call.
	Timeout time.Duration `koanf:"timeout"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.openai.com/v1"
	}
	if c.Model == "" {
		c.Model = "gpt-4o-mini"
	}
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("%w: model required", ErrInvalidConfig)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: temperature %v out of range", ErrInvalidConfig, c.Temperature)
	}
	return nil
}

// Client implements Oracle via langchaingo's OpenAI chat client.
type Client struct {
	llm    llms.Model
	config Config
}

// NewClient creates a reasoning client from config.
func NewClient(config Config) (*Client, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = "placeholder"
	}

	llm, err := openai.New(
		openai.WithBaseURL(config.BaseURL),
		openai.WithModel(config.Model),
		openai.WithToken(apiKey),
	)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI client: %w", err)
	}

	return &Client{llm: llm, config: config}, nil
}

// Complete generates a completion for the prompt, bounded by the
// configured timeout.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	out, err := llms.GenerateFromSinglePrompt(ctx, c.llm, prompt,
		llms.WithTemperature(c.config.Temperature),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrOracleFailure, err)
	}
	return out, nil
}
