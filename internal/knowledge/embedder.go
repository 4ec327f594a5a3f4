package knowledge

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// EmbedderConfig holds configuration for the embedding client.
type EmbedderConfig struct {
	// BaseURL is the embedding API base URL. Works for the OpenAI API
	// and for any OpenAI-compatible server.
	BaseURL string `koanf:"base_url"`

	// Model is the embedding model, e.g. text-embedding-3-small.
	Model string `koanf:"model"`

	// APIKey authenticates against the API.
	APIKey string `koanf:"api_key"`
}

// ApplyDefaults sets default values for unset fields.
func (c *EmbedderConfig) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.openai.com/v1"
	}
	if c.Model == "" {
		c.Model = "text-embedding-3-small"
	}
}

// Validate validates the configuration.
func (c *EmbedderConfig) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("%w: embedding model required", ErrInvalidConfig)
	}
	return nil
}

// OpenAIEmbedder implements Embedder via langchaingo's OpenAI client.
type OpenAIEmbedder struct {
	embedder *embeddings.EmbedderImpl
}

// NewOpenAIEmbedder creates an embedding client from config.
func NewOpenAIEmbedder(config EmbedderConfig) (*OpenAIEmbedder, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	apiKey := config.APIKey
	if apiKey == "" {
		// langchaingo requires a token even for keyless compatible servers.
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

	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	return &OpenAIEmbedder{embedder: embedder}, nil
}

// EmbedDocuments generates embeddings for multiple texts.
func (e *OpenAIEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyDocuments)
	}
	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding documents: %w", err)
	}
	return vectors, nil
}

// EmbedQuery generates an embedding for a single query.
func (e *OpenAIEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vector, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	return vector, nil
}
