// Package knowledge provides the semantic index over tax guideline
// passages. The pipeline reads it for grounding text; an external batch
// process (the ingest command) populates it.
package knowledge

import (
	"context"
	"errors"
)

// Sentinel errors for index operations.
var (
	// ErrRetrievalUnavailable is returned when the index itself fails.
	// Distinct from an empty result set, which is not an error.
	ErrRetrievalUnavailable = errors.New("knowledge index unavailable")

	// ErrInvalidConfig indicates invalid store configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyDocuments indicates empty or nil documents on ingest.
	ErrEmptyDocuments = errors.New("empty or nil documents")
)

// Passage is one retrieved guideline passage.
type Passage struct {
	// ID is the document ID within the collection.
	ID string `json:"id"`

	// Content is the passage text.
	Content string `json:"content"`

	// Score is the cosine similarity to the query, higher is closer.
	Score float32 `json:"score"`
}

// Document is a guideline passage to be ingested.
type Document struct {
	ID       string
	Content  string
	Metadata map[string]string
}

// Retriever fetches guideline passages by semantic similarity.
//
// Retrieve returns up to k passages ordered by descending similarity.
// An empty corpus yields an empty slice and a nil error; only a failing
// index returns an error (wrapping ErrRetrievalUnavailable).
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]Passage, error)
}

// Embedder generates vector embeddings from text.
type Embedder interface {
	// EmbedDocuments generates embeddings for multiple texts.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}
