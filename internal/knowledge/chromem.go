package knowledge

import (
	"context"
	"fmt"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("rentadvisor.knowledge")

// StoreConfig holds configuration for the embedded chromem-go index.
type StoreConfig struct {
	// Path is the directory for persistent storage. Empty means in-memory.
	Path string `koanf:"path"`

	// Collection is the collection holding guideline passages.
	Collection string `koanf:"collection"`

	// Compress enables gzip compression for stored data.
	Compress bool `koanf:"compress"`
}

// ApplyDefaults sets default values for unset fields.
func (c *StoreConfig) ApplyDefaults() {
	if c.Collection == "" {
		c.Collection = "rental_guidelines"
	}
}

// Validate validates the configuration.
func (c *StoreConfig) Validate() error {
	if c.Collection == "" {
		return fmt.Errorf("%w: collection required", ErrInvalidConfig)
	}
	return nil
}

// Store is a chromem-go backed guideline index.
//
// chromem-go is an embeddable vector database, so no external service is
// needed: the ingest command writes gob files and the pipeline reads them.
// The store is read-only during analysis and safe for concurrent reads.
type Store struct {
	db       *chromem.DB
	embedder Embedder
	config   StoreConfig
	logger   *zap.Logger
}

// NewStore opens (or creates) the index at the configured path.
func NewStore(config StoreConfig, embedder Embedder, logger *zap.Logger) (*Store, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		db  *chromem.DB
		err error
	)
	if config.Path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(config.Path, config.Compress)
		if err != nil {
			return nil, fmt.Errorf("opening index at %s: %w", config.Path, err)
		}
	}

	return &Store{
		db:       db,
		embedder: embedder,
		config:   config,
		logger:   logger,
	}, nil
}

// embeddingFunc adapts the Embedder to chromem's query-time interface.
func (s *Store) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return s.embedder.EmbedQuery(ctx, text)
	}
}

// Retrieve implements Retriever. Results come back in descending
// similarity order. An empty or missing collection is not an error.
func (s *Store) Retrieve(ctx context.Context, query string, k int) ([]Passage, error) {
	ctx, span := tracer.Start(ctx, "knowledge.Retrieve")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", s.config.Collection),
		attribute.Int("k", k),
	)

	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}

	collection := s.db.GetCollection(s.config.Collection, s.embeddingFunc())
	if collection == nil {
		// Nothing ingested yet: legitimately zero passages.
		return []Passage{}, nil
	}

	// chromem requires nResults <= doc count.
	count := collection.Count()
	if count == 0 {
		return []Passage{}, nil
	}
	if k > count {
		k = count
	}

	results, err := collection.Query(ctx, query, k, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: querying %s: %v", ErrRetrievalUnavailable, s.config.Collection, err)
	}

	passages := make([]Passage, len(results))
	for i, r := range results {
		passages[i] = Passage{ID: r.ID, Content: r.Content, Score: r.Similarity}
	}

	span.SetAttributes(attribute.Int("results_count", len(passages)))
	s.logger.Debug("retrieved guideline passages",
		zap.String("collection", s.config.Collection),
		zap.Int("k", k),
		zap.Int("results", len(passages)),
	)
	return passages, nil
}

// Ingest adds guideline documents to the collection. Used by the batch
// ingest command, never by the analysis pipeline.
func (s *Store) Ingest(ctx context.Context, docs []Document) error {
	ctx, span := tracer.Start(ctx, "knowledge.Ingest")
	defer span.End()

	if len(docs) == 0 {
		return fmt.Errorf("%w: nothing to ingest", ErrEmptyDocuments)
	}

	collection, err := s.db.GetOrCreateCollection(s.config.Collection, nil, s.embeddingFunc())
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("creating collection %s: %w", s.config.Collection, err)
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		if d.Content == "" {
			return fmt.Errorf("%w: document %s has no content", ErrEmptyDocuments, d.ID)
		}
		texts[i] = d.Content
	}

	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("embedding documents: %w", err)
	}

	chromemDocs := make([]chromem.Document, len(docs))
	for i, d := range docs {
		chromemDocs[i] = chromem.Document{
			ID:        d.ID,
			Content:   d.Content,
			Metadata:  d.Metadata,
			Embedding: vectors[i],
		}
	}

	if err := collection.AddDocuments(ctx, chromemDocs, 1); err != nil {
		span.RecordError(err)
		return fmt.Errorf("adding documents: %w", err)
	}

	s.logger.Info("ingested guideline documents",
		zap.String("collection", s.config.Collection),
		zap.Int("count", len(docs)),
	)
	return nil
}

// Count returns the number of passages in the collection.
func (s *Store) Count() int {
	collection := s.db.GetCollection(s.config.Collection, s.embeddingFunc())
	if collection == nil {
		return 0
	}
	return collection.Count()
}
