package knowledge_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/taxease/rentadvisor/internal/knowledge"
)

// testEmbedder returns deterministic normalized vectors so similarity
// ordering is stable across runs.
type testEmbedder struct {
	vectorSize int
}

func (e *testEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = e.makeEmbedding(text)
	}
	return vectors, nil
}

func (e *testEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.makeEmbedding(text), nil
}

func (e *testEmbedder) makeEmbedding(text string) []float32 {
	embedding := make([]float32, e.vectorSize)
	hash := 0
	for _, c := range text {
		hash = (hash*31 + int(c)) % 1000
	}
	var sumSq float32
	for i := range embedding {
		embedding[i] = float32((hash+i)%100) / 100.0
		sumSq += embedding[i] * embedding[i]
	}
	// chromem requires unit vectors.
	if sumSq > 0 {
		norm := 1.0 / sqrt32(sumSq)
		for i := range embedding {
			embedding[i] *= norm
		}
	}
	return embedding
}

func sqrt32(x float32) float32 {
	if x <= 0 {
		return 0
	}
	guess := x
	for i := 0; i < 20; i++ {
		guess = (guess + x/guess) / 2
	}
	return guess
}

func newTestStore(t *testing.T) *knowledge.Store {
	t.Helper()
	store, err := knowledge.NewStore(
		knowledge.StoreConfig{Path: t.TempDir(), Collection: "test_guidelines"},
		&testEmbedder{vectorSize: 8},
		zap.NewNop(),
	)
	require.NoError(t, err)
	return store
}

func TestStore_RetrieveEmptyCorpus(t *testing.T) {
	store := newTestStore(t)

	passages, err := store.Retrieve(context.Background(), "allowable rental expenses", 5)
	require.NoError(t, err)
	assert.Empty(t, passages)
}

func TestStore_IngestAndRetrieve(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	docs := []knowledge.Document{
		{ID: "g1", Content: "Property tax paid on a rented property is deductible."},
		{ID: "g2", Content: "Penalties and fines are not deductible expenses."},
		{ID: "g3", Content: "Mortgage interest incurred to purchase the property is deductible."},
	}
	require.NoError(t, store.Ingest(ctx, docs))
	assert.Equal(t, 3, store.Count())

	passages, err := store.Retrieve(ctx, "is property tax deductible", 2)
	require.NoError(t, err)
	require.Len(t, passages, 2)
	// Descending similarity order.
	assert.GreaterOrEqual(t, passages[0].Score, passages[1].Score)
}

func TestStore_RetrieveCapsKAtCorpusSize(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Ingest(ctx, []knowledge.Document{
		{ID: "g1", Content: "Fire insurance premiums are deductible."},
	}))

	passages, err := store.Retrieve(ctx, "insurance", 5)
	require.NoError(t, err)
	assert.Len(t, passages, 1)
}

func TestStore_IngestValidation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.Ingest(ctx, nil)
	require.ErrorIs(t, err, knowledge.ErrEmptyDocuments)

	err = store.Ingest(ctx, []knowledge.Document{{ID: "empty"}})
	require.ErrorIs(t, err, knowledge.ErrEmptyDocuments)
}

func TestStore_RetrieveInputValidation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Retrieve(ctx, "", 5)
	require.Error(t, err)

	_, err = store.Retrieve(ctx, "query", 0)
	require.Error(t, err)
}

func TestNewStore_RequiresEmbedder(t *testing.T) {
	_, err := knowledge.NewStore(knowledge.StoreConfig{}, nil, nil)
	require.ErrorIs(t, err, knowledge.ErrInvalidConfig)
}
