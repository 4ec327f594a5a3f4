package research_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxease/rentadvisor/internal/research"
)

func newClient(t *testing.T, handler http.HandlerFunc) *research.SerpClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := research.NewSerpClient(research.Config{
		APIKey:  "test-key",
		BaseURL: srv.URL,
	}, nil)
	require.NoError(t, err)
	return client
}

func TestSerpClient_TopResult(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "google", r.URL.Query().Get("engine"))
		assert.Equal(t, "Singapore", r.URL.Query().Get("location"))
		assert.Equal(t, "is renovation cost deductible", r.URL.Query().Get("q"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"organic_results":[
			{"title":"IRAS rental expenses","snippet":"Renovation costs are capital in nature","link":"https://example.org/a"},
			{"title":"Second","snippet":"other","link":"https://example.org/b"}
		]}`))
	})

	result, err := client.Search(context.Background(), "is renovation cost deductible")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "IRAS rental expenses", result.Title)
	assert.Equal(t, "https://example.org/a", result.Link)
}

func TestSerpClient_NoResults(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"organic_results":[]}`))
	})

	result, err := client.Search(context.Background(), "anything")
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestSerpClient_ServerError(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.Search(context.Background(), "anything")
	require.ErrorIs(t, err, research.ErrResearchUnavailable)
}

func TestSerpClient_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	client, err := research.NewSerpClient(research.Config{
		APIKey:  "test-key",
		BaseURL: srv.URL,
	}, nil)
	require.NoError(t, err)

	_, err = client.Search(context.Background(), "anything")
	require.ErrorIs(t, err, research.ErrResearchUnavailable)
}

func TestNewSerpClient_RequiresAPIKey(t *testing.T) {
	_, err := research.NewSerpClient(research.Config{}, nil)
	require.ErrorIs(t, err, research.ErrInvalidConfig)
}
