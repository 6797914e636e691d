package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ysksm/jd-sub000/internal/embedding/provider/openai"
)

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := openai.New("", "", "")
	require.Error(t, err)
}

func TestEmbedBatchSendsBearerAuthAndReturnsVectorsInIndexOrder(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")

		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, []string{"a", "b"}, req.Input)

		// Respond out of order to exercise index-based reassembly.
		resp := map[string]any{"data": []map[string]any{
			{"embedding": []float32{2}, "index": 1},
			{"embedding": []float32{1}, "index": 0},
		}}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	p, err := openai.New(server.URL, "secret-key", "")
	require.NoError(t, err)

	vectors, err := p.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Equal(t, "Bearer secret-key", gotAuth)
	require.Equal(t, []float32{1}, vectors[0])
	require.Equal(t, []float32{2}, vectors[1])
}

func TestEmbedReturnsSingleVector(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{"data": []map[string]any{{"embedding": []float32{9, 8}, "index": 0}}}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	p, err := openai.New(server.URL, "secret-key", "")
	require.NoError(t, err)

	vec, err := p.Embed(context.Background(), "hello")
	require.NoError(t, err)
	require.Equal(t, []float32{9, 8}, vec)
	require.Equal(t, "openai", p.ProviderName())
}

func TestEmbedBatchSurfacesNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid api key"}`))
	}))
	defer server.Close()

	p, err := openai.New(server.URL, "bad-key", "")
	require.NoError(t, err)

	_, err = p.EmbedBatch(context.Background(), []string{"a"})
	require.Error(t, err)
}
