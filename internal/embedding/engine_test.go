package embedding_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ysksm/jd-sub000/internal/embedding"
	"github.com/ysksm/jd-sub000/internal/embedding/provider/openai"
	"github.com/ysksm/jd-sub000/internal/jsonvalue"
	"github.com/ysksm/jd-sub000/internal/repo"
	"github.com/ysksm/jd-sub000/internal/store/storetest"
	"github.com/ysksm/jd-sub000/internal/types"
)

// fakeEmbeddingServer serves an OpenAI-compatible /embeddings endpoint,
// returning one deterministic 1536-wide vector per input text, seeded by
// the text's length so distinct texts embed to distinct vectors.
func fakeEmbeddingServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		type datum struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		data := make([]datum, len(req.Input))
		for i, text := range req.Input {
			vec := make([]float32, repo.EmbeddingDimensions)
			vec[0] = float32(len(text))
			data[i] = datum{Embedding: vec, Index: i}
		}

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{"data": data}))
	}))
}

func seedIssue(t *testing.T, ir *repo.SQLIssueRepository, id, key, summary string) {
	t.Helper()
	require.NoError(t, ir.BatchUpsert(context.Background(), []types.Issue{{
		ID: id, ProjectID: "PROJ", Key: key, Summary: summary, Status: "Open",
		RawPayload: jsonvalue.EmptyObject(),
	}}))
}

func newTestEngine(t *testing.T, serverURL string) (*embedding.Engine, *repo.SQLIssueRepository, *repo.SQLEmbeddingsRepository) {
	t.Helper()
	s := storetest.Open(t)
	ir := &repo.SQLIssueRepository{DB: s.DB()}
	er := &repo.SQLEmbeddingsRepository{DB: s.DB()}

	p, err := openai.New(serverURL, "test-key", "")
	require.NoError(t, err)

	eng, err := embedding.New(ir, er, p)
	require.NoError(t, err)
	return eng, ir, er
}

func TestEngineRunGeneratesEmbeddingsForAllCandidateIssues(t *testing.T) {
	server := fakeEmbeddingServer(t)
	defer server.Close()
	ctx := context.Background()

	eng, ir, er := newTestEngine(t, server.URL)
	seedIssue(t, ir, "1", "PROJ-1", "Fix login bug")
	seedIssue(t, ir, "2", "PROJ-2", "Improve caching")

	result, err := eng.Run(ctx, embedding.Params{})
	require.NoError(t, err)
	require.Equal(t, 2, result.TotalIssues)
	require.Equal(t, 2, result.EmbeddingsGenerated)
	require.Equal(t, 0, result.Errors)

	has, err := er.HasEmbedding(ctx, "1")
	require.NoError(t, err)
	require.True(t, has)
}

func TestEngineRunSkipsExistingEmbeddingsUnlessForceRegenerate(t *testing.T) {
	server := fakeEmbeddingServer(t)
	defer server.Close()
	ctx := context.Background()

	eng, ir, _ := newTestEngine(t, server.URL)
	seedIssue(t, ir, "1", "PROJ-1", "Fix login bug")

	_, err := eng.Run(ctx, embedding.Params{})
	require.NoError(t, err)

	result, err := eng.Run(ctx, embedding.Params{})
	require.NoError(t, err)
	require.Equal(t, 1, result.TotalIssues)
	require.Equal(t, 0, result.EmbeddingsGenerated)
	require.Equal(t, 1, result.EmbeddingsSkipped)

	result, err = eng.Run(ctx, embedding.Params{ForceRegenerate: true})
	require.NoError(t, err)
	require.Equal(t, 1, result.EmbeddingsGenerated)
	require.Equal(t, 0, result.EmbeddingsSkipped)
}

func TestEngineRunNoCandidatesReturnsZeroResult(t *testing.T) {
	server := fakeEmbeddingServer(t)
	defer server.Close()
	ctx := context.Background()

	eng, _, _ := newTestEngine(t, server.URL)
	result, err := eng.Run(ctx, embedding.Params{})
	require.NoError(t, err)
	require.Equal(t, 0, result.TotalIssues)
}

func TestEngineSearchEmbedsQueryAndReturnsResults(t *testing.T) {
	server := fakeEmbeddingServer(t)
	defer server.Close()
	ctx := context.Background()

	eng, ir, _ := newTestEngine(t, server.URL)
	seedIssue(t, ir, "1", "PROJ-1", "Fix login bug")

	_, err := eng.Run(ctx, embedding.Params{})
	require.NoError(t, err)

	results, err := eng.Search(ctx, "login", nil, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "PROJ-1", results[0].IssueKey)
}

// TestRunRejectsProviderDimensionMismatchAgainstExistingStore covers the
// case a hardcoded 1536-only check used to guard at construction time:
// here the store already holds vectors at one provider's width, and a
// second Engine built against a different-width provider fails at Run
// instead of silently leaving (or corrupting) the original vec0 table.
func TestRunRejectsProviderDimensionMismatchAgainstExistingStore(t *testing.T) {
	server := fakeEmbeddingServer(t)
	defer server.Close()
	ctx := context.Background()

	s := storetest.Open(t)
	ir := &repo.SQLIssueRepository{DB: s.DB()}
	er := &repo.SQLEmbeddingsRepository{DB: s.DB()}
	seedIssue(t, ir, "1", "PROJ-1", "Fix login bug")

	p, err := openai.New(server.URL, "test-key", "")
	require.NoError(t, err)
	eng, err := embedding.New(ir, er, p)
	require.NoError(t, err)
	_, err = eng.Run(ctx, embedding.Params{})
	require.NoError(t, err)

	mismatched, err := embedding.New(ir, er, mismatchedProvider{})
	require.NoError(t, err)
	_, err = mismatched.Run(ctx, embedding.Params{})
	require.Error(t, err)
}

// mismatchedProvider reports a dimension that disagrees with a vec0
// table another provider already created, exercising InitSchema's
// rejection path.
type mismatchedProvider struct{}

func (mismatchedProvider) Embed(context.Context, string) ([]float32, error) { return nil, nil }
func (mismatchedProvider) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, nil
}
func (mismatchedProvider) Dimension() int       { return 384 }
func (mismatchedProvider) ProviderName() string { return "mismatched" }
func (mismatchedProvider) ModelName() string    { return "mismatched-model" }

// semanticTopics assigns each input text a position in a tiny concept
// space: dimension 0 for authentication-related text, 1 for display
// preference text, 2 for generic bug language. Distinct topics land on
// orthogonal axes and shared topics land on the same axis, so cosine
// distance genuinely reflects similarity instead of text length.
func semanticTopics(text string) []float32 {
	lower := strings.ToLower(text)
	vec := make([]float32, repo.EmbeddingDimensions)
	if strings.Contains(lower, "login") || strings.Contains(lower, "sso") || strings.Contains(lower, "sign-on") {
		vec[0] = 1
	}
	if strings.Contains(lower, "dark") || strings.Contains(lower, "preference") || strings.Contains(lower, "saved") {
		vec[1] = 1
	}
	if strings.Contains(lower, "bug") || strings.Contains(lower, "fail") {
		vec[2] = 1
	}
	return vec
}

// fakeSemanticEmbeddingServer serves an OpenAI-compatible /embeddings
// endpoint whose vectors encode real topical similarity via
// semanticTopics, unlike fakeEmbeddingServer's length-seeded stand-ins.
func fakeSemanticEmbeddingServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		type datum struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		data := make([]datum, len(req.Input))
		for i, text := range req.Input {
			data[i] = datum{Embedding: semanticTopics(text), Index: i}
		}

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{"data": data}))
	}))
}

// TestSearchRanksTopicallyCloserIssueFirst covers the ranking scenario: after
// embedding "login fails with SSO" and "dark-mode preference not saved",
// searching "single sign-on bug" ranks the login issue first with a
// strictly smaller cosine distance than the dark-mode issue.
func TestSearchRanksTopicallyCloserIssueFirst(t *testing.T) {
	server := fakeSemanticEmbeddingServer(t)
	defer server.Close()
	ctx := context.Background()

	eng, ir, _ := newTestEngine(t, server.URL)
	seedIssue(t, ir, "1", "PROJ-1", "login fails with SSO")
	seedIssue(t, ir, "2", "PROJ-2", "dark-mode preference not saved")

	_, err := eng.Run(ctx, embedding.Params{})
	require.NoError(t, err)

	results, err := eng.Search(ctx, "single sign-on bug", nil, 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "PROJ-1", results[0].IssueKey)
	require.Equal(t, "PROJ-2", results[1].IssueKey)
	require.Less(t, results[0].Distance, results[1].Distance)
}
