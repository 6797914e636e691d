package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ysksm/jd-sub000/internal/jsonvalue"
	"github.com/ysksm/jd-sub000/internal/repo"
	"github.com/ysksm/jd-sub000/internal/store/storetest"
	"github.com/ysksm/jd-sub000/internal/types"
)

func seedIssueForEmbedding(t *testing.T, ir *repo.SQLIssueRepository, id, key string) {
	t.Helper()
	require.NoError(t, ir.BatchUpsert(context.Background(), []types.Issue{{
		ID: id, ProjectID: "PROJ", Key: key, Summary: "s-" + key, Status: "Open",
		CreatedDate: time.Now(), UpdatedDate: time.Now(),
		RawPayload: jsonvalue.EmptyObject(),
	}}))
}

func TestEmbeddingsUpsertAndSemanticSearchOrdersByDistance(t *testing.T) {
	ctx := context.Background()
	s := storetest.Open(t)
	ir := &repo.SQLIssueRepository{DB: s.DB()}
	er := &repo.SQLEmbeddingsRepository{DB: s.DB()}
	require.NoError(t, er.InitSchema(ctx, repo.EmbeddingDimensions))

	seedIssueForEmbedding(t, ir, "1", "PROJ-1")
	seedIssueForEmbedding(t, ir, "2", "PROJ-2")

	near := make([]float32, repo.EmbeddingDimensions)
	near[0] = 1
	far := make([]float32, repo.EmbeddingDimensions)
	far[0] = -1

	require.NoError(t, er.UpsertEmbedding(ctx, types.IssueEmbedding{
		IssueID: "1", IssueKey: "PROJ-1", Embedding: near, Dimensions: repo.EmbeddingDimensions,
	}))
	require.NoError(t, er.UpsertEmbedding(ctx, types.IssueEmbedding{
		IssueID: "2", IssueKey: "PROJ-2", Embedding: far, Dimensions: repo.EmbeddingDimensions,
	}))

	has, err := er.HasEmbedding(ctx, "1")
	require.NoError(t, err)
	require.True(t, has)

	results, err := er.SemanticSearch(ctx, near, "", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "PROJ-1", results[0].IssueKey)
}

func TestInitSchemaIsIdempotentAtSameDimensionButRejectsAWidthChange(t *testing.T) {
	ctx := context.Background()
	s := storetest.Open(t)
	er := &repo.SQLEmbeddingsRepository{DB: s.DB()}

	require.NoError(t, er.InitSchema(ctx, 1536))
	require.NoError(t, er.InitSchema(ctx, 1536)) // repeat call at the same width is a no-op

	err := er.InitSchema(ctx, 384)
	require.Error(t, err)
}
