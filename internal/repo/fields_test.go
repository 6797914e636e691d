package repo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ysksm/jd-sub000/internal/repo"
	"github.com/ysksm/jd-sub000/internal/store/storetest"
	"github.com/ysksm/jd-sub000/internal/types"
)

func TestFieldUpsertIsIdempotentAndListOrdersByID(t *testing.T) {
	ctx := context.Background()
	s := storetest.Open(t)
	r := &repo.SQLFieldRepository{DB: s.DB()}

	fields := []types.JiraField{
		{ID: "customfield_10020", Key: "customfield_10020", Name: "Sprint", Custom: true, SchemaType: "array", SchemaItems: "string"},
		{ID: "summary", Key: "summary", Name: "Summary", SchemaType: "string"},
	}
	require.NoError(t, r.Upsert(ctx, fields))
	require.NoError(t, r.Upsert(ctx, fields))

	got, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "customfield_10020", got[0].ID)
	require.Equal(t, "summary", got[1].ID)
}
