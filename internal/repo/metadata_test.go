package repo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ysksm/jd-sub000/internal/repo"
	"github.com/ysksm/jd-sub000/internal/store/storetest"
	"github.com/ysksm/jd-sub000/internal/types"
)

func TestUpsertStatusesIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := storetest.Open(t)
	r := &repo.SQLMetadataRepository{DB: s.DB()}

	rows := []types.Status{{ProjectID: "PROJ", Name: "Open", Category: "todo"}}
	require.NoError(t, r.UpsertStatuses(ctx, rows))
	require.NoError(t, r.UpsertStatuses(ctx, rows))

	var count int
	require.NoError(t, s.DB().QueryRow(`SELECT COUNT(*) FROM metadata_statuses`).Scan(&count))
	require.Equal(t, 1, count)
}

func TestUpsertLabelsDeduplicates(t *testing.T) {
	ctx := context.Background()
	s := storetest.Open(t)
	r := &repo.SQLMetadataRepository{DB: s.DB()}

	rows := []types.Label{{ProjectID: "PROJ", Name: "backend"}, {ProjectID: "PROJ", Name: "backend"}}
	require.NoError(t, r.UpsertLabels(ctx, rows))

	var count int
	require.NoError(t, s.DB().QueryRow(`SELECT COUNT(*) FROM metadata_labels`).Scan(&count))
	require.Equal(t, 1, count)
}
