package fieldschema_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ysksm/jd-sub000/internal/fieldschema"
	"github.com/ysksm/jd-sub000/internal/jsonvalue"
	"github.com/ysksm/jd-sub000/internal/repo"
	"github.com/ysksm/jd-sub000/internal/store/storetest"
	"github.com/ysksm/jd-sub000/internal/types"
)

func seedIssue(t *testing.T, ir *repo.SQLIssueRepository, id, projectID, key, rawJSON string) {
	t.Helper()
	raw, err := jsonvalue.Parse([]byte(rawJSON))
	require.NoError(t, err)
	require.NoError(t, ir.BatchUpsert(context.Background(), []types.Issue{{
		ID: id, ProjectID: projectID, Key: key, Summary: "fallback summary",
		Status: "Open", RawPayload: raw,
	}}))
}

func hasColumn(t *testing.T, db *sql.DB, table, column string) bool {
	t.Helper()
	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var cid, notnull, pk int
		var name, ctype string
		var dflt sql.NullString
		require.NoError(t, rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk))
		if name == column {
			return true
		}
	}
	return false
}

func TestSyncFieldsAddsColumnForNewCustomField(t *testing.T) {
	s := storetest.Open(t)
	ctx := context.Background()
	fr := &repo.SQLFieldRepository{DB: s.DB()}
	exp := fieldschema.New(s.DB(), fr)

	fields := []types.JiraField{
		{ID: "customfield_10001", Name: "Story Points", Custom: true, SchemaType: "number"},
		{ID: "summary", Name: "Summary", Custom: false, SchemaType: "string"},
	}
	require.NoError(t, exp.SyncFields(ctx, fields))

	require.True(t, hasColumn(t, s.DB(), "issues_expanded", "customfield_10001"))

	listed, err := fr.List(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 2)
}

func TestSyncFieldsIsIdempotent(t *testing.T) {
	s := storetest.Open(t)
	ctx := context.Background()
	fr := &repo.SQLFieldRepository{DB: s.DB()}
	exp := fieldschema.New(s.DB(), fr)

	fields := []types.JiraField{
		{ID: "customfield_10002", Name: "Team", Custom: true, SchemaType: "string"},
	}
	require.NoError(t, exp.SyncFields(ctx, fields))
	require.NoError(t, exp.SyncFields(ctx, fields))
	require.True(t, hasColumn(t, s.DB(), "issues_expanded", "customfield_10002"))
}

func TestSyncFieldsSkipsBaseAndKnownFields(t *testing.T) {
	s := storetest.Open(t)
	ctx := context.Background()
	fr := &repo.SQLFieldRepository{DB: s.DB()}
	exp := fieldschema.New(s.DB(), fr)

	fields := []types.JiraField{
		{ID: "issuetype", Name: "Issue Type", Custom: true, SchemaType: "string"},
		{ID: "project_id", Name: "Project", Custom: true, SchemaType: "string"},
	}
	require.NoError(t, exp.SyncFields(ctx, fields))
	require.False(t, hasColumn(t, s.DB(), "issues_expanded", "issuetype"))
	require.False(t, hasColumn(t, s.DB(), "issues_expanded", "project_id"))
}

func TestExpandIssuesProjectsCoreAndCustomFields(t *testing.T) {
	s := storetest.Open(t)
	ctx := context.Background()
	ir := &repo.SQLIssueRepository{DB: s.DB()}
	fr := &repo.SQLFieldRepository{DB: s.DB()}
	exp := fieldschema.New(s.DB(), fr)

	require.NoError(t, exp.SyncFields(ctx, []types.JiraField{
		{ID: "customfield_10001", Name: "Story Points", Custom: true, SchemaType: "number"},
	}))

	seedIssue(t, ir, "1", "PROJ", "PROJ-1", `{
		"key": "PROJ-1",
		"fields": {
			"summary": "Fix login bug",
			"status": {"name": "In Progress"},
			"issuetype": {"name": "Bug"},
			"labels": ["sso", "login"],
			"customfield_10001": 5
		}
	}`)

	require.NoError(t, exp.ExpandIssues(ctx, nil))

	var summary, status, issueType string
	var customVal sql.NullFloat64
	row := s.DB().QueryRowContext(ctx,
		`SELECT summary, status, issue_type, customfield_10001 FROM issues_expanded WHERE id = ?`, "1")
	require.NoError(t, row.Scan(&summary, &status, &issueType, &customVal))
	require.Equal(t, "Fix login bug", summary)
	require.Equal(t, "In Progress", status)
	require.Equal(t, "Bug", issueType)
	require.True(t, customVal.Valid)
	require.Equal(t, 5.0, customVal.Float64)
}

func TestExpandIssuesFiltersByProject(t *testing.T) {
	s := storetest.Open(t)
	ctx := context.Background()
	ir := &repo.SQLIssueRepository{DB: s.DB()}
	fr := &repo.SQLFieldRepository{DB: s.DB()}
	exp := fieldschema.New(s.DB(), fr)

	seedIssue(t, ir, "1", "PROJA", "PROJA-1", `{"fields": {"summary": "a"}}`)
	seedIssue(t, ir, "2", "PROJB", "PROJB-1", `{"fields": {"summary": "b"}}`)

	projectA := "PROJA"
	require.NoError(t, exp.ExpandIssues(ctx, &projectA))

	var count int
	require.NoError(t, s.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM issues_expanded`).Scan(&count))
	require.Equal(t, 1, count)
}

func TestExpandIssuesIsReRunnable(t *testing.T) {
	s := storetest.Open(t)
	ctx := context.Background()
	ir := &repo.SQLIssueRepository{DB: s.DB()}
	fr := &repo.SQLFieldRepository{DB: s.DB()}
	exp := fieldschema.New(s.DB(), fr)

	seedIssue(t, ir, "1", "PROJ", "PROJ-1", `{"fields": {"summary": "first"}}`)
	require.NoError(t, exp.ExpandIssues(ctx, nil))
	require.NoError(t, exp.ExpandIssues(ctx, nil))

	var count int
	require.NoError(t, s.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM issues_expanded`).Scan(&count))
	require.Equal(t, 1, count)
}
