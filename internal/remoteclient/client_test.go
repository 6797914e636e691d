package remoteclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ysksm/jd-sub000/internal/errs"
	"github.com/ysksm/jd-sub000/internal/remoteclient"
)

func TestFetchIssuesPageParsesIssuesAndPaginationToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rest/api/3/search/jql", r.URL.Path)
		require.Equal(t, "Basic YWxpY2U6dG9rZW4=", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"isLast":        true,
			"nextPageToken": "",
			"issues": []json.RawMessage{
				json.RawMessage(`{"id":"1","key":"PROJ-1","fields":{"summary":"a"}}`),
				json.RawMessage(`{"id":"2","key":"PROJ-2","fields":{}}`),
			},
		})
	}))
	defer srv.Close()

	c := remoteclient.New(srv.URL, "alice", "token")
	page, err := c.FetchIssuesPage(context.Background(), remoteclient.IssuesPageParams{ProjectKey: "PROJ"})
	require.NoError(t, err)
	require.True(t, page.IsLast)
	require.Len(t, page.Issues, 1) // the second record lacks summary and is skipped
	require.Equal(t, "PROJ-1", page.Issues[0].Key)
}

func TestFetchCountReturnsTotal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"total": 42})
	}))
	defer srv.Close()

	c := remoteclient.New(srv.URL, "alice", "token")
	total, err := c.FetchCount(context.Background(), "PROJ")
	require.NoError(t, err)
	require.Equal(t, 42, total)
}

func TestDoRequestSurfacesNonSuccessAsExternalService(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := remoteclient.New(srv.URL, "alice", "token")
	_, err := c.FetchCount(context.Background(), "PROJ")
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.ExternalService))
}

func TestFetchLabelsDedupesAcrossIssues(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issues": []map[string]any{
				{"fields": map[string]any{"labels": []string{"backend", "urgent"}}},
				{"fields": map[string]any{"labels": []string{"backend"}}},
			},
		})
	}))
	defer srv.Close()

	c := remoteclient.New(srv.URL, "alice", "token")
	labels, err := c.FetchLabels(context.Background(), "PROJ", "100")
	require.NoError(t, err)
	require.Len(t, labels, 2)
}

func TestCreateIssueReturnsKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "1", "key": "PROJ-9"})
	}))
	defer srv.Close()

	c := remoteclient.New(srv.URL, "alice", "token")
	key, err := c.CreateIssue(context.Background(), map[string]any{"summary": "new"})
	require.NoError(t, err)
	require.Equal(t, "PROJ-9", key)
}
