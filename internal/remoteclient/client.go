// Package remoteclient speaks HTTP/JSON to the issue tracker: keyset issue
// search, metadata fetch, and best-effort write-back, with bounded
// retry/backoff.
package remoteclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ysksm/jd-sub000/internal/errs"
	"github.com/ysksm/jd-sub000/internal/types"
)

// Client wraps an *http.Client pointed at one tracker instance.
type Client struct {
	BaseURL      string
	Username     string
	APIKey       string
	ParseOptions ParseOptions
	HTTPClient   *http.Client
}

// New constructs a Client with the default parse options and a 30s
// transport timeout, matching the tracker's own client defaults.
func New(baseURL, username, apiKey string) *Client {
	return &Client{
		BaseURL:      strings.TrimSuffix(baseURL, "/"),
		Username:     username,
		APIKey:       apiKey,
		ParseOptions: DefaultParseOptions(),
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// IssuesPageParams requests one page of the keyset issue search.
type IssuesPageParams struct {
	ProjectKey    string
	Since         *time.Time
	MaxResults    int
	NextPageToken string
}

// Page is one keyset page of the issue search, plus the changelog entries
// embedded in its issues.
type Page struct {
	Issues        []types.Issue
	History       []types.ChangeHistoryItem
	IsLast        bool
	NextPageToken string
}

// FetchIssuesPage requests one page of issues, oldest update first
// (`ORDER BY updated ASC, key ASC`), with the changelog expanded inline.
func (c *Client) FetchIssuesPage(ctx context.Context, params IssuesPageParams) (Page, error) {
	jql := fmt.Sprintf("project = %s", params.ProjectKey)
	if params.Since != nil {
		jql += fmt.Sprintf(" AND updated >= \"%s\"", params.Since.UTC().Format("2006-01-02 15:04"))
	}
	jql += " ORDER BY updated ASC, key ASC"

	maxResults := params.MaxResults
	if maxResults <= 0 {
		maxResults = 100
	}

	q := url.Values{
		"jql":        {jql},
		"fields":     {"*navigable,created,updated"},
		"expand":     {"changelog"},
		"maxResults": {fmt.Sprintf("%d", maxResults)},
	}
	if params.NextPageToken != "" {
		q.Set("nextPageToken", params.NextPageToken)
	}

	var result struct {
		Issues        []json.RawMessage `json:"issues"`
		IsLast        bool              `json:"isLast"`
		NextPageToken string            `json:"nextPageToken"`
	}
	if err := c.getJSON(ctx, DataQueryPolicy, "/search/jql?"+q.Encode(), &result); err != nil {
		return Page{}, err
	}

	page := Page{IsLast: result.IsLast, NextPageToken: result.NextPageToken}
	for _, raw := range result.Issues {
		issue, history, ok, err := ParseIssue(raw, c.ParseOptions)
		if err != nil {
			log.Printf("remoteclient: skipping malformed issue record: %v", err)
			continue
		}
		if !ok {
			continue
		}
		page.Issues = append(page.Issues, issue)
		page.History = append(page.History, history...)
	}

	return page, nil
}

// FetchCount returns the total issue count for a project, used only to size
// progress reporting; the page loop does not depend on it being exact.
func (c *Client) FetchCount(ctx context.Context, projectKey string) (int, error) {
	jql := fmt.Sprintf("project = %s", projectKey)
	q := url.Values{"jql": {jql}}

	var result struct {
		Total int `json:"total"`
	}
	if err := c.getJSON(ctx, DataQueryPolicy, "/search/jql/count?"+q.Encode(), &result); err != nil {
		return 0, err
	}
	return result.Total, nil
}

// Metadata is the set of project dimension catalogs fetched before a sync
// completes.
type Metadata struct {
	Statuses    []types.Status
	Priorities  []types.Priority
	IssueTypes  []types.IssueType
	Labels      []types.Label
	Components  []types.Component
	FixVersions []types.FixVersion
	Fields      []types.JiraField
}

// FetchLabels discovers the label catalog for a project. The tracker has no
// label-catalog endpoint, so labels are discovered the way the remote's own
// sync tooling does it: search for issues carrying at least one label and
// dedupe the values observed.
func (c *Client) FetchLabels(ctx context.Context, projectKey, projectID string) ([]types.Label, error) {
	jql := fmt.Sprintf("project = %s AND labels is not EMPTY", projectKey)
	q := url.Values{"jql": {jql}, "fields": {"labels"}, "maxResults": {"1000"}}

	var result struct {
		Issues []struct {
			Fields struct {
				Labels []string `json:"labels"`
			} `json:"fields"`
		} `json:"issues"`
	}
	if err := c.getJSON(ctx, DataQueryPolicy, "/search/jql?"+q.Encode(), &result); err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var labels []types.Label
	for _, issue := range result.Issues {
		for _, name := range issue.Fields.Labels {
			if seen[name] {
				continue
			}
			seen[name] = true
			labels = append(labels, types.Label{ProjectID: projectID, Name: name})
		}
	}
	return labels, nil
}

// FetchMetadata fetches statuses, priorities, issue types, labels,
// components, versions, and the field catalog for a project in sequence.
func (c *Client) FetchMetadata(ctx context.Context, projectKey, projectID string) (Metadata, error) {
	var md Metadata

	var statuses []struct {
		Name           string `json:"name"`
		StatusCategory struct {
			Key string `json:"key"`
		} `json:"statusCategory"`
	}
	if err := c.getJSON(ctx, DataQueryPolicy, "/project/"+url.PathEscape(projectKey)+"/statuses", &statuses); err != nil {
		return Metadata{}, err
	}
	for _, s := range statuses {
		md.Statuses = append(md.Statuses, types.Status{ProjectID: projectID, Name: s.Name, Category: s.StatusCategory.Key})
	}

	var priorities []struct {
		Name    string `json:"name"`
		IconURL string `json:"iconUrl"`
	}
	if err := c.getJSON(ctx, DataQueryPolicy, "/priority", &priorities); err != nil {
		return Metadata{}, err
	}
	for _, p := range priorities {
		md.Priorities = append(md.Priorities, types.Priority{ProjectID: projectID, Name: p.Name, IconURL: p.IconURL})
	}

	var issueTypes []struct {
		Name    string `json:"name"`
		Subtask bool   `json:"subtask"`
	}
	if err := c.getJSON(ctx, DataQueryPolicy, "/issuetype/project?projectId="+url.QueryEscape(projectID), &issueTypes); err != nil {
		return Metadata{}, err
	}
	for _, it := range issueTypes {
		md.IssueTypes = append(md.IssueTypes, types.IssueType{ProjectID: projectID, Name: it.Name, Subtask: it.Subtask})
	}

	labels, err := c.FetchLabels(ctx, projectKey, projectID)
	if err != nil {
		return Metadata{}, err
	}
	md.Labels = labels

	var components []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := c.getJSON(ctx, DataQueryPolicy, "/project/"+url.PathEscape(projectKey)+"/components", &components); err != nil {
		return Metadata{}, err
	}
	for _, comp := range components {
		md.Components = append(md.Components, types.Component{ProjectID: projectID, Name: comp.Name, Description: comp.Description})
	}

	var versions []struct {
		Name     string `json:"name"`
		Released bool   `json:"released"`
		Archived bool   `json:"archived"`
	}
	if err := c.getJSON(ctx, DataQueryPolicy, "/project/"+url.PathEscape(projectKey)+"/versions", &versions); err != nil {
		return Metadata{}, err
	}
	for _, v := range versions {
		md.FixVersions = append(md.FixVersions, types.FixVersion{ProjectID: projectID, Name: v.Name, Released: v.Released, Archived: v.Archived})
	}

	var fields []struct {
		ID     string `json:"id"`
		Key    string `json:"key"`
		Name   string `json:"name"`
		Custom bool   `json:"custom"`
		Schema struct {
			Type   string `json:"type"`
			Items  string `json:"items"`
			Custom string `json:"custom"`
		} `json:"schema"`
	}
	if err := c.getJSON(ctx, DataQueryPolicy, "/field", &fields); err != nil {
		return Metadata{}, err
	}
	for _, f := range fields {
		md.Fields = append(md.Fields, types.JiraField{
			ID: f.ID, Key: f.Key, Name: f.Name, Custom: f.Custom,
			SchemaType: f.Schema.Type, SchemaItems: f.Schema.Items, SchemaCustom: f.Schema.Custom,
		})
	}

	return md, nil
}

// CreateIssue creates an issue with the given field map. Best-effort: a
// single attempt, no retry/backoff, since write-back is test scaffolding
// rather than the sync path.
func (c *Client) CreateIssue(ctx context.Context, fields map[string]any) (string, error) {
	payload, err := json.Marshal(map[string]any{"fields": fields})
	if err != nil {
		return "", errs.Wrap(errs.Validation, "remoteclient.CreateIssue", err)
	}

	var created struct {
		Key string `json:"key"`
	}
	if err := c.doOnce(ctx, http.MethodPost, "/issue", payload, &created); err != nil {
		return "", err
	}
	return created.Key, nil
}

// UpdateIssue updates a subset of fields on an existing issue. Best-effort,
// single attempt.
func (c *Client) UpdateIssue(ctx context.Context, key string, fields map[string]any) error {
	payload, err := json.Marshal(map[string]any{"fields": fields})
	if err != nil {
		return errs.Wrap(errs.Validation, "remoteclient.UpdateIssue", err)
	}
	return c.doOnce(ctx, http.MethodPut, "/issue/"+url.PathEscape(key), payload, nil)
}

// Transition describes one available workflow transition.
type Transition struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Transitions lists the workflow transitions currently available on an
// issue.
func (c *Client) Transitions(ctx context.Context, key string) ([]Transition, error) {
	var result struct {
		Transitions []Transition `json:"transitions"`
	}
	if err := c.getJSON(ctx, DataQueryPolicy, "/issue/"+url.PathEscape(key)+"/transitions", &result); err != nil {
		return nil, err
	}
	return result.Transitions, nil
}

// ApplyTransition moves an issue through a named workflow transition.
// Best-effort, single attempt.
func (c *Client) ApplyTransition(ctx context.Context, key, transitionID string) error {
	payload, err := json.Marshal(map[string]any{"transition": map[string]string{"id": transitionID}})
	if err != nil {
		return errs.Wrap(errs.Validation, "remoteclient.ApplyTransition", err)
	}
	return c.doOnce(ctx, http.MethodPost, "/issue/"+url.PathEscape(key)+"/transitions", payload, nil)
}

func (c *Client) getJSON(ctx context.Context, policy RetryPolicy, path string, out any) error {
	return c.doJSONRetried(ctx, policy, http.MethodGet, path, nil, out)
}

// doOnce performs a single attempt with no retry budget, for the
// best-effort write-back methods.
func (c *Client) doOnce(ctx context.Context, method, path string, body []byte, out any) error {
	respBody, err := c.doRequest(ctx, method, path, body)
	if err != nil {
		return unwrapPermanent(err)
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return errs.Wrap(errs.ExternalService, "remoteclient.decode", err)
	}
	return nil
}

func (c *Client) doJSONRetried(ctx context.Context, policy RetryPolicy, method, path string, body []byte, out any) error {
	var respBody []byte

	err := retry(ctx, policy, func(attemptCtx context.Context) error {
		b, err := c.doRequest(attemptCtx, method, path, body)
		if err != nil {
			return err
		}
		respBody = b
		return nil
	})
	if err != nil {
		return err
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return errs.Wrap(errs.ExternalService, "remoteclient.decode", err)
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	if c.BaseURL == "" {
		return nil, backoff.Permanent(errs.Wrap(errs.Configuration, "remoteclient", fmt.Errorf("base URL not configured")))
	}

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+"/rest/api/3"+path, bodyReader)
	if err != nil {
		return nil, backoff.Permanent(errs.Wrap(errs.Validation, "remoteclient.newRequest", err))
	}

	c.setAuth(req)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errs.Wrap(errs.Timeout, "remoteclient.do", err)
		}
		return nil, errs.Wrap(errs.ExternalService, "remoteclient.do", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Wrap(errs.ExternalService, "remoteclient.readBody", err)
	}

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Non-success status is surfaced immediately, not retried: only
		// timeouts and transport failures burn the retry budget.
		return nil, backoff.Permanent(errs.Wrap(errs.ExternalService, "remoteclient.status",
			fmt.Errorf("tracker returned %d: %s", resp.StatusCode, string(respBody))))
	}

	return respBody, nil
}

// unwrapPermanent strips the backoff.Permanent wrapper doRequest applies so
// callers that bypass the retry loop still see the underlying errs.Kind.
func unwrapPermanent(err error) error {
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}

func (c *Client) setAuth(req *http.Request) {
	creds := base64.StdEncoding.EncodeToString([]byte(c.Username + ":" + c.APIKey))
	req.Header.Set("Authorization", "Basic "+creds)
}
