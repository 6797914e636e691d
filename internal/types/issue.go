// Package types holds the core data model shared by the store,
// repositories, sync engine, snapshot engine and embedding engine: Issue,
// ChangeHistoryItem, IssueSnapshot, Project, the two resumable
// checkpoints, the metadata dimensions, IssueEmbedding and JiraField.
package types

import (
	"time"

	"github.com/ysksm/jd-sub000/internal/jsonvalue"
)

// Issue is one tracker issue, scoped to a project.
type Issue struct {
	ID           string          `json:"id"`
	ProjectID    string          `json:"project_id"`
	Key          string          `json:"key"`
	Summary      string          `json:"summary"`
	Description  string          `json:"description"`
	Status       string          `json:"status"`
	Priority     string          `json:"priority"`
	Assignee     string          `json:"assignee"`
	Reporter     string          `json:"reporter"`
	IssueType    string          `json:"issue_type"`
	Resolution   string          `json:"resolution"`
	Labels       []string        `json:"labels"`
	Components   []string        `json:"components"`
	FixVersions  []string        `json:"fix_versions"`
	Sprint       string          `json:"sprint"`
	Team         string          `json:"team"`
	ParentKey    string          `json:"parent_key"`
	DueDate      *time.Time      `json:"due_date,omitempty"`
	CreatedDate  time.Time       `json:"created_date"`
	UpdatedDate  time.Time       `json:"updated_date"`
	RawPayload   jsonvalue.Value `json:"raw_payload"`
	IsDeleted    bool            `json:"is_deleted"`
	SyncedAt     time.Time       `json:"synced_at"`
}

// SearchParams is the filter set accepted by IssueRepository.Search.
type SearchParams struct {
	Query      string
	ProjectKey string
	Status     string
	Assignee   string
	IssueType  string
	Priority   string
	Team       string
	Limit      int
	Offset     int
}
