package types

import (
	"time"

	"github.com/ysksm/jd-sub000/internal/jsonvalue"
)

// IssueSnapshot is one (issue_id, version) point-in-time reconstruction of
// an issue, produced by the Snapshot Engine replaying ChangeHistoryItems.
// Versions start at 1 and are contiguous per issue; exactly one version
// per issue has ValidTo == nil (the current snapshot).
type IssueSnapshot struct {
	IssueID     string          `json:"issue_id"`
	IssueKey    string          `json:"issue_key"`
	Version     int             `json:"version"`
	ValidFrom   time.Time       `json:"valid_from"`
	ValidTo     *time.Time      `json:"valid_to,omitempty"`
	ProjectID   string          `json:"project_id"`
	Summary     string          `json:"summary"`
	Description string          `json:"description"`
	Status      string          `json:"status"`
	Priority    string          `json:"priority"`
	Assignee    string          `json:"assignee"`
	Reporter    string          `json:"reporter"`
	IssueType   string          `json:"issue_type"`
	Resolution  string          `json:"resolution"`
	Labels      []string        `json:"labels"`
	Components  []string        `json:"components"`
	FixVersions []string        `json:"fix_versions"`
	Sprint      string          `json:"sprint"`
	Team        string          `json:"team"`
	ParentKey   string          `json:"parent_key"`
	RawData     jsonvalue.Value `json:"raw_data"`
}
