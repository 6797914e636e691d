package types

import "time"

// Project is a tracked tracker project plus its local sync configuration.
type Project struct {
	ID                 string              `json:"id"`
	Key                string              `json:"key"`
	Name               string              `json:"name"`
	Description        string              `json:"description"`
	SyncEnabled        bool                `json:"sync_enabled"`
	LastSynced         time.Time           `json:"last_synced"`
	SyncCheckpoint     *SyncCheckpoint     `json:"sync_checkpoint,omitempty"`
	SnapshotCheckpoint *SnapshotCheckpoint `json:"snapshot_checkpoint,omitempty"`
}

// SyncCheckpoint is a resumable cursor over the keyset stream
// ORDER BY updated ASC, key ASC used by the Sync Engine.
type SyncCheckpoint struct {
	LastIssueUpdatedAt time.Time `json:"last_issue_updated_at"`
	LastIssueKey       string    `json:"last_issue_key"`
	ItemsProcessed     int       `json:"items_processed"`
	TotalItems         int       `json:"total_items"`
}

// SnapshotCheckpoint is a resumable cursor across issues (not within one
// issue's changelog) used by the Snapshot Engine's batch loop.
type SnapshotCheckpoint struct {
	LastIssueID        string `json:"last_issue_id"`
	LastIssueKey       string `json:"last_issue_key"`
	IssuesProcessed    int    `json:"issues_processed"`
	TotalIssues        int    `json:"total_issues"`
	SnapshotsGenerated int    `json:"snapshots_generated"`
}

// SnapshotProgress is reported to the Snapshot Engine's progress callback
// after every batch.
type SnapshotProgress struct {
	IssuesProcessed    int    `json:"issues_processed"`
	TotalIssues        int    `json:"total_issues"`
	SnapshotsGenerated int    `json:"snapshots_generated"`
	CurrentIssueKey    string `json:"current_issue_key"`
	LastIssueID        string `json:"last_issue_id"`
	LastIssueKey       string `json:"last_issue_key"`
}
