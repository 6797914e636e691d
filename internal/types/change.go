package types

import "time"

// ChangeHistoryItem is one (history_group, field) tuple from an issue's
// changelog. A single remote changelog entry ("history group") fans out
// into one ChangeHistoryItem per field it touched; all items sharing a
// history_id share changed_at and are applied atomically by the Snapshot
// Engine as one change group.
type ChangeHistoryItem struct {
	ID                int64     `json:"id"`
	IssueID           string    `json:"issue_id"`
	IssueKey          string    `json:"issue_key"`
	HistoryID         string    `json:"history_id"`
	AuthorAccountID   string    `json:"author_account_id"`
	AuthorDisplayName string    `json:"author_display_name"`
	Field             string    `json:"field"`
	FieldType         string    `json:"field_type"`
	FromValue         string    `json:"from_value"`
	FromString        string    `json:"from_string"`
	ToValue           string    `json:"to_value"`
	ToString          string    `json:"to_string"`
	ChangedAt         time.Time `json:"changed_at"`
}
