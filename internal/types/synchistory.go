package types

import "time"

// SyncStatus is the outcome of one Sync Engine run.
type SyncStatus string

const (
	SyncStatusCompleted SyncStatus = "completed"
	SyncStatusFailed    SyncStatus = "failed"
)

// SyncHistoryRecord is one append-only row logged at the end of a Sync
// Engine run.
type SyncHistoryRecord struct {
	ID             int64      `json:"id"`
	ProjectID      string     `json:"project_id"`
	Status         SyncStatus `json:"status"`
	ItemsProcessed int        `json:"items_processed"`
	TotalItems     int        `json:"total_items"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     time.Time  `json:"finished_at"`
}
