// Package repo declares the typed repository contracts used by the sync,
// snapshot and embedding engines, and implements them against
// internal/store's SQLite connection. Engines depend only on these
// interfaces so tests can run against a real in-memory database instead
// of mocks.
package repo

import (
	"context"

	"github.com/ysksm/jd-sub000/internal/types"
)

// IssueRepository provides typed access over the issues table.
type IssueRepository interface {
	BatchUpsert(ctx context.Context, issues []types.Issue) error
	FindByProject(ctx context.Context, projectID string) ([]types.Issue, error)
	Search(ctx context.Context, params types.SearchParams) ([]types.Issue, error)
	FindByProjectPaginated(ctx context.Context, projectID string, offset, limit int) (issues []types.Issue, hasMore bool, err error)
	FindByProjectAfterID(ctx context.Context, projectID, afterID string, limit int) (issues []types.Issue, hasMore bool, err error)
	CountByProject(ctx context.Context, projectID string) (int, error)
	FindByKey(ctx context.Context, key string) (types.Issue, error)
	// MarkDeletedNotInKeys restores any previously-deleted key present in
	// keys and marks deleted any non-deleted row not present in keys.
	// Returns the number of rows newly marked deleted.
	MarkDeletedNotInKeys(ctx context.Context, projectID string, keys []string) (int, error)
}

// ChangeHistoryRepository provides typed access over the changelog table.
type ChangeHistoryRepository interface {
	BatchInsert(ctx context.Context, items []types.ChangeHistoryItem) error
	FindByIssueKey(ctx context.Context, key string) ([]types.ChangeHistoryItem, error)
	FindByIssueKeyAndField(ctx context.Context, key, field string) ([]types.ChangeHistoryItem, error)
}

// IssueSnapshotRepository provides typed access over the snapshots table.
type IssueSnapshotRepository interface {
	BulkInsert(ctx context.Context, snapshots []types.IssueSnapshot) error
	DeleteByIssueID(ctx context.Context, issueID string) error
	DeleteByProjectID(ctx context.Context, projectID string) error
	FindByKeyAndVersion(ctx context.Context, key string, version int) (types.IssueSnapshot, error)
	FindAllByKey(ctx context.Context, key string) ([]types.IssueSnapshot, error)
	FindCurrentByKey(ctx context.Context, key string) (types.IssueSnapshot, error)
	// WithTx begins a transaction, runs fn against a repository bound to
	// it, and commits on success or rolls back on any error fn returns or
	// panics with, so a batch's delete-then-insert commits atomically.
	WithTx(ctx context.Context, fn func(tx IssueSnapshotRepository) error) error
}

// MetadataRepository upserts and lists the six metadata dimensions.
type MetadataRepository interface {
	UpsertStatuses(ctx context.Context, rows []types.Status) error
	UpsertPriorities(ctx context.Context, rows []types.Priority) error
	UpsertIssueTypes(ctx context.Context, rows []types.IssueType) error
	UpsertLabels(ctx context.Context, rows []types.Label) error
	UpsertComponents(ctx context.Context, rows []types.Component) error
	UpsertFixVersions(ctx context.Context, rows []types.FixVersion) error
}

// SyncHistoryRepository is an append-only log of Sync Engine runs.
type SyncHistoryRepository interface {
	Append(ctx context.Context, record types.SyncHistoryRecord) error
	LatestForProject(ctx context.Context, projectID string) (types.SyncHistoryRecord, error)
}

// FieldRepository upserts and lists the dynamic field catalog.
type FieldRepository interface {
	Upsert(ctx context.Context, fields []types.JiraField) error
	List(ctx context.Context) ([]types.JiraField, error)
}

// EmbeddingsRepository provides the vector store used for semantic
// search.
type EmbeddingsRepository interface {
	// InitSchema creates the vec0 table at dimension if it doesn't exist
	// yet, or confirms dimension matches the width it was already created
	// with.
	InitSchema(ctx context.Context, dimension int) error
	UpsertEmbedding(ctx context.Context, e types.IssueEmbedding) error
	HasEmbedding(ctx context.Context, issueID string) (bool, error)
	SemanticSearch(ctx context.Context, queryVector []float32, projectFilter string, limit int) ([]types.SemanticSearchResult, error)
}
