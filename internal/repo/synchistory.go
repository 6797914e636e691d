package repo

import (
	"context"
	"database/sql"

	"github.com/ysksm/jd-sub000/internal/errs"
	"github.com/ysksm/jd-sub000/internal/types"
)

// SQLSyncHistoryRepository implements SyncHistoryRepository as an
// append-only log.
type SQLSyncHistoryRepository struct {
	DB *sql.DB
}

var _ SyncHistoryRepository = (*SQLSyncHistoryRepository)(nil)

func (r *SQLSyncHistoryRepository) Append(ctx context.Context, record types.SyncHistoryRecord) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO sync_history (
			project_id, status, items_processed, total_items, error_message,
			started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`, record.ProjectID, string(record.Status), record.ItemsProcessed, record.TotalItems,
		nullString(record.ErrorMessage), timeToCol(record.StartedAt), timeToCol(record.FinishedAt))
	return errs.WrapDB("append sync history", err)
}

func (r *SQLSyncHistoryRepository) LatestForProject(ctx context.Context, projectID string) (types.SyncHistoryRecord, error) {
	var (
		rec          types.SyncHistoryRecord
		status       string
		errorMessage sql.NullString
		startedAt    sql.NullString
		finishedAt   sql.NullString
	)
	err := r.DB.QueryRowContext(ctx, `
		SELECT id, project_id, status, items_processed, total_items, error_message, started_at, finished_at
		FROM sync_history WHERE project_id = ? ORDER BY finished_at DESC LIMIT 1
	`, projectID).Scan(&rec.ID, &rec.ProjectID, &status, &rec.ItemsProcessed, &rec.TotalItems,
		&errorMessage, &startedAt, &finishedAt)
	if err != nil {
		return types.SyncHistoryRecord{}, errs.WrapDB("latest sync history for project", err)
	}
	rec.Status = types.SyncStatus(status)
	rec.ErrorMessage = errorMessage.String
	rec.StartedAt = colToTime(startedAt)
	rec.FinishedAt = colToTime(finishedAt)
	return rec, nil
}
