package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ysksm/jd-sub000/internal/errs"
	"github.com/ysksm/jd-sub000/internal/types"
)

// SQLIssueRepository implements IssueRepository against a shared
// *sql.DB from internal/store.
type SQLIssueRepository struct {
	DB *sql.DB
}

var _ IssueRepository = (*SQLIssueRepository)(nil)

// BatchUpsert is idempotent on id; on conflict it overwrites every
// mutable column including raw_payload and bumps synced_at.
func (r *SQLIssueRepository) BatchUpsert(ctx context.Context, issues []types.Issue) error {
	if len(issues) == 0 {
		return nil
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return errs.WrapDB("begin batch upsert issues", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO issues (
			id, project_id, key, summary, description, status, priority,
			assignee, reporter, issue_type, resolution, labels, components,
			fix_versions, sprint, team, parent_key, due_date, created_date,
			updated_date, raw_payload, is_deleted, synced_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))
		ON CONFLICT (id) DO UPDATE SET
			project_id = excluded.project_id,
			key = excluded.key,
			summary = excluded.summary,
			description = excluded.description,
			status = excluded.status,
			priority = excluded.priority,
			assignee = excluded.assignee,
			reporter = excluded.reporter,
			issue_type = excluded.issue_type,
			resolution = excluded.resolution,
			labels = excluded.labels,
			components = excluded.components,
			fix_versions = excluded.fix_versions,
			sprint = excluded.sprint,
			team = excluded.team,
			parent_key = excluded.parent_key,
			due_date = excluded.due_date,
			created_date = excluded.created_date,
			updated_date = excluded.updated_date,
			raw_payload = excluded.raw_payload,
			is_deleted = excluded.is_deleted,
			synced_at = datetime('now')
	`)
	if err != nil {
		return errs.WrapDB("prepare batch upsert issues", err)
	}
	defer stmt.Close()

	for _, iss := range issues {
		_, err := stmt.ExecContext(ctx,
			iss.ID, iss.ProjectID, iss.Key, iss.Summary, iss.Description, iss.Status,
			iss.Priority, iss.Assignee, iss.Reporter, iss.IssueType, iss.Resolution,
			stringsToCol(iss.Labels), stringsToCol(iss.Components), stringsToCol(iss.FixVersions),
			iss.Sprint, iss.Team, iss.ParentKey, ptrTimeToCol(iss.DueDate),
			timeToCol(iss.CreatedDate), timeToCol(iss.UpdatedDate), jsonValueToCol(iss.RawPayload),
			iss.IsDeleted,
		)
		if err != nil {
			return errs.WrapDB(fmt.Sprintf("upsert issue %s", iss.Key), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errs.WrapDB("commit batch upsert issues", err)
	}
	return nil
}

const issueColumns = `
	id, project_id, key, summary, description, status, priority, assignee,
	reporter, issue_type, resolution, labels, components, fix_versions,
	sprint, team, parent_key, due_date, created_date, updated_date,
	raw_payload, is_deleted, synced_at
`

func scanIssue(row interface{ Scan(...any) error }) (types.Issue, error) {
	var (
		iss                                    types.Issue
		labels, components, fixVersions        sql.NullString
		dueDate, createdDate, updatedDate       sql.NullString
		rawPayload                              sql.NullString
		syncedAt                                sql.NullString
		isDeleted                               int
	)
	err := row.Scan(
		&iss.ID, &iss.ProjectID, &iss.Key, &iss.Summary, &iss.Description, &iss.Status,
		&iss.Priority, &iss.Assignee, &iss.Reporter, &iss.IssueType, &iss.Resolution,
		&labels, &components, &fixVersions, &iss.Sprint, &iss.Team, &iss.ParentKey,
		&dueDate, &createdDate, &updatedDate, &rawPayload, &isDeleted, &syncedAt,
	)
	if err != nil {
		return types.Issue{}, err
	}
	iss.Labels = colToStrings(labels)
	iss.Components = colToStrings(components)
	iss.FixVersions = colToStrings(fixVersions)
	iss.DueDate = colToPtrTime(dueDate)
	iss.CreatedDate = colToTime(createdDate)
	iss.UpdatedDate = colToTime(updatedDate)
	iss.RawPayload = colToJSONValue(rawPayload)
	iss.IsDeleted = isDeleted != 0
	iss.SyncedAt = colToTime(syncedAt)
	return iss, nil
}

func (r *SQLIssueRepository) FindByProject(ctx context.Context, projectID string) ([]types.Issue, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+issueColumns+` FROM issues
		WHERE project_id = ? AND is_deleted = 0 ORDER BY created_date DESC`, projectID)
	if err != nil {
		return nil, errs.WrapDB("find issues by project", err)
	}
	defer rows.Close()

	var out []types.Issue
	for rows.Next() {
		iss, err := scanIssue(rows)
		if err != nil {
			return nil, errs.WrapDB("scan issue", err)
		}
		out = append(out, iss)
	}
	return out, errs.WrapDB("iterate issues", rows.Err())
}

func (r *SQLIssueRepository) FindByKey(ctx context.Context, key string) (types.Issue, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+issueColumns+` FROM issues WHERE key = ?`, key)
	iss, err := scanIssue(row)
	if err != nil {
		return types.Issue{}, errs.WrapDB(fmt.Sprintf("find issue %s", key), err)
	}
	return iss, nil
}

// Search filters by the optional params, excluding deleted rows, ordered
// by created_date DESC, with limit/offset.
func (r *SQLIssueRepository) Search(ctx context.Context, params types.SearchParams) ([]types.Issue, error) {
	where := []string{"is_deleted = 0"}
	args := []any{}

	if params.Query != "" {
		where = append(where, "(summary LIKE ? OR description LIKE ?)")
		like := "%" + params.Query + "%"
		args = append(args, like, like)
	}
	if params.ProjectKey != "" {
		where = append(where, "key LIKE ?")
		args = append(args, params.ProjectKey+"%")
	}
	if params.Status != "" {
		where = append(where, "status = ?")
		args = append(args, params.Status)
	}
	if params.Assignee != "" {
		where = append(where, "assignee LIKE ?")
		args = append(args, "%"+params.Assignee+"%")
	}
	if params.IssueType != "" {
		where = append(where, "issue_type = ?")
		args = append(args, params.IssueType)
	}
	if params.Priority != "" {
		where = append(where, "priority = ?")
		args = append(args, params.Priority)
	}
	if params.Team != "" {
		where = append(where, "team = ?")
		args = append(args, params.Team)
	}

	query := `SELECT ` + issueColumns + ` FROM issues WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_date DESC`
	if params.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, params.Limit)
		if params.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, params.Offset)
		}
	}

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.WrapDB("search issues", err)
	}
	defer rows.Close()

	var out []types.Issue
	for rows.Next() {
		iss, err := scanIssue(rows)
		if err != nil {
			return nil, errs.WrapDB("scan issue", err)
		}
		out = append(out, iss)
	}
	return out, errs.WrapDB("iterate issues", rows.Err())
}

func (r *SQLIssueRepository) FindByProjectPaginated(ctx context.Context, projectID string, offset, limit int) ([]types.Issue, bool, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+issueColumns+` FROM issues
		WHERE project_id = ? AND is_deleted = 0
		ORDER BY created_date DESC LIMIT ? OFFSET ?`, projectID, limit+1, offset)
	if err != nil {
		return nil, false, errs.WrapDB("find issues paginated", err)
	}
	defer rows.Close()

	var out []types.Issue
	for rows.Next() {
		iss, err := scanIssue(rows)
		if err != nil {
			return nil, false, errs.WrapDB("scan issue", err)
		}
		out = append(out, iss)
	}
	if err := rows.Err(); err != nil {
		return nil, false, errs.WrapDB("iterate issues", err)
	}
	hasMore := len(out) > limit
	if hasMore {
		out = out[:limit]
	}
	return out, hasMore, nil
}

func (r *SQLIssueRepository) FindByProjectAfterID(ctx context.Context, projectID, afterID string, limit int) ([]types.Issue, bool, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+issueColumns+` FROM issues
		WHERE project_id = ? AND is_deleted = 0 AND id > ?
		ORDER BY id ASC LIMIT ?`, projectID, afterID, limit+1)
	if err != nil {
		return nil, false, errs.WrapDB("find issues after id", err)
	}
	defer rows.Close()

	var out []types.Issue
	for rows.Next() {
		iss, err := scanIssue(rows)
		if err != nil {
			return nil, false, errs.WrapDB("scan issue", err)
		}
		out = append(out, iss)
	}
	if err := rows.Err(); err != nil {
		return nil, false, errs.WrapDB("iterate issues", err)
	}
	hasMore := len(out) > limit
	if hasMore {
		out = out[:limit]
	}
	return out, hasMore, nil
}

func (r *SQLIssueRepository) CountByProject(ctx context.Context, projectID string) (int, error) {
	var count int
	err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM issues WHERE project_id = ? AND is_deleted = 0`, projectID).Scan(&count)
	return count, errs.WrapDB("count issues by project", err)
}

// MarkDeletedNotInKeys restores any previously-deleted key present in
// keys, and marks deleted every non-deleted row whose key is absent from
// keys. Used only for full (non-incremental) reconciliation runs.
func (r *SQLIssueRepository) MarkDeletedNotInKeys(ctx context.Context, projectID string, keys []string) (int, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, errs.WrapDB("begin reconciliation", err)
	}
	defer tx.Rollback()

	if len(keys) > 0 {
		placeholders := make([]string, len(keys))
		args := make([]any, 0, len(keys)+1)
		args = append(args, projectID)
		for i, k := range keys {
			placeholders[i] = "?"
			args = append(args, k)
		}
		restoreQuery := fmt.Sprintf(
			`UPDATE issues SET is_deleted = 0 WHERE project_id = ? AND is_deleted = 1 AND key IN (%s)`,
			strings.Join(placeholders, ","))
		if _, err := tx.ExecContext(ctx, restoreQuery, args...); err != nil {
			return 0, errs.WrapDB("restore reappeared issues", err)
		}
	}

	var deleteQuery string
	args := []any{projectID}
	if len(keys) > 0 {
		placeholders := make([]string, len(keys))
		for i, k := range keys {
			placeholders[i] = "?"
			args = append(args, k)
		}
		deleteQuery = fmt.Sprintf(
			`UPDATE issues SET is_deleted = 1 WHERE project_id = ? AND is_deleted = 0 AND key NOT IN (%s)`,
			strings.Join(placeholders, ","))
	} else {
		deleteQuery = `UPDATE issues SET is_deleted = 1 WHERE project_id = ? AND is_deleted = 0`
	}
	result, err := tx.ExecContext(ctx, deleteQuery, args...)
	if err != nil {
		return 0, errs.WrapDB("mark deleted issues", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, errs.WrapDB("read rows affected", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, errs.WrapDB("commit reconciliation", err)
	}
	return int(affected), nil
}
