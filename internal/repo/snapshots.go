package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ysksm/jd-sub000/internal/errs"
	"github.com/ysksm/jd-sub000/internal/types"
)

// dbtx is the subset of *sql.DB/*sql.Tx that SQLIssueSnapshotRepository's
// statements need, letting the same repository type run either directly
// against the database or against an open transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// SQLIssueSnapshotRepository implements IssueSnapshotRepository.
type SQLIssueSnapshotRepository struct {
	DB dbtx
}

var _ IssueSnapshotRepository = (*SQLIssueSnapshotRepository)(nil)

const snapshotColumns = `
	issue_id, issue_key, version, project_id, valid_from, valid_to, summary,
	description, status, priority, assignee, reporter, issue_type, resolution,
	labels, components, fix_versions, sprint, team, parent_key, raw_data
`

// WithTx begins a transaction on the underlying *sql.DB and runs fn
// against a repository bound to it, committing on success and rolling
// back on any error fn returns or panics with. If this repository is
// already bound to a transaction (nested call from inside another WithTx),
// it runs fn directly against that transaction instead of opening a new
// one, since *sql.Tx cannot nest.
func (r *SQLIssueSnapshotRepository) WithTx(ctx context.Context, fn func(tx IssueSnapshotRepository) error) (err error) {
	db, ok := r.DB.(*sql.DB)
	if !ok {
		return fn(r)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errs.WrapDB("begin snapshot transaction", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
		if err != nil {
			tx.Rollback()
			return
		}
		err = errs.WrapDB("commit snapshot transaction", tx.Commit())
	}()

	err = fn(&SQLIssueSnapshotRepository{DB: tx})
	return err
}

// BulkInsert is a prepared-statement batch; on conflict (issue_id,
// version) it updates every field except the key pair. Called directly
// against the database, it wraps itself in its own transaction; called
// from inside WithTx, it runs against the caller's open transaction so
// it commits or rolls back together with whatever else that tx does.
func (r *SQLIssueSnapshotRepository) BulkInsert(ctx context.Context, snapshots []types.IssueSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	if _, ok := r.DB.(*sql.DB); ok {
		return r.WithTx(ctx, func(tx IssueSnapshotRepository) error {
			return tx.BulkInsert(ctx, snapshots)
		})
	}

	stmt, err := r.DB.PrepareContext(ctx, `
		INSERT INTO issue_snapshots (`+snapshotColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (issue_id, version) DO UPDATE SET
			issue_key = excluded.issue_key,
			project_id = excluded.project_id,
			valid_from = excluded.valid_from,
			valid_to = excluded.valid_to,
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
			raw_data = excluded.raw_data
	`)
	if err != nil {
		return errs.WrapDB("prepare bulk insert snapshots", err)
	}
	defer stmt.Close()

	for _, snap := range snapshots {
		_, err := stmt.ExecContext(ctx,
			snap.IssueID, snap.IssueKey, snap.Version, snap.ProjectID,
			timeToCol(snap.ValidFrom), ptrTimeToCol(snap.ValidTo),
			snap.Summary, snap.Description, snap.Status, snap.Priority, snap.Assignee,
			snap.Reporter, snap.IssueType, snap.Resolution,
			stringsToCol(snap.Labels), stringsToCol(snap.Components), stringsToCol(snap.FixVersions),
			snap.Sprint, snap.Team, snap.ParentKey, jsonValueToCol(snap.RawData),
		)
		if err != nil {
			return errs.WrapDB(fmt.Sprintf("insert snapshot %s v%d", snap.IssueKey, snap.Version), err)
		}
	}
	return nil
}

func (r *SQLIssueSnapshotRepository) DeleteByIssueID(ctx context.Context, issueID string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM issue_snapshots WHERE issue_id = ?`, issueID)
	return errs.WrapDB("delete snapshots by issue id", err)
}

func (r *SQLIssueSnapshotRepository) DeleteByProjectID(ctx context.Context, projectID string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM issue_snapshots WHERE project_id = ?`, projectID)
	return errs.WrapDB("delete snapshots by project id", err)
}

func scanSnapshot(row interface{ Scan(...any) error }) (types.IssueSnapshot, error) {
	var (
		snap                             types.IssueSnapshot
		validFrom, validTo                sql.NullString
		labels, components, fixVersions sql.NullString
		rawData                         sql.NullString
	)
	err := row.Scan(
		&snap.IssueID, &snap.IssueKey, &snap.Version, &snap.ProjectID, &validFrom, &validTo,
		&snap.Summary, &snap.Description, &snap.Status, &snap.Priority, &snap.Assignee,
		&snap.Reporter, &snap.IssueType, &snap.Resolution, &labels, &components, &fixVersions,
		&snap.Sprint, &snap.Team, &snap.ParentKey, &rawData,
	)
	if err != nil {
		return types.IssueSnapshot{}, err
	}
	snap.ValidFrom = colToTime(validFrom)
	snap.ValidTo = colToPtrTime(validTo)
	snap.Labels = colToStrings(labels)
	snap.Components = colToStrings(components)
	snap.FixVersions = colToStrings(fixVersions)
	snap.RawData = colToJSONValue(rawData)
	return snap, nil
}

func (r *SQLIssueSnapshotRepository) FindByKeyAndVersion(ctx context.Context, key string, version int) (types.IssueSnapshot, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+snapshotColumns+` FROM issue_snapshots
		WHERE issue_key = ? AND version = ?`, key, version)
	snap, err := scanSnapshot(row)
	if err != nil {
		return types.IssueSnapshot{}, errs.WrapDB(fmt.Sprintf("find snapshot %s v%d", key, version), err)
	}
	return snap, nil
}

func (r *SQLIssueSnapshotRepository) FindAllByKey(ctx context.Context, key string) ([]types.IssueSnapshot, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+snapshotColumns+` FROM issue_snapshots
		WHERE issue_key = ? ORDER BY version ASC`, key)
	if err != nil {
		return nil, errs.WrapDB("find all snapshots by key", err)
	}
	defer rows.Close()

	var out []types.IssueSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, errs.WrapDB("scan snapshot", err)
		}
		out = append(out, snap)
	}
	return out, errs.WrapDB("iterate snapshots", rows.Err())
}

func (r *SQLIssueSnapshotRepository) FindCurrentByKey(ctx context.Context, key string) (types.IssueSnapshot, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+snapshotColumns+` FROM issue_snapshots
		WHERE issue_key = ? AND valid_to IS NULL`, key)
	snap, err := scanSnapshot(row)
	if err != nil {
		return types.IssueSnapshot{}, errs.WrapDB(fmt.Sprintf("find current snapshot %s", key), err)
	}
	return snap, nil
}
