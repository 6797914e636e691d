package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ysksm/jd-sub000/internal/errs"
	"github.com/ysksm/jd-sub000/internal/types"
)

// SQLChangeHistoryRepository implements ChangeHistoryRepository.
type SQLChangeHistoryRepository struct {
	DB *sql.DB
}

var _ ChangeHistoryRepository = (*SQLChangeHistoryRepository)(nil)

// BatchInsert is idempotent on (history_id, field).
func (r *SQLChangeHistoryRepository) BatchInsert(ctx context.Context, items []types.ChangeHistoryItem) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return errs.WrapDB("begin batch insert changes", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO issue_change_history (
			issue_id, issue_key, history_id, author_account_id, author_display_name,
			field, field_type, from_value, from_string, to_value, to_string, changed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (history_id, field) DO UPDATE SET
			author_account_id = excluded.author_account_id,
			author_display_name = excluded.author_display_name,
			from_value = excluded.from_value,
			from_string = excluded.from_string,
			to_value = excluded.to_value,
			to_string = excluded.to_string,
			changed_at = excluded.changed_at
	`)
	if err != nil {
		return errs.WrapDB("prepare batch insert changes", err)
	}
	defer stmt.Close()

	for _, item := range items {
		_, err := stmt.ExecContext(ctx,
			item.IssueID, item.IssueKey, item.HistoryID, nullString(item.AuthorAccountID),
			nullString(item.AuthorDisplayName), item.Field, nullString(item.FieldType),
			nullString(item.FromValue), nullString(item.FromString),
			nullString(item.ToValue), nullString(item.ToString), timeToCol(item.ChangedAt),
		)
		if err != nil {
			return errs.WrapDB(fmt.Sprintf("insert change %s/%s", item.HistoryID, item.Field), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errs.WrapDB("commit batch insert changes", err)
	}
	return nil
}

const changeColumns = `
	id, issue_id, issue_key, history_id, author_account_id, author_display_name,
	field, field_type, from_value, from_string, to_value, to_string, changed_at
`

func scanChange(row interface{ Scan(...any) error }) (types.ChangeHistoryItem, error) {
	var (
		item       types.ChangeHistoryItem
		authorAcct sql.NullString
		authorName sql.NullString
		fieldType  sql.NullString
		fromValue  sql.NullString
		fromString sql.NullString
		toValue    sql.NullString
		toString   sql.NullString
		changedAt  sql.NullString
	)
	err := row.Scan(
		&item.ID, &item.IssueID, &item.IssueKey, &item.HistoryID, &authorAcct, &authorName,
		&item.Field, &fieldType, &fromValue, &fromString, &toValue, &toString, &changedAt,
	)
	if err != nil {
		return types.ChangeHistoryItem{}, err
	}
	item.AuthorAccountID = authorAcct.String
	item.AuthorDisplayName = authorName.String
	item.FieldType = fieldType.String
	item.FromValue = fromValue.String
	item.FromString = fromString.String
	item.ToValue = toValue.String
	item.ToString = toString.String
	item.ChangedAt = colToTime(changedAt)
	return item, nil
}

// FindByIssueKey returns the full changelog ordered by changed_at ASC.
func (r *SQLChangeHistoryRepository) FindByIssueKey(ctx context.Context, key string) ([]types.ChangeHistoryItem, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+changeColumns+` FROM issue_change_history
		WHERE issue_key = ? ORDER BY changed_at ASC, id ASC`, key)
	if err != nil {
		return nil, errs.WrapDB("find changes by issue key", err)
	}
	defer rows.Close()

	var out []types.ChangeHistoryItem
	for rows.Next() {
		item, err := scanChange(rows)
		if err != nil {
			return nil, errs.WrapDB("scan change", err)
		}
		out = append(out, item)
	}
	return out, errs.WrapDB("iterate changes", rows.Err())
}

func (r *SQLChangeHistoryRepository) FindByIssueKeyAndField(ctx context.Context, key, field string) ([]types.ChangeHistoryItem, error) {
	query := `SELECT ` + changeColumns + ` FROM issue_change_history WHERE issue_key = ?`
	args := []any{key}
	if field != "" {
		query += ` AND field = ?`
		args = append(args, field)
	}
	query += ` ORDER BY changed_at ASC, id ASC`

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.WrapDB("find changes by issue key and field", err)
	}
	defer rows.Close()

	var out []types.ChangeHistoryItem
	for rows.Next() {
		item, err := scanChange(rows)
		if err != nil {
			return nil, errs.WrapDB("scan change", err)
		}
		out = append(out, item)
	}
	return out, errs.WrapDB("iterate changes", rows.Err())
}
