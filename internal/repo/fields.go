package repo

import (
	"context"
	"database/sql"

	"github.com/ysksm/jd-sub000/internal/errs"
	"github.com/ysksm/jd-sub000/internal/types"
)

// SQLFieldRepository implements FieldRepository over the jira_fields
// catalog table that drives the Field-Schema Expander.
type SQLFieldRepository struct {
	DB *sql.DB
}

var _ FieldRepository = (*SQLFieldRepository)(nil)

func (r *SQLFieldRepository) Upsert(ctx context.Context, fields []types.JiraField) error {
	if len(fields) == 0 {
		return nil
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return errs.WrapDB("begin upsert fields", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO jira_fields (id, key, name, custom, schema_type, schema_items, schema_custom)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			key = excluded.key,
			name = excluded.name,
			custom = excluded.custom,
			schema_type = excluded.schema_type,
			schema_items = excluded.schema_items,
			schema_custom = excluded.schema_custom
	`)
	if err != nil {
		return errs.WrapDB("prepare upsert fields", err)
	}
	defer stmt.Close()

	for _, f := range fields {
		if _, err := stmt.ExecContext(ctx, f.ID, f.Key, f.Name, f.Custom,
			f.SchemaType, f.SchemaItems, f.SchemaCustom); err != nil {
			return errs.WrapDB("upsert field "+f.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errs.WrapDB("commit upsert fields", err)
	}
	return nil
}

func (r *SQLFieldRepository) List(ctx context.Context) ([]types.JiraField, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, key, name, custom, schema_type, schema_items, schema_custom FROM jira_fields ORDER BY id`)
	if err != nil {
		return nil, errs.WrapDB("list fields", err)
	}
	defer rows.Close()

	var out []types.JiraField
	for rows.Next() {
		var (
			f                           types.JiraField
			schemaItems, schemaCustom sql.NullString
		)
		if err := rows.Scan(&f.ID, &f.Key, &f.Name, &f.Custom, &f.SchemaType, &schemaItems, &schemaCustom); err != nil {
			return nil, errs.WrapDB("scan field", err)
		}
		f.SchemaItems = schemaItems.String
		f.SchemaCustom = schemaCustom.String
		out = append(out, f)
	}
	return out, errs.WrapDB("iterate fields", rows.Err())
}
