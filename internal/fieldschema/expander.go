// Package fieldschema expands the dynamic Jira field catalog into real
// columns on issues_expanded and projects each issue's raw payload into
// those columns, so downstream SQL consumers (reporting, ad hoc queries)
// can read custom fields by name instead of walking raw_payload JSON.
package fieldschema

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/ysksm/jd-sub000/internal/errs"
	"github.com/ysksm/jd-sub000/internal/repo"
	"github.com/ysksm/jd-sub000/internal/types"
)

// columnTypes maps a Jira field schema type to the SQLite column type used
// when a custom field gets its own column, per the remote's schema type
// vocabulary ("string", "number", "array", "datetime", ...). Unrecognized
// types fall back to TEXT.
var columnTypes = map[string]string{
	"string":   "VARCHAR",
	"number":   "DOUBLE",
	"array":    "JSON",
	"datetime": "TIMESTAMP",
	"date":     "TIMESTAMP",
}

const defaultColumnType = "TEXT"

// baseColumns already exist on issues_expanded and are populated directly
// from the issues table; a custom field mapped to one of these by ID is
// never given its own column.
var baseColumns = map[string]bool{
	"id": true, "project_id": true, "issue_key": true, "summary": true,
	"description": true, "status": true, "priority": true, "assignee": true,
	"reporter": true, "issue_type": true, "resolution": true, "labels": true,
	"components": true, "fix_versions": true, "sprint": true,
	"parent_key": true, "created_date": true, "updated_date": true,
	"synced_at": true,
}

// knownFieldIDs are well-known Jira system field IDs that already map onto
// a base column, keyed lower-case.
var knownFieldIDs = map[string]bool{
	"summary": true, "description": true, "status": true, "priority": true,
	"assignee": true, "reporter": true, "issuetype": true, "resolution": true,
	"labels": true, "components": true, "fixversions": true, "parent": true,
	"created": true, "updated": true,
}

// coreMappings project raw_payload's JSON fields (falling back, for some
// columns, to the issues table's own denormalized column when the JSON
// path is absent) into issues_expanded's base columns, in column order.
var coreMappings = []struct{ column, expr string }{
	{"id", "i.id"},
	{"project_id", "i.project_id"},
	{"issue_key", "COALESCE(json_extract(i.raw_payload, '$.key'), i.key)"},
	{"summary", "COALESCE(json_extract(i.raw_payload, '$.fields.summary'), i.summary)"},
	{"description", "json_extract(i.raw_payload, '$.fields.description')"},
	{"status", "COALESCE(json_extract(i.raw_payload, '$.fields.status.name'), i.status)"},
	{"priority", "COALESCE(json_extract(i.raw_payload, '$.fields.priority.name'), i.priority)"},
	{"assignee", "COALESCE(json_extract(i.raw_payload, '$.fields.assignee.displayName'), i.assignee)"},
	{"reporter", "COALESCE(json_extract(i.raw_payload, '$.fields.reporter.displayName'), i.reporter)"},
	{"issue_type", "COALESCE(json_extract(i.raw_payload, '$.fields.issuetype.name'), i.issue_type)"},
	{"resolution", "json_extract(i.raw_payload, '$.fields.resolution.name')"},
	{"labels", "json_extract(i.raw_payload, '$.fields.labels')"},
	{"components", "json_extract(i.raw_payload, '$.fields.components')"},
	{"fix_versions", "json_extract(i.raw_payload, '$.fields.fixVersions')"},
	{"sprint", "i.sprint"},
	{"parent_key", "json_extract(i.raw_payload, '$.fields.parent.key')"},
	{"created_date", "COALESCE(json_extract(i.raw_payload, '$.fields.created'), i.created_date)"},
	{"updated_date", "COALESCE(json_extract(i.raw_payload, '$.fields.updated'), i.updated_date)"},
}

// Expander owns the field catalog and the issues_expanded projection
// table.
type Expander struct {
	db     *sql.DB
	fields repo.FieldRepository
}

// New returns an Expander backed by db for schema changes and fields for
// catalog persistence.
func New(db *sql.DB, fields repo.FieldRepository) *Expander {
	return &Expander{db: db, fields: fields}
}

// SyncFields upserts fields into the catalog, then adds an issues_expanded
// column for every custom field not already represented by a base column
// or an existing column.
func (e *Expander) SyncFields(ctx context.Context, fields []types.JiraField) error {
	if err := e.fields.Upsert(ctx, fields); err != nil {
		return err
	}

	existing, err := e.existingColumns(ctx)
	if err != nil {
		return err
	}

	for _, f := range fields {
		if !f.Custom {
			continue
		}
		idLower := strings.ToLower(f.ID)
		if baseColumns[idLower] || knownFieldIDs[idLower] {
			continue
		}

		col := safeColumnName(f.ID)
		if existing[strings.ToLower(col)] {
			continue
		}

		colType := columnTypes[f.SchemaType]
		if colType == "" {
			colType = defaultColumnType
		}

		stmt := fmt.Sprintf("ALTER TABLE issues_expanded ADD COLUMN %s %s", quoteIdent(col), colType)
		if _, err := e.db.ExecContext(ctx, stmt); err != nil {
			return errs.WrapDB("add column "+col, err)
		}
		existing[strings.ToLower(col)] = true
	}
	return nil
}

// ExpandIssues projects raw_payload for every issue (optionally scoped to
// projectID) into issues_expanded via a single upsert-from-select,
// including every customfield_ column issues_expanded currently carries.
func (e *Expander) ExpandIssues(ctx context.Context, projectID *string) error {
	existing, err := e.existingColumns(ctx)
	if err != nil {
		return err
	}

	var customCols []string
	for col := range existing {
		if strings.HasPrefix(col, "customfield_") {
			customCols = append(customCols, col)
		}
	}
	sort.Strings(customCols)

	columns := make([]string, 0, len(coreMappings)+len(customCols))
	selects := make([]string, 0, len(coreMappings)+len(customCols))
	for _, m := range coreMappings {
		columns = append(columns, m.column)
		selects = append(selects, m.expr+" AS "+m.column)
	}
	for _, col := range customCols {
		columns = append(columns, col)
		selects = append(selects, customFieldExpr(col))
	}

	where := "WHERE i.raw_payload IS NOT NULL"
	args := []any{}
	if projectID != nil {
		where += " AND i.project_id = ?"
		args = append(args, *projectID)
	}

	updateSet := make([]string, 0, len(columns))
	for _, c := range columns {
		if c == "id" {
			continue
		}
		updateSet = append(updateSet, fmt.Sprintf("%s = excluded.%s", c, c))
	}
	updateSet = append(updateSet, "synced_at = excluded.synced_at")

	stmt := fmt.Sprintf(`
		INSERT INTO issues_expanded (%s, synced_at)
		SELECT %s, CURRENT_TIMESTAMP
		FROM issues i
		%s
		ON CONFLICT (id) DO UPDATE SET %s
	`, strings.Join(columns, ", "), strings.Join(selects, ",\n\t\t\t"), where, strings.Join(updateSet, ", "))

	if _, err := e.db.ExecContext(ctx, stmt, args...); err != nil {
		return errs.WrapDB("expand issues", err)
	}
	return nil
}

// customFieldExpr builds the per-column CASE expression that normalizes a
// custom field's JSON shape (object, array, or scalar) down to a single
// text value, mirroring how Jira custom fields arrive as { "value": ... },
// { "name": ... } or plain scalars depending on field type.
func customFieldExpr(col string) string {
	path := "'$.fields." + col + "'"
	return fmt.Sprintf(`CASE
			WHEN json_type(i.raw_payload, %[1]s) = 'object'
				THEN COALESCE(
					json_extract(i.raw_payload, %[1]s || '.name'),
					json_extract(i.raw_payload, %[1]s || '.value'),
					json_extract(i.raw_payload, %[1]s || '.displayName')
				)
			WHEN json_type(i.raw_payload, %[1]s) = 'array'
				THEN json_extract(i.raw_payload, %[1]s)
			ELSE json_extract(i.raw_payload, %[1]s)
		END AS %[2]s`, path, col)
}

func (e *Expander) existingColumns(ctx context.Context) (map[string]bool, error) {
	rows, err := e.db.QueryContext(ctx, "PRAGMA table_info(issues_expanded)")
	if err != nil {
		return nil, errs.WrapDB("read issues_expanded columns", err)
	}
	defer rows.Close()

	cols := map[string]bool{}
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notnull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, errs.WrapDB("scan issues_expanded column", err)
		}
		cols[strings.ToLower(name)] = true
	}
	return cols, errs.WrapDB("iterate issues_expanded columns", rows.Err())
}

// safeColumnName turns a Jira field ID into a SQL-safe column name: Jira
// custom field IDs ("customfield_10001") are already safe; anything else
// is lower-cased with non-alphanumeric runs collapsed to underscores.
func safeColumnName(fieldID string) string {
	if strings.HasPrefix(fieldID, "customfield_") {
		return fieldID
	}
	var b strings.Builder
	prevUnderscore := false
	for _, r := range strings.ToLower(fieldID) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			prevUnderscore = false
		default:
			if !prevUnderscore {
				b.WriteByte('_')
				prevUnderscore = true
			}
		}
	}
	return strings.Trim(b.String(), "_")
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
