package repo

import (
	"context"
	"database/sql"

	"github.com/ysksm/jd-sub000/internal/errs"
	"github.com/ysksm/jd-sub000/internal/types"
)

// SQLMetadataRepository implements MetadataRepository, upserting the six
// dimensions keyed (project_id, name) with INSERT ... ON CONFLICT DO
// UPDATE, except labels, which have no other column and use DO NOTHING.
type SQLMetadataRepository struct {
	DB *sql.DB
}

var _ MetadataRepository = (*SQLMetadataRepository)(nil)

func (r *SQLMetadataRepository) UpsertStatuses(ctx context.Context, rows []types.Status) error {
	return upsertMetadata(ctx, r.DB, "metadata_statuses", len(rows), func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO metadata_statuses (project_id, name, category) VALUES (?, ?, ?)
			ON CONFLICT (project_id, name) DO UPDATE SET category = excluded.category
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, row := range rows {
			if _, err := stmt.ExecContext(ctx, row.ProjectID, row.Name, row.Category); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *SQLMetadataRepository) UpsertPriorities(ctx context.Context, rows []types.Priority) error {
	return upsertMetadata(ctx, r.DB, "metadata_priorities", len(rows), func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO metadata_priorities (project_id, name, icon_url) VALUES (?, ?, ?)
			ON CONFLICT (project_id, name) DO UPDATE SET icon_url = excluded.icon_url
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, row := range rows {
			if _, err := stmt.ExecContext(ctx, row.ProjectID, row.Name, row.IconURL); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *SQLMetadataRepository) UpsertIssueTypes(ctx context.Context, rows []types.IssueType) error {
	return upsertMetadata(ctx, r.DB, "metadata_issue_types", len(rows), func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO metadata_issue_types (project_id, name, subtask) VALUES (?, ?, ?)
			ON CONFLICT (project_id, name) DO UPDATE SET subtask = excluded.subtask
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, row := range rows {
			if _, err := stmt.ExecContext(ctx, row.ProjectID, row.Name, row.Subtask); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *SQLMetadataRepository) UpsertLabels(ctx context.Context, rows []types.Label) error {
	return upsertMetadata(ctx, r.DB, "metadata_labels", len(rows), func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO metadata_labels (project_id, name) VALUES (?, ?)
			ON CONFLICT (project_id, name) DO NOTHING
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, row := range rows {
			if _, err := stmt.ExecContext(ctx, row.ProjectID, row.Name); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *SQLMetadataRepository) UpsertComponents(ctx context.Context, rows []types.Component) error {
	return upsertMetadata(ctx, r.DB, "metadata_components", len(rows), func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO metadata_components (project_id, name, description) VALUES (?, ?, ?)
			ON CONFLICT (project_id, name) DO UPDATE SET description = excluded.description
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, row := range rows {
			if _, err := stmt.ExecContext(ctx, row.ProjectID, row.Name, row.Description); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *SQLMetadataRepository) UpsertFixVersions(ctx context.Context, rows []types.FixVersion) error {
	return upsertMetadata(ctx, r.DB, "metadata_fix_versions", len(rows), func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO metadata_fix_versions (project_id, name, released, archived) VALUES (?, ?, ?, ?)
			ON CONFLICT (project_id, name) DO UPDATE SET released = excluded.released, archived = excluded.archived
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, row := range rows {
			if _, err := stmt.ExecContext(ctx, row.ProjectID, row.Name, row.Released, row.Archived); err != nil {
				return err
			}
		}
		return nil
	})
}

func upsertMetadata(ctx context.Context, db *sql.DB, table string, n int, fn func(*sql.Tx) error) error {
	if n == 0 {
		return nil
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errs.WrapDB("begin upsert "+table, err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return errs.WrapDB("upsert "+table, err)
	}
	if err := tx.Commit(); err != nil {
		return errs.WrapDB("commit upsert "+table, err)
	}
	return nil
}
