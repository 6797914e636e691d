package repo

import (
	"context"
	"database/sql"
	"fmt"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"

	"github.com/ysksm/jd-sub000/internal/errs"
	"github.com/ysksm/jd-sub000/internal/types"
)

func init() {
	// Registers the vec0 virtual table module with the process-wide
	// cgo SQLite driver, same as other_examples' graph-db and
	// sqlitevec clients.
	sqlite_vec.Auto()
}

// EmbeddingDimensions is the width OpenAI's default embedding model
// produces, used by tests as a concrete width to seed vectors with.
// The vec0 table's actual width is whatever dimension InitSchema was
// first called with for a given store; providers of any width can be
// used as long as InitSchema is called with that provider's Dimension()
// before the store holds embeddings from a different one.
const EmbeddingDimensions = 1536

// SQLEmbeddingsRepository implements EmbeddingsRepository over a
// sqlite-vec vec0 virtual table. The vec0 module is registered when this
// package is initialized; InitSchema creates the tables on first use.
type SQLEmbeddingsRepository struct {
	DB *sql.DB
}

var _ EmbeddingsRepository = (*SQLEmbeddingsRepository)(nil)

// InitSchema creates the vec0 table at the given vector width plus its
// companion tables if absent, idempotently. dimension is recorded in
// embedding_schema_info on first call; a later call with a different
// dimension (a provider swap against a store that already holds vectors
// at the old width) fails with a Configuration error instead of silently
// leaving the old, now-mismatched vec0 table in place.
func (r *SQLEmbeddingsRepository) InitSchema(ctx context.Context, dimension int) error {
	if _, err := r.DB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS embedding_schema_info (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			dimension INTEGER NOT NULL
		)
	`); err != nil {
		return errs.WrapDB("init embedding schema info table", err)
	}

	var existing int
	err := r.DB.QueryRowContext(ctx, `SELECT dimension FROM embedding_schema_info WHERE id = 1`).Scan(&existing)
	switch {
	case err == sql.ErrNoRows:
		if _, err := r.DB.ExecContext(ctx, fmt.Sprintf(`
			CREATE VIRTUAL TABLE IF NOT EXISTS issue_embeddings USING vec0(
				issue_id TEXT PRIMARY KEY,
				embedding float[%d] distance_metric=cosine
			)
		`, dimension)); err != nil {
			return errs.WrapDB("init embeddings vec0 schema", err)
		}
		if _, err := r.DB.ExecContext(ctx,
			`INSERT INTO embedding_schema_info (id, dimension) VALUES (1, ?)`, dimension); err != nil {
			return errs.WrapDB("record embedding schema dimension", err)
		}
	case err != nil:
		return errs.WrapDB("read embedding schema info", err)
	case existing != dimension:
		return errs.Wrap(errs.Configuration, "InitSchema",
			fmt.Errorf("store's embeddings were created at dimension %d, provider embeds to %d; "+
				"reuse the original provider or regenerate embeddings with ForceRegenerate against a fresh store",
				existing, dimension))
	}

	_, err = r.DB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS issue_embeddings_meta (
			issue_id TEXT PRIMARY KEY,
			issue_key TEXT NOT NULL,
			embedded_text TEXT,
			provider TEXT,
			model TEXT,
			dimensions INTEGER,
			created_at TEXT
		)
	`)
	return errs.WrapDB("init embeddings metadata schema", err)
}

// UpsertEmbedding stores e's vector in vec0 and its display metadata in
// the companion table, inside one transaction.
func (r *SQLEmbeddingsRepository) UpsertEmbedding(ctx context.Context, e types.IssueEmbedding) error {
	blob, err := sqlite_vec.SerializeFloat32(e.Embedding)
	if err != nil {
		return errs.Wrap(errs.Validation, "serialize embedding vector", err)
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return errs.WrapDB("begin upsert embedding", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO issue_embeddings (issue_id, embedding) VALUES (?, ?)`,
		e.IssueID, blob); err != nil {
		return errs.WrapDB("upsert embedding vector", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO issue_embeddings_meta (issue_id, issue_key, embedded_text, provider, model, dimensions, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (issue_id) DO UPDATE SET
			issue_key = excluded.issue_key,
			embedded_text = excluded.embedded_text,
			provider = excluded.provider,
			model = excluded.model,
			dimensions = excluded.dimensions,
			created_at = excluded.created_at
	`, e.IssueID, e.IssueKey, e.EmbeddedText, e.Provider, e.Model, e.Dimensions, timeToCol(e.CreatedAt)); err != nil {
		return errs.WrapDB("upsert embedding metadata", err)
	}

	if err := tx.Commit(); err != nil {
		return errs.WrapDB("commit upsert embedding", err)
	}
	return nil
}

func (r *SQLEmbeddingsRepository) HasEmbedding(ctx context.Context, issueID string) (bool, error) {
	var count int
	err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM issue_embeddings_meta WHERE issue_id = ?`, issueID).Scan(&count)
	if err != nil {
		return false, errs.WrapDB("check embedding existence", err)
	}
	return count > 0, nil
}

// SemanticSearch orders results ascending by cosine distance, joined
// with Issue display fields, optionally restricted to one project.
func (r *SQLEmbeddingsRepository) SemanticSearch(ctx context.Context, queryVector []float32, projectFilter string, limit int) ([]types.SemanticSearchResult, error) {
	blob, err := sqlite_vec.SerializeFloat32(queryVector)
	if err != nil {
		return nil, errs.Wrap(errs.Validation, "serialize query vector", err)
	}

	query := `
		SELECT i.key, i.summary, i.description, i.status, i.project_id, v.distance
		FROM issue_embeddings v
		JOIN issues i ON i.id = v.issue_id
		WHERE v.embedding MATCH ? AND k = ?
	`
	args := []any{blob, limit}
	if projectFilter != "" {
		query += ` AND i.project_id = ?`
		args = append(args, projectFilter)
	}
	query += ` ORDER BY v.distance ASC`

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.WrapDB("semantic search", err)
	}
	defer rows.Close()

	var out []types.SemanticSearchResult
	for rows.Next() {
		var res types.SemanticSearchResult
		if err := rows.Scan(&res.IssueKey, &res.Summary, &res.Description, &res.Status, &res.ProjectID, &res.Distance); err != nil {
			return nil, errs.WrapDB("scan semantic search result", err)
		}
		out = append(out, res)
	}
	return out, errs.WrapDB("iterate semantic search results", rows.Err())
}
