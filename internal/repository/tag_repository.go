package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"conduit/internal/domain"
	"conduit/internal/metrics"
)

// PostgresTagRepository implements TagRepository using PostgreSQL.
type PostgresTagRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresTagRepository creates a new PostgresTagRepository.
func NewPostgresTagRepository(pool *pgxpool.Pool) *PostgresTagRepository {
	return &PostgresTagRepository{pool: pool}
}

// SetTags replaces the tag list of an article in one transaction. Tags kept
// from the previous list retain their timestamps.
func (r *PostgresTagRepository) SetTags(ctx context.Context, articleID int64, tags []string) error {
	defer metrics.NewTimer().ObserveDBOperation("article_tags", "replace")

	names := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		names = append(names, t)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Locks the article so concurrent replacements serialize.
	var locked int64
	err = tx.QueryRow(ctx, `SELECT id FROM articles WHERE id = $1 FOR NO KEY UPDATE`, articleID).Scan(&locked)
	if err != nil {
		return classify("articles", "lock", err)
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM article_tags
		WHERE article_id = $1 AND NOT (tag_name = ANY($2::text[]))
	`, articleID, names); err != nil {
		return classify("article_tags", "delete", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO article_tags (article_id, tag_name)
		SELECT $1, unnest($2::text[])
		ON CONFLICT ON CONSTRAINT article_tags_pkey DO NOTHING
	`, articleID, names); err != nil {
		return classify("article_tags", "insert", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return classify("article_tags", "commit", err)
	}
	return nil
}

// ListByArticle returns the tags of an article ordered by name.
func (r *PostgresTagRepository) ListByArticle(ctx context.Context, articleID int64) ([]domain.ArticleTag, error) {
	defer metrics.NewTimer().ObserveDBOperation("article_tags", "list")

	rows, err := r.pool.Query(ctx, `
		SELECT article_id, tag_name, created_at, updated_at
		FROM article_tags
		WHERE article_id = $1
		ORDER BY tag_name
	`, articleID)
	if err != nil {
		return nil, classify("article_tags", "list", err)
	}

	tags, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ArticleTag, error) {
		var t domain.ArticleTag
		err := row.Scan(&t.ArticleID, &t.TagName, &t.CreatedAt, &t.UpdatedAt)
		return t, err
	})
	if err != nil {
		return nil, classify("article_tags", "list", err)
	}
	return tags, nil
}

// ListAll returns every tag name in use, without duplicates, ordered by name.
func (r *PostgresTagRepository) ListAll(ctx context.Context) ([]string, error) {
	defer metrics.NewTimer().ObserveDBOperation("article_tags", "list")

	rows, err := r.pool.Query(ctx, `SELECT DISTINCT tag_name FROM article_tags ORDER BY tag_name`)
	if err != nil {
		return nil, classify("article_tags", "list", err)
	}

	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, classify("article_tags", "list", err)
	}
	return names, nil
}
