package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"conduit/internal/domain"
	"conduit/internal/metrics"
)

const articleColumns = `id, author_id, slug, title, description, body, created_at, updated_at`

// PostgresArticleRepository implements ArticleRepository using PostgreSQL.
type PostgresArticleRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresArticleRepository creates a new PostgresArticleRepository.
func NewPostgresArticleRepository(pool *pgxpool.Pool) *PostgresArticleRepository {
	return &PostgresArticleRepository{pool: pool}
}

// Create inserts article and fills in its id and timestamps. A taken slug
// fails with a violation of domain.ConstraintArticleSlug; a missing author
// with domain.ConstraintArticleAuthor.
func (r *PostgresArticleRepository) Create(ctx context.Context, article *domain.Article) error {
	defer metrics.NewTimer().ObserveDBOperation("articles", "create")

	err := r.pool.QueryRow(ctx, `
		INSERT INTO articles (author_id, slug, title, description, body)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`, article.AuthorID, article.Slug, article.Title, article.Description, article.Body).
		Scan(&article.ID, &article.CreatedAt, &article.UpdatedAt)

	return classify("articles", "insert", err)
}

// Update writes slug, title, description and body. The author never changes.
func (r *PostgresArticleRepository) Update(ctx context.Context, article *domain.Article) error {
	defer metrics.NewTimer().ObserveDBOperation("articles", "update")

	err := r.pool.QueryRow(ctx, `
		UPDATE articles
		SET slug = $2, title = $3, description = $4, body = $5
		WHERE id = $1
		RETURNING author_id, created_at, updated_at
	`, article.ID, article.Slug, article.Title, article.Description, article.Body).
		Scan(&article.AuthorID, &article.CreatedAt, &article.UpdatedAt)

	return classify("articles", "update", err)
}

// Delete removes an article together with its comments, favorites and tags.
func (r *PostgresArticleRepository) Delete(ctx context.Context, id int64) error {
	defer metrics.NewTimer().ObserveDBOperation("articles", "delete")

	tag, err := r.pool.Exec(ctx, `DELETE FROM articles WHERE id = $1`, id)
	if err != nil {
		return classify("articles", "delete", err)
	}
	if tag.RowsAffected() == 0 {
		return classify("articles", "delete", pgx.ErrNoRows)
	}
	return nil
}

// GetByID retrieves an article by ID.
func (r *PostgresArticleRepository) GetByID(ctx context.Context, id int64) (*domain.Article, error) {
	defer metrics.NewTimer().ObserveDBOperation("articles", "get")

	return scanArticle(r.pool.QueryRow(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE id = $1`, id))
}

// GetBySlug retrieves an article by its slug.
func (r *PostgresArticleRepository) GetBySlug(ctx context.Context, slug string) (*domain.Article, error) {
	defer metrics.NewTimer().ObserveDBOperation("articles", "get")

	return scanArticle(r.pool.QueryRow(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE slug = $1`, slug))
}

// ListByAuthor returns an author's articles, newest first.
func (r *PostgresArticleRepository) ListByAuthor(ctx context.Context, authorID int64, limit, offset int) ([]domain.Article, error) {
	defer metrics.NewTimer().ObserveDBOperation("articles", "list")

	rows, err := r.pool.Query(ctx, `
		SELECT `+articleColumns+`
		FROM articles
		WHERE author_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, authorID, pageSize(limit), pageOffset(offset))
	if err != nil {
		return nil, classify("articles", "list", err)
	}
	return collectArticles(rows)
}

// List returns all articles, newest first.
func (r *PostgresArticleRepository) List(ctx context.Context, limit, offset int) ([]domain.Article, error) {
	defer metrics.NewTimer().ObserveDBOperation("articles", "list")

	rows, err := r.pool.Query(ctx, `
		SELECT `+articleColumns+`
		FROM articles
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`, pageSize(limit), pageOffset(offset))
	if err != nil {
		return nil, classify("articles", "list", err)
	}
	return collectArticles(rows)
}

func scanArticle(row pgx.Row) (*domain.Article, error) {
	var a domain.Article
	err := row.Scan(&a.ID, &a.AuthorID, &a.Slug, &a.Title, &a.Description, &a.Body, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, classify("articles", "get", err)
	}
	return &a, nil
}

func collectArticles(rows pgx.Rows) ([]domain.Article, error) {
	articles, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Article, error) {
		var a domain.Article
		err := row.Scan(&a.ID, &a.AuthorID, &a.Slug, &a.Title, &a.Description, &a.Body, &a.CreatedAt, &a.UpdatedAt)
		return a, err
	})
	if err != nil {
		return nil, classify("articles", "list", err)
	}
	return articles, nil
}
