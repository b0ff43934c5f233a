package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"conduit/internal/domain"
	"conduit/internal/metrics"
)

const commentColumns = `id, article_id, user_id, body, created_at, updated_at`

// PostgresCommentRepository implements CommentRepository using PostgreSQL.
type PostgresCommentRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresCommentRepository creates a new PostgresCommentRepository.
func NewPostgresCommentRepository(pool *pgxpool.Pool) *PostgresCommentRepository {
	return &PostgresCommentRepository{pool: pool}
}

// Create inserts comment and fills in its id and timestamps.
func (r *PostgresCommentRepository) Create(ctx context.Context, comment *domain.Comment) error {
	defer metrics.NewTimer().ObserveDBOperation("comments", "create")

	err := r.pool.QueryRow(ctx, `
		INSERT INTO comments (article_id, user_id, body)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`, comment.ArticleID, comment.UserID, comment.Body).
		Scan(&comment.ID, &comment.CreatedAt, &comment.UpdatedAt)

	return classify("comments", "insert", err)
}

// GetByID retrieves a comment by ID.
func (r *PostgresCommentRepository) GetByID(ctx context.Context, id int64) (*domain.Comment, error) {
	defer metrics.NewTimer().ObserveDBOperation("comments", "get")

	var c domain.Comment
	err := r.pool.QueryRow(ctx, `SELECT `+commentColumns+` FROM comments WHERE id = $1`, id).
		Scan(&c.ID, &c.ArticleID, &c.UserID, &c.Body, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, classify("comments", "get", err)
	}
	return &c, nil
}

// ListByArticle returns the comments on an article, oldest first.
func (r *PostgresCommentRepository) ListByArticle(ctx context.Context, articleID int64) ([]domain.Comment, error) {
	defer metrics.NewTimer().ObserveDBOperation("comments", "list")

	rows, err := r.pool.Query(ctx, `
		SELECT `+commentColumns+`
		FROM comments
		WHERE article_id = $1
		ORDER BY created_at, id
	`, articleID)
	if err != nil {
		return nil, classify("comments", "list", err)
	}

	comments, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Comment, error) {
		var c domain.Comment
		err := row.Scan(&c.ID, &c.ArticleID, &c.UserID, &c.Body, &c.CreatedAt, &c.UpdatedAt)
		return c, err
	})
	if err != nil {
		return nil, classify("comments", "list", err)
	}
	return comments, nil
}

// Delete removes a comment. Whether the caller may do so is decided outside
// the storage layer.
func (r *PostgresCommentRepository) Delete(ctx context.Context, id int64) error {
	defer metrics.NewTimer().ObserveDBOperation("comments", "delete")

	tag, err := r.pool.Exec(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return classify("comments", "delete", err)
	}
	if tag.RowsAffected() == 0 {
		return classify("comments", "delete", pgx.ErrNoRows)
	}
	return nil
}
