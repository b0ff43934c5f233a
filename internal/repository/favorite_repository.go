package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"conduit/internal/domain"
	"conduit/internal/metrics"
)

// PostgresFavoriteRepository implements FavoriteRepository using PostgreSQL.
type PostgresFavoriteRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresFavoriteRepository creates a new PostgresFavoriteRepository.
func NewPostgresFavoriteRepository(pool *pgxpool.Pool) *PostgresFavoriteRepository {
	return &PostgresFavoriteRepository{pool: pool}
}

// Favorite records that userID favorited articleID. Favoriting the same pair
// twice fails with a violation of domain.ConstraintFavorite.
func (r *PostgresFavoriteRepository) Favorite(ctx context.Context, userID, articleID int64) (*domain.FavoriteArticle, error) {
	defer metrics.NewTimer().ObserveDBOperation("favorite_articles", "create")

	fav := domain.FavoriteArticle{UserID: userID, ArticleID: articleID}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO favorite_articles (user_id, article_id)
		VALUES ($1, $2)
		RETURNING created_at, updated_at
	`, userID, articleID).Scan(&fav.CreatedAt, &fav.UpdatedAt)
	if err != nil {
		return nil, classify("favorite_articles", "insert", err)
	}
	return &fav, nil
}

// Unfavorite removes the favorite of articleID by userID.
func (r *PostgresFavoriteRepository) Unfavorite(ctx context.Context, userID, articleID int64) error {
	defer metrics.NewTimer().ObserveDBOperation("favorite_articles", "delete")

	tag, err := r.pool.Exec(ctx,
		`DELETE FROM favorite_articles WHERE user_id = $1 AND article_id = $2`, userID, articleID)
	if err != nil {
		return classify("favorite_articles", "delete", err)
	}
	if tag.RowsAffected() == 0 {
		return classify("favorite_articles", "delete", pgx.ErrNoRows)
	}
	return nil
}

// IsFavorited reports whether userID has favorited articleID.
func (r *PostgresFavoriteRepository) IsFavorited(ctx context.Context, userID, articleID int64) (bool, error) {
	defer metrics.NewTimer().ObserveDBOperation("favorite_articles", "get")

	var ok bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM favorite_articles WHERE user_id = $1 AND article_id = $2)
	`, userID, articleID).Scan(&ok)
	if err != nil {
		return false, classify("favorite_articles", "get", err)
	}
	return ok, nil
}

// CountByArticle returns how many users favorited articleID.
func (r *PostgresFavoriteRepository) CountByArticle(ctx context.Context, articleID int64) (int64, error) {
	defer metrics.NewTimer().ObserveDBOperation("favorite_articles", "count")

	var n int64
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM favorite_articles WHERE article_id = $1`, articleID).Scan(&n)
	if err != nil {
		return 0, classify("favorite_articles", "count", err)
	}
	return n, nil
}
