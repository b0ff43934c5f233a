package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"conduit/internal/domain"
	"conduit/internal/metrics"
)

// PostgresFollowerRepository implements FollowerRepository using PostgreSQL.
type PostgresFollowerRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresFollowerRepository creates a new PostgresFollowerRepository.
func NewPostgresFollowerRepository(pool *pgxpool.Pool) *PostgresFollowerRepository {
	return &PostgresFollowerRepository{pool: pool}
}

// Follow records that followerID follows userID. Following twice violates
// domain.ConstraintFollower; following oneself violates
// domain.ConstraintNoSelfFollow.
func (r *PostgresFollowerRepository) Follow(ctx context.Context, userID, followerID int64) (*domain.Follower, error) {
	defer metrics.NewTimer().ObserveDBOperation("followers", "create")

	f := domain.Follower{UserID: userID, FollowerID: followerID}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO followers (user_id, follower_id)
		VALUES ($1, $2)
		RETURNING created_at, updated_at
	`, userID, followerID).Scan(&f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, classify("followers", "insert", err)
	}
	return &f, nil
}

// Unfollow removes the follow of userID by followerID.
func (r *PostgresFollowerRepository) Unfollow(ctx context.Context, userID, followerID int64) error {
	defer metrics.NewTimer().ObserveDBOperation("followers", "delete")

	tag, err := r.pool.Exec(ctx,
		`DELETE FROM followers WHERE user_id = $1 AND follower_id = $2`, userID, followerID)
	if err != nil {
		return classify("followers", "delete", err)
	}
	if tag.RowsAffected() == 0 {
		return classify("followers", "delete", pgx.ErrNoRows)
	}
	return nil
}

// IsFollowing reports whether followerID follows userID.
func (r *PostgresFollowerRepository) IsFollowing(ctx context.Context, userID, followerID int64) (bool, error) {
	defer metrics.NewTimer().ObserveDBOperation("followers", "get")

	var ok bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM followers WHERE user_id = $1 AND follower_id = $2)
	`, userID, followerID).Scan(&ok)
	if err != nil {
		return false, classify("followers", "get", err)
	}
	return ok, nil
}
