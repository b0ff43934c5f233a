package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"conduit/internal/domain"
	"conduit/internal/metrics"
)

const userColumns = `id, username, email, password, bio, image, created_at, updated_at`

// PostgresUserRepository implements UserRepository using PostgreSQL.
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresUserRepository creates a new PostgresUserRepository.
func NewPostgresUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// Create inserts user and fills in its id and timestamps.
func (r *PostgresUserRepository) Create(ctx context.Context, user *domain.User) error {
	defer metrics.NewTimer().ObserveDBOperation("users", "create")

	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (username, email, password, bio, image)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`, user.Username, user.Email, user.Password, user.Bio, user.Image).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)

	return classify("users", "insert", err)
}

// Update writes every mutable column of user. updated_at is restamped even
// when nothing changed.
func (r *PostgresUserRepository) Update(ctx context.Context, user *domain.User) error {
	defer metrics.NewTimer().ObserveDBOperation("users", "update")

	err := r.pool.QueryRow(ctx, `
		UPDATE users
		SET username = $2, email = $3, password = $4, bio = $5, image = $6
		WHERE id = $1
		RETURNING created_at, updated_at
	`, user.ID, user.Username, user.Email, user.Password, user.Bio, user.Image).
		Scan(&user.CreatedAt, &user.UpdatedAt)

	return classify("users", "update", err)
}

// GetByID retrieves a user by ID.
func (r *PostgresUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	defer metrics.NewTimer().ObserveDBOperation("users", "get")

	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetByEmail retrieves the oldest user registered with email. Email alone is
// not unique.
func (r *PostgresUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	defer metrics.NewTimer().ObserveDBOperation("users", "get")

	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1 ORDER BY id LIMIT 1`, email))
}

// GetByUsername retrieves the oldest user registered with username.
func (r *PostgresUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	defer metrics.NewTimer().ObserveDBOperation("users", "get")

	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1 ORDER BY id LIMIT 1`, username))
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Password, &u.Bio, &u.Image, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, classify("users", "get", err)
	}
	return &u, nil
}
