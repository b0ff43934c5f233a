package repository_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conduit/internal/domain"
	"conduit/internal/repository"
	"conduit/internal/testutil"
)

func TestPostgresUserRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testutil.SetupTestDB(t)
	defer testDB.Cleanup(t)

	repo := repository.NewPostgresUserRepository(testDB.Pool)
	ctx := context.Background()

	t.Run("create stamps id and timestamps", func(t *testing.T) {
		testDB.TruncateTables(t)

		bio := "writer"
		u := &domain.User{Username: "alice", Email: "alice@example.com", Password: "hashed", Bio: &bio}
		require.NoError(t, repo.Create(ctx, u))

		assert.NotZero(t, u.ID)
		assert.False(t, u.CreatedAt.IsZero())
		assert.True(t, u.CreatedAt.Equal(u.UpdatedAt))

		got, err := repo.GetByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice", got.Username)
		require.NotNil(t, got.Bio)
		assert.Equal(t, "writer", *got.Bio)
		assert.Nil(t, got.Image)
	})

	t.Run("same username and email is rejected", func(t *testing.T) {
		testDB.TruncateTables(t)

		require.NoError(t, repo.Create(ctx, &domain.User{Username: "bob", Email: "bob@example.com", Password: "x"}))

		err := repo.Create(ctx, &domain.User{Username: "bob", Email: "bob@example.com", Password: "y"})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrConstraintViolation)
		assert.True(t, domain.IsUserIdentityTaken(err))
	})

	t.Run("sharing one of username or email is allowed", func(t *testing.T) {
		testDB.TruncateTables(t)

		require.NoError(t, repo.Create(ctx, &domain.User{Username: "carol", Email: "carol@example.com", Password: "x"}))
		require.NoError(t, repo.Create(ctx, &domain.User{Username: "carol", Email: "other@example.com", Password: "x"}))
		require.NoError(t, repo.Create(ctx, &domain.User{Username: "other", Email: "carol@example.com", Password: "x"}))

		first, err := repo.GetByUsername(ctx, "carol")
		require.NoError(t, err)
		assert.Equal(t, "carol@example.com", first.Email)

		byEmail, err := repo.GetByEmail(ctx, "carol@example.com")
		require.NoError(t, err)
		assert.Equal(t, first.ID, byEmail.ID)
	})

	t.Run("email longer than 254 characters is rejected", func(t *testing.T) {
		testDB.TruncateTables(t)

		email := strings.Repeat("a", domain.MaxEmailLength-len("@example.com")+1) + "@example.com"
		err := repo.Create(ctx, &domain.User{Username: "long", Email: email, Password: "x"})
		require.Error(t, err)
		assert.True(t, domain.ViolatesConstraint(err, domain.ConstraintUserEmailLength))

		email = strings.Repeat("a", domain.MaxEmailLength-len("@example.com")) + "@example.com"
		assert.NoError(t, repo.Create(ctx, &domain.User{Username: "long", Email: email, Password: "x"}))
	})

	t.Run("update restamps updated_at only", func(t *testing.T) {
		testDB.TruncateTables(t)

		u := &domain.User{Username: "dave", Email: "dave@example.com", Password: "x"}
		require.NoError(t, repo.Create(ctx, u))
		created, firstUpdate := u.CreatedAt, u.UpdatedAt

		image := "https://example.com/dave.png"
		u.Image = &image
		require.NoError(t, repo.Update(ctx, u))
		assert.True(t, created.Equal(u.CreatedAt))
		assert.True(t, u.UpdatedAt.After(firstUpdate))

		second := u.UpdatedAt
		require.NoError(t, repo.Update(ctx, u), "an unchanged write is still a write")
		assert.False(t, u.UpdatedAt.Before(second))
		assert.True(t, created.Equal(u.CreatedAt))
	})

	t.Run("update into an existing identity is rejected", func(t *testing.T) {
		testDB.TruncateTables(t)

		require.NoError(t, repo.Create(ctx, &domain.User{Username: "erin", Email: "erin@example.com", Password: "x"}))
		u := &domain.User{Username: "frank", Email: "erin@example.com", Password: "x"}
		require.NoError(t, repo.Create(ctx, u))

		u.Username = "erin"
		err := repo.Update(ctx, u)
		assert.True(t, domain.IsUserIdentityTaken(err))
	})

	t.Run("missing user", func(t *testing.T) {
		testDB.TruncateTables(t)

		_, err := repo.GetByID(ctx, 4242)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		_, err = repo.GetByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, domain.ErrNotFound)

		err = repo.Update(ctx, &domain.User{ID: 4242, Username: "x", Email: "x@example.com", Password: "x"})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}
