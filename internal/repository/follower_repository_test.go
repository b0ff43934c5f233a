package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conduit/internal/domain"
	"conduit/internal/repository"
	"conduit/internal/testutil"
)

func TestPostgresFollowerRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testutil.SetupTestDB(t)
	defer testDB.Cleanup(t)

	fx := newFixtures(testDB)
	repo := repository.NewPostgresFollowerRepository(testDB.Pool)
	ctx := context.Background()

	t.Run("follow and unfollow", func(t *testing.T) {
		testDB.TruncateTables(t)
		celebrity := fx.user(t)
		fan := fx.user(t)

		f, err := repo.Follow(ctx, celebrity.ID, fan.ID)
		require.NoError(t, err)
		assert.True(t, f.CreatedAt.Equal(f.UpdatedAt))

		ok, err := repo.IsFollowing(ctx, celebrity.ID, fan.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.IsFollowing(ctx, fan.ID, celebrity.ID)
		require.NoError(t, err)
		assert.False(t, ok, "following is directional")

		require.NoError(t, repo.Unfollow(ctx, celebrity.ID, fan.ID))
		assert.ErrorIs(t, repo.Unfollow(ctx, celebrity.ID, fan.ID), domain.ErrNotFound)
	})

	t.Run("following twice is a constraint violation", func(t *testing.T) {
		testDB.TruncateTables(t)
		celebrity := fx.user(t)
		fan := fx.user(t)

		_, err := repo.Follow(ctx, celebrity.ID, fan.ID)
		require.NoError(t, err)

		_, err = repo.Follow(ctx, celebrity.ID, fan.ID)
		assert.True(t, domain.ViolatesConstraint(err, domain.ConstraintFollower))
	})

	t.Run("self follow is rejected", func(t *testing.T) {
		testDB.TruncateTables(t)
		u := fx.user(t)

		_, err := repo.Follow(ctx, u.ID, u.ID)
		require.Error(t, err)
		assert.True(t, domain.ViolatesConstraint(err, domain.ConstraintNoSelfFollow))
	})

	t.Run("unknown user", func(t *testing.T) {
		testDB.TruncateTables(t)
		u := fx.user(t)

		_, err := repo.Follow(ctx, 999999, u.ID)
		assert.True(t, domain.ViolatesConstraint(err, domain.ConstraintFollowerUser))
	})
}
