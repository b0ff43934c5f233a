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

func TestPostgresCommentRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testutil.SetupTestDB(t)
	defer testDB.Cleanup(t)

	fx := newFixtures(testDB)
	repo := repository.NewPostgresCommentRepository(testDB.Pool)
	ctx := context.Background()

	t.Run("create get and list in order", func(t *testing.T) {
		testDB.TruncateTables(t)
		author := fx.user(t)
		article := fx.article(t, author)

		first := &domain.Comment{ArticleID: article.ID, UserID: author.ID, Body: "first"}
		second := &domain.Comment{ArticleID: article.ID, UserID: author.ID, Body: "second"}
		require.NoError(t, repo.Create(ctx, first))
		require.NoError(t, repo.Create(ctx, second))
		assert.True(t, first.CreatedAt.Equal(first.UpdatedAt))

		got, err := repo.GetByID(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, "first", got.Body)
		assert.Equal(t, article.ID, got.ArticleID)

		list, err := repo.ListByArticle(ctx, article.ID)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, first.ID, list[0].ID)
		assert.Equal(t, second.ID, list[1].ID)
	})

	t.Run("dangling references are rejected", func(t *testing.T) {
		testDB.TruncateTables(t)
		author := fx.user(t)
		article := fx.article(t, author)

		err := repo.Create(ctx, &domain.Comment{ArticleID: 999999, UserID: author.ID, Body: "x"})
		assert.True(t, domain.ViolatesConstraint(err, domain.ConstraintCommentArticle))
		assert.True(t, domain.IsDanglingReference(err))

		err = repo.Create(ctx, &domain.Comment{ArticleID: article.ID, UserID: 999999, Body: "x"})
		assert.True(t, domain.ViolatesConstraint(err, domain.ConstraintCommentUser))
	})

	t.Run("delete", func(t *testing.T) {
		testDB.TruncateTables(t)
		author := fx.user(t)
		article := fx.article(t, author)

		c := &domain.Comment{ArticleID: article.ID, UserID: author.ID, Body: "bye"}
		require.NoError(t, repo.Create(ctx, c))

		require.NoError(t, repo.Delete(ctx, c.ID))
		assert.ErrorIs(t, repo.Delete(ctx, c.ID), domain.ErrNotFound)

		_, err := repo.GetByID(ctx, c.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("empty list for article without comments", func(t *testing.T) {
		testDB.TruncateTables(t)
		author := fx.user(t)
		article := fx.article(t, author)

		list, err := repo.ListByArticle(ctx, article.ID)
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}
