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

func TestPostgresArticleRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testutil.SetupTestDB(t)
	defer testDB.Cleanup(t)

	fx := newFixtures(testDB)
	repo := repository.NewPostgresArticleRepository(testDB.Pool)
	comments := repository.NewPostgresCommentRepository(testDB.Pool)
	favorites := repository.NewPostgresFavoriteRepository(testDB.Pool)
	tags := repository.NewPostgresTagRepository(testDB.Pool)
	ctx := context.Background()

	newArticle := func(authorID int64, slug string) *domain.Article {
		return &domain.Article{
			AuthorID:    authorID,
			Slug:        slug,
			Title:       "How to train your dragon",
			Description: "Ever wonder how?",
			Body:        "You have to believe",
		}
	}

	t.Run("create and get by slug", func(t *testing.T) {
		testDB.TruncateTables(t)
		author := fx.user(t)

		a := newArticle(author.ID, "how-to-train-your-dragon")
		require.NoError(t, repo.Create(ctx, a))
		assert.NotZero(t, a.ID)
		assert.True(t, a.CreatedAt.Equal(a.UpdatedAt))

		got, err := repo.GetBySlug(ctx, "how-to-train-your-dragon")
		require.NoError(t, err)
		assert.Equal(t, a.ID, got.ID)
		assert.Equal(t, author.ID, got.AuthorID)
		assert.Equal(t, "You have to believe", got.Body)
	})

	t.Run("duplicate slug is rejected", func(t *testing.T) {
		testDB.TruncateTables(t)
		author := fx.user(t)

		require.NoError(t, repo.Create(ctx, newArticle(author.ID, "same-slug")))

		err := repo.Create(ctx, newArticle(author.ID, "same-slug"))
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrConstraintViolation)
		assert.True(t, domain.IsSlugTaken(err))

		var count int
		require.NoError(t, testDB.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM articles").Scan(&count))
		assert.Equal(t, 1, count)
	})

	t.Run("slugs differing in any character are distinct", func(t *testing.T) {
		testDB.TruncateTables(t)
		author := fx.user(t)

		for _, slug := range []string{"slug", "Slug", "slug-", "slug2", "sluG"} {
			assert.NoError(t, repo.Create(ctx, newArticle(author.ID, slug)), slug)
		}
	})

	t.Run("missing author is a dangling reference", func(t *testing.T) {
		testDB.TruncateTables(t)

		err := repo.Create(ctx, newArticle(999999, "orphan"))
		require.Error(t, err)
		assert.True(t, domain.IsDanglingReference(err))
		assert.True(t, domain.ViolatesConstraint(err, domain.ConstraintArticleAuthor))
	})

	t.Run("update keeps created_at and restamps updated_at", func(t *testing.T) {
		testDB.TruncateTables(t)
		author := fx.user(t)

		a := newArticle(author.ID, "before")
		require.NoError(t, repo.Create(ctx, a))
		created, updated := a.CreatedAt, a.UpdatedAt

		a.Slug = "after"
		a.Title = "New title"
		require.NoError(t, repo.Update(ctx, a))
		assert.True(t, created.Equal(a.CreatedAt))
		assert.True(t, a.UpdatedAt.After(updated))

		_, err := repo.GetBySlug(ctx, "before")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("update into a taken slug is rejected", func(t *testing.T) {
		testDB.TruncateTables(t)
		author := fx.user(t)

		require.NoError(t, repo.Create(ctx, newArticle(author.ID, "taken")))
		a := newArticle(author.ID, "free")
		require.NoError(t, repo.Create(ctx, a))

		a.Slug = "taken"
		assert.True(t, domain.IsSlugTaken(repo.Update(ctx, a)))
	})

	t.Run("delete cascades to comments favorites and tags", func(t *testing.T) {
		testDB.TruncateTables(t)
		author := fx.user(t)
		reader := fx.user(t)

		a := newArticle(author.ID, "doomed")
		require.NoError(t, repo.Create(ctx, a))
		require.NoError(t, comments.Create(ctx, &domain.Comment{ArticleID: a.ID, UserID: reader.ID, Body: "first"}))
		_, err := favorites.Favorite(ctx, reader.ID, a.ID)
		require.NoError(t, err)
		require.NoError(t, tags.SetTags(ctx, a.ID, []string{"go"}))

		keep := newArticle(author.ID, "kept")
		require.NoError(t, repo.Create(ctx, keep))
		require.NoError(t, comments.Create(ctx, &domain.Comment{ArticleID: keep.ID, UserID: reader.ID, Body: "stays"}))

		require.NoError(t, repo.Delete(ctx, a.ID))

		for table, want := range map[string]int{
			"comments":          1,
			"favorite_articles": 0,
			"article_tags":      0,
			"users":             2,
		} {
			var n int
			require.NoError(t, testDB.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n))
			assert.Equal(t, want, n, table)
		}

		assert.ErrorIs(t, repo.Delete(ctx, a.ID), domain.ErrNotFound)
	})

	t.Run("list newest first with paging", func(t *testing.T) {
		testDB.TruncateTables(t)
		author := fx.user(t)
		other := fx.user(t)

		var ids []int64
		for _, slug := range []string{"one", "two", "three"} {
			a := newArticle(author.ID, slug)
			require.NoError(t, repo.Create(ctx, a))
			ids = append(ids, a.ID)
		}
		require.NoError(t, repo.Create(ctx, newArticle(other.ID, "elsewhere")))

		byAuthor, err := repo.ListByAuthor(ctx, author.ID, 2, 0)
		require.NoError(t, err)
		require.Len(t, byAuthor, 2)
		assert.Equal(t, ids[2], byAuthor[0].ID)
		assert.Equal(t, ids[1], byAuthor[1].ID)

		rest, err := repo.ListByAuthor(ctx, author.ID, 2, 2)
		require.NoError(t, err)
		require.Len(t, rest, 1)
		assert.Equal(t, ids[0], rest[0].ID)

		all, err := repo.List(ctx, 0, 0)
		require.NoError(t, err)
		assert.Len(t, all, 4)
		assert.Equal(t, "elsewhere", all[0].Slug)
	})

	t.Run("missing article", func(t *testing.T) {
		testDB.TruncateTables(t)

		_, err := repo.GetByID(ctx, 1)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		err = repo.Update(ctx, &domain.Article{ID: 1, Slug: "x", Title: "x", Description: "x", Body: "x"})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}
