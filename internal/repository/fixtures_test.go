package repository_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"conduit/internal/domain"
	"conduit/internal/repository"
	"conduit/internal/testutil"
)

// fixtures creates rows through the repositories under test.
type fixtures struct {
	users    *repository.PostgresUserRepository
	articles *repository.PostgresArticleRepository
}

func newFixtures(tdb *testutil.TestDB) fixtures {
	return fixtures{
		users:    repository.NewPostgresUserRepository(tdb.Pool),
		articles: repository.NewPostgresArticleRepository(tdb.Pool),
	}
}

func (f fixtures) user(t *testing.T) *domain.User {
	t.Helper()
	name := uuid.NewString()
	u := &domain.User{
		Username: name,
		Email:    name + "@example.com",
		Password: "hashed",
	}
	require.NoError(t, f.users.Create(context.Background(), u))
	return u
}

func (f fixtures) article(t *testing.T, author *domain.User) *domain.Article {
	t.Helper()
	a := &domain.Article{
		AuthorID:    author.ID,
		Slug:        "article-" + uuid.NewString(),
		Title:       "Title",
		Description: "Description",
		Body:        "Body",
	}
	require.NoError(t, f.articles.Create(context.Background(), a))
	return a
}
