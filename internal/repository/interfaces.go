package repository

import (
	"context"

	"conduit/internal/domain"
)

// DefaultPageSize is used by list operations called with a non-positive limit.
const DefaultPageSize = 20

// UserRepository defines methods for user data access. Users are never
// deleted.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}

// ArticleRepository defines methods for article data access.
type ArticleRepository interface {
	Create(ctx context.Context, article *domain.Article) error
	Update(ctx context.Context, article *domain.Article) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*domain.Article, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Article, error)
	ListByAuthor(ctx context.Context, authorID int64, limit, offset int) ([]domain.Article, error)
	List(ctx context.Context, limit, offset int) ([]domain.Article, error)
}

// CommentRepository defines methods for comment data access.
type CommentRepository interface {
	Create(ctx context.Context, comment *domain.Comment) error
	GetByID(ctx context.Context, id int64) (*domain.Comment, error)
	ListByArticle(ctx context.Context, articleID int64) ([]domain.Comment, error)
	Delete(ctx context.Context, id int64) error
}

// FavoriteRepository defines methods for favorite data access.
type FavoriteRepository interface {
	Favorite(ctx context.Context, userID, articleID int64) (*domain.FavoriteArticle, error)
	Unfavorite(ctx context.Context, userID, articleID int64) error
	IsFavorited(ctx context.Context, userID, articleID int64) (bool, error)
	CountByArticle(ctx context.Context, articleID int64) (int64, error)
}

// TagRepository defines methods for article tag data access.
type TagRepository interface {
	SetTags(ctx context.Context, articleID int64, tags []string) error
	ListByArticle(ctx context.Context, articleID int64) ([]domain.ArticleTag, error)
	ListAll(ctx context.Context) ([]string, error)
}

// FollowerRepository defines methods for follower data access.
type FollowerRepository interface {
	Follow(ctx context.Context, userID, followerID int64) (*domain.Follower, error)
	Unfollow(ctx context.Context, userID, followerID int64) error
	IsFollowing(ctx context.Context, userID, followerID int64) (bool, error)
}

var (
	_ UserRepository     = (*PostgresUserRepository)(nil)
	_ ArticleRepository  = (*PostgresArticleRepository)(nil)
	_ CommentRepository  = (*PostgresCommentRepository)(nil)
	_ FavoriteRepository = (*PostgresFavoriteRepository)(nil)
	_ TagRepository      = (*PostgresTagRepository)(nil)
	_ FollowerRepository = (*PostgresFollowerRepository)(nil)
)

func pageSize(limit int) int {
	if limit <= 0 {
		return DefaultPageSize
	}
	return limit
}

func pageOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
