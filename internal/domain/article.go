package domain

import "time"

// Article represents a published article. Slug is its external identifier.
type Article struct {
	ID          int64     `json:"id"`
	AuthorID    int64     `json:"author_id"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Body        string    `json:"body"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// FavoriteArticle is the timestamped fact that a user favorited an article.
type FavoriteArticle struct {
	UserID    int64     `json:"user_id"`
	ArticleID int64     `json:"article_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ArticleTag attaches a tag name to an article.
type ArticleTag struct {
	ArticleID int64     `json:"article_id"`
	TagName   string    `json:"tag_name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
