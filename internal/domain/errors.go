package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a row addressed by key does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConstraintViolation matches every *ConstraintViolation via errors.Is.
	ErrConstraintViolation = errors.New("constraint violation")
)

// ViolationKind classifies a constraint violation.
type ViolationKind string

const (
	ViolationUnique     ViolationKind = "unique"
	ViolationForeignKey ViolationKind = "foreign_key"
	ViolationNotNull    ViolationKind = "not_null"
	ViolationCheck      ViolationKind = "check"
)

// Constraint names declared by the schema migrations.
const (
	ConstraintUserIdentity      = "users_username_email_key"
	ConstraintUserEmailLength   = "users_email_length_check"
	ConstraintArticleSlug       = "articles_slug_key"
	ConstraintArticleAuthor     = "articles_author_id_fkey"
	ConstraintCommentArticle    = "comments_article_id_fkey"
	ConstraintCommentUser       = "comments_user_id_fkey"
	ConstraintFavorite          = "favorite_articles_pkey"
	ConstraintFavoriteUser      = "favorite_articles_user_id_fkey"
	ConstraintFavoriteArticle   = "favorite_articles_article_id_fkey"
	ConstraintArticleTag        = "article_tags_pkey"
	ConstraintArticleTagArticle = "article_tags_article_id_fkey"
	ConstraintArticleTagName    = "article_tags_tag_name_check"
	ConstraintFollower          = "followers_pkey"
	ConstraintFollowerUser      = "followers_user_id_fkey"
	ConstraintFollowerFollower  = "followers_follower_id_fkey"
	ConstraintNoSelfFollow      = "followers_no_self_follow"
)

// ConstraintViolation is a write rejected by a declared schema constraint.
type ConstraintViolation struct {
	Kind       ViolationKind
	Table      string
	Constraint string
	Column     string
	Err        error
}

func (e *ConstraintViolation) Error() string {
	name := e.Constraint
	if name == "" {
		name = e.Column
	}
	return fmt.Sprintf("%s violation on %s (%s)", e.Kind, e.Table, name)
}

func (e *ConstraintViolation) Unwrap() error { return e.Err }

// Is reports ErrConstraintViolation as a match so callers need not type-assert.
func (e *ConstraintViolation) Is(target error) bool {
	return target == ErrConstraintViolation
}

// ViolatesConstraint reports whether err is a violation of the named constraint.
func ViolatesConstraint(err error, constraint string) bool {
	var cv *ConstraintViolation
	if !errors.As(err, &cv) {
		return false
	}
	return cv.Constraint == constraint
}

// IsSlugTaken reports whether err was caused by a duplicate article slug.
func IsSlugTaken(err error) bool {
	return ViolatesConstraint(err, ConstraintArticleSlug)
}

// IsUserIdentityTaken reports whether err was caused by a duplicate (username, email) pair.
func IsUserIdentityTaken(err error) bool {
	return ViolatesConstraint(err, ConstraintUserIdentity)
}

// IsAlreadyFavorited reports whether err was caused by favoriting the same article twice.
func IsAlreadyFavorited(err error) bool {
	return ViolatesConstraint(err, ConstraintFavorite)
}

// IsDanglingReference reports whether err was caused by a foreign key pointing at a missing row.
func IsDanglingReference(err error) bool {
	var cv *ConstraintViolation
	if !errors.As(err, &cv) {
		return false
	}
	return cv.Kind == ViolationForeignKey
}
