// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"

	"vlogy/internal/cache"
	"vlogy/internal/models"
	"vlogy/internal/observability"

	"gorm.io/gorm"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	List(ctx context.Context) ([]*models.Post, error)
}

// postRepository implements PostRepository
type postRepository struct {
	db    *gorm.DB
	cache *cache.Cache
}

// NewPostRepository creates a new post repository. A nil or disabled cache
// sends every List to the database.
func NewPostRepository(db *gorm.DB, c *cache.Cache) PostRepository {
	return &postRepository{db: db, cache: c}
}

// Create inserts post and assigns its ID.
func (r *postRepository) Create(ctx context.Context, post *models.Post) (err error) {
	ctx, span := observability.StartRepositorySpan(ctx, "Create", "posts")
	defer func() { observability.EndSpan(span, err) }()

	err = r.db.WithContext(ctx).Create(post).Error
	if err == nil {
		r.cache.BumpPostsList(ctx)
	}
	return err
}

// List returns every post in insertion order.
func (r *postRepository) List(ctx context.Context) (posts []*models.Post, err error) {
	ctx, span := observability.StartRepositorySpan(ctx, "List", "posts")
	defer func() { observability.EndSpan(span, err) }()

	load := func() error {
		return r.db.WithContext(ctx).Order("id ASC").Find(&posts).Error
	}
	if key, ok := r.cache.PostsListKey(ctx); ok {
		err = r.cache.Aside(ctx, key, &posts, cache.ListTTL, load)
	} else {
		err = load()
	}
	if err != nil {
		return nil, err
	}
	return posts, nil
}
