// Package seed populates the feed with demo travel posts.
package seed

import (
	"context"
	"fmt"

	"vlogy/internal/cache"
	"vlogy/internal/models"
	"vlogy/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// maxTitleRunes matches the size of the posts.title column.
const maxTitleRunes = 100

// Seeder writes fake posts through the post repository.
type Seeder struct {
	db    *gorm.DB
	cache *cache.Cache
	posts repository.PostRepository
	faker *gofakeit.Faker
}

// NewSeeder returns a seeder. The same seed yields the same posts.
func NewSeeder(db *gorm.DB, c *cache.Cache, seed int64) *Seeder {
	return &Seeder{
		db:    db,
		cache: c,
		posts: repository.NewPostRepository(db, c),
		faker: gofakeit.New(seed),
	}
}

// ClearAll deletes every post.
func (s *Seeder) ClearAll(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Post{}).Error; err != nil {
		return fmt.Errorf("clear posts: %w", err)
	}
	s.cache.BumpPostsList(ctx)
	return nil
}

// Post builds one fake travel post without saving it.
func (s *Seeder) Post() *models.Post {
	f := s.faker
	return &models.Post{
		Title:    truncateRunes(fmt.Sprintf("%s, %s", f.City(), f.Country()), maxTitleRunes),
		Filename: fmt.Sprintf("https://picsum.photos/seed/%s/800/600", f.UUID()),
		Desc:     f.Paragraph(1, 2, 12, " "),
	}
}

// SeedPosts creates n posts and returns them in insertion order.
func (s *Seeder) SeedPosts(ctx context.Context, n int) ([]*models.Post, error) {
	out := make([]*models.Post, 0, n)
	for i := 0; i < n; i++ {
		p := s.Post()
		if err := s.posts.Create(ctx, p); err != nil {
			return out, fmt.Errorf("create post %d: %w", i+1, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
