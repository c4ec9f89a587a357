package repository

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"

	"vlogy/internal/cache"
	"vlogy/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	return gormDB, mock
}

func setupSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "vlog.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Post{}))
	return db
}

func TestPostRepository_Create(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db, nil)

	post := &models.Post{Title: "Kyoto", Filename: "https://blob.example/k.jpg", Desc: "temples"}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "posts" ("title","filename","desc","created_at") VALUES ($1,$2,$3,$4) RETURNING "id"`)).
		WithArgs("Kyoto", "https://blob.example/k.jpg", "temples", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectCommit()

	err := repo.Create(context.Background(), post)
	require.NoError(t, err)
	assert.Equal(t, uint(7), post.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_CreateError(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "posts"`)).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &models.Post{Title: "x"})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_ListOrdersByID(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db, nil)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "posts" ORDER BY id ASC`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "filename", "desc"}).
			AddRow(1, "Kyoto", "k.jpg", "temples").
			AddRow(2, "Lisbon", "https://blob.example/l.jpg", "trams"))

	posts, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "Kyoto", posts[0].Title)
	assert.Equal(t, "trams", posts[1].Desc)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_ListEmpty(t *testing.T) {
	repo := NewPostRepository(setupSQLite(t), nil)

	posts, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestPostRepository_SQLiteRoundTrip(t *testing.T) {
	repo := NewPostRepository(setupSQLite(t), nil)
	ctx := context.Background()

	for _, title := range []string{"Kyoto", "Lisbon", "Oaxaca"} {
		require.NoError(t, repo.Create(ctx, &models.Post{Title: title, Filename: title + ".jpg"}))
	}

	posts, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 3)
	for i, want := range []string{"Kyoto", "Lisbon", "Oaxaca"} {
		assert.Equal(t, want, posts[i].Title)
		if i > 0 {
			assert.Greater(t, posts[i].ID, posts[i-1].ID)
		}
	}
}

func setupCachedRepo(t *testing.T) (PostRepository, *gorm.DB, *cache.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := cache.New(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	db := setupSQLite(t)
	return NewPostRepository(db, c), db, c, mr
}

func TestPostRepository_CachedListRefreshedOnCreate(t *testing.T) {
	repo, _, c, mr := setupCachedRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.Post{Title: "Kyoto", Desc: "temples"}))

	first, err := repo.List(ctx)
	require.NoError(t, err)
	key, ok := c.PostsListKey(ctx)
	require.True(t, ok)
	assert.True(t, mr.Exists(key))

	second, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Len(t, second, 1)

	require.NoError(t, repo.Create(ctx, &models.Post{Title: "Lisbon"}))
	next, ok := c.PostsListKey(ctx)
	require.True(t, ok)
	assert.NotEqual(t, key, next)

	third, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, third, 2)
}

func TestPostRepository_WriteDuringListIsNotHidden(t *testing.T) {
	repo, db, _, _ := setupCachedRepo(t)
	ctx := context.Background()

	// Commit a post after List has read the table but before it stores the result.
	fired := false
	require.NoError(t, db.Callback().Query().After("gorm:query").Register("test:interleave_create", func(tx *gorm.DB) {
		if fired {
			return
		}
		fired = true
		require.NoError(t, repo.Create(ctx, &models.Post{Title: "Oaxaca"}))
	}))

	stale, err := repo.List(ctx)
	require.NoError(t, err)
	require.True(t, fired)
	assert.Empty(t, stale)

	var rows int64
	require.NoError(t, db.Model(&models.Post{}).Count(&rows).Error)
	require.Equal(t, int64(1), rows)

	fresh, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	assert.Equal(t, "Oaxaca", fresh[0].Title)
}

func TestPostRepository_ListWithoutRedis(t *testing.T) {
	repo, _, _, mr := setupCachedRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &models.Post{Title: "Kyoto"}))

	mr.Close()

	posts, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, posts, 1)
}
