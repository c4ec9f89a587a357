package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"vlogy/internal/middleware"

	"github.com/redis/go-redis/v9"
)

const (
	postsListVersionKey = "posts:list:version"

	// ListTTL bounds how long a superseded feed generation lingers in Redis.
	ListTTL = 2 * time.Minute
)

func postsListKey(version int64) string {
	return "posts:list:v" + strconv.FormatInt(version, 10)
}

// PostsListKey returns the key of the current feed generation. ok is false
// when the cache is disabled or the generation cannot be read.
func (c *Cache) PostsListKey(ctx context.Context) (key string, ok bool) {
	if !c.Enabled() {
		return "", false
	}
	version, err := c.rdb.Get(ctx, postsListVersionKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		middleware.Logger.WarnContext(ctx, "cache version read failed", "key", postsListVersionKey, "error", err)
		return "", false
	}
	return postsListKey(version), true
}

// BumpPostsList starts a new feed generation. A list loaded before the bump
// is stored under the old key and never read again.
func (c *Cache) BumpPostsList(ctx context.Context) {
	if !c.Enabled() {
		return
	}
	if err := c.rdb.Incr(ctx, postsListVersionKey).Err(); err != nil {
		middleware.Logger.WarnContext(ctx, "cache version bump failed", "key", postsListVersionKey, "error", err)
	}
}
