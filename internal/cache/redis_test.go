package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	Name string `json:"name"`
}

func setupCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	return New(redis.NewClient(&redis.Options{Addr: mr.Addr()})), mr
}

func TestAside_LoadsOnceThenServesFromCache(t *testing.T) {
	c, mr := setupCache(t)
	ctx := context.Background()

	loads := 0
	load := func(dest *[]entry) func() error {
		return func() error {
			loads++
			*dest = []entry{{Name: "Kyoto"}}
			return nil
		}
	}

	var first []entry
	require.NoError(t, c.Aside(ctx, "feed", &first, ListTTL, load(&first)))
	var second []entry
	require.NoError(t, c.Aside(ctx, "feed", &second, ListTTL, load(&second)))

	assert.Equal(t, 1, loads)
	assert.Equal(t, first, second)
	assert.True(t, mr.Exists("feed"))
}

func TestAside_LoadErrorIsNotCached(t *testing.T) {
	c, mr := setupCache(t)

	var out []entry
	err := c.Aside(context.Background(), "feed", &out, time.Minute, func() error {
		return errors.New("db down")
	})

	assert.EqualError(t, err, "db down")
	assert.False(t, mr.Exists("feed"))
}

func TestAside_DisabledCallsLoader(t *testing.T) {
	for name, c := range map[string]*Cache{"nil cache": nil, "nil client": New(nil)} {
		t.Run(name, func(t *testing.T) {
			called := false
			var out []entry
			err := c.Aside(context.Background(), "feed", &out, time.Minute, func() error {
				called = true
				return nil
			})

			assert.NoError(t, err)
			assert.True(t, called)
			assert.False(t, c.Enabled())
		})
	}
}

func TestPostsListKey_BumpMovesToNewGeneration(t *testing.T) {
	c, mr := setupCache(t)
	ctx := context.Background()

	before, ok := c.PostsListKey(ctx)
	require.True(t, ok)
	assert.Equal(t, "posts:list:v0", before)

	c.BumpPostsList(ctx)

	after, ok := c.PostsListKey(ctx)
	require.True(t, ok)
	assert.Equal(t, "posts:list:v1", after)
	assert.True(t, mr.Exists(postsListVersionKey))
}

func TestPostsListKey_DisabledOrUnreachable(t *testing.T) {
	_, ok := New(nil).PostsListKey(context.Background())
	assert.False(t, ok)

	c, mr := setupCache(t)
	mr.Close()
	_, ok = c.PostsListKey(context.Background())
	assert.False(t, ok)
}

func TestNewClient_EmptyAddressDisablesRedis(t *testing.T) {
	assert.Nil(t, NewClient(""))
}

func TestNewClient_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	assert.Nil(t, NewClient(addr))
}

func TestNewClient_URL(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := NewClient("redis://" + mr.Addr() + "/0")
	require.NotNil(t, rdb)
	t.Cleanup(func() { _ = rdb.Close() })

	assert.NoError(t, rdb.Ping(context.Background()).Err())
}
