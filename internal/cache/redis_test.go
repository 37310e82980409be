package cache

import (
	"context"
	"testing"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedis_Unreachable(t *testing.T) {
	_, err := NewRedis(Config{Addr: "127.0.0.1:1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping")
}

func TestRedisCache_GetError(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	c := NewRedisWithClient(client, "")
	defer c.Close()

	ctx := context.Background()
	_, ok, err := c.Get(ctx, "bars:x")
	assert.False(t, ok)
	assert.Error(t, err)
	assert.Error(t, c.Set(ctx, "bars:x", []byte("1"), time.Second))
	assert.Equal(t, "wedge:", c.prefix)
}
