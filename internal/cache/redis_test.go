package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestNewRedisClientRequiresAddress(t *testing.T) {
	_, err := NewRedisClient(context.Background(), RedisConfig{})
	require.Error(t, err)
}

func TestNewRedisClientUnreachable(t *testing.T) {
	_, err := NewRedisClient(context.Background(), RedisConfig{
		Address: "127.0.0.1:1",
		Timeout: 200 * time.Millisecond,
	})
	require.Error(t, err)
}

func TestRedisStoreKeyPrefix(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisStore(client, "")
	require.Equal(t, "macrame:routes", store.key("routes"))

	store = NewRedisStore(client, "site-a:")
	require.Equal(t, "site-a:routes", store.key("routes"))
}
