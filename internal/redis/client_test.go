package redisclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-booking-scheduling/internal/config"
)

func TestOptionsFromConfig(t *testing.T) {
	opts := OptionsFromConfig(config.Config{
		RedisAddr:     "cache.internal:6380",
		RedisUsername: "alice",
		RedisPassword: "s3cret",
		RedisTimeout:  750 * time.Millisecond,
		RedisPoolSize: 32,
	})

	ro := opts.clientOptions()
	assert.Equal(t, "cache.internal:6380", ro.Addr)
	assert.Equal(t, "alice", ro.Username)
	assert.Equal(t, "s3cret", ro.Password)
	assert.Equal(t, 750*time.Millisecond, ro.DialTimeout)
	assert.Equal(t, 750*time.Millisecond, ro.ReadTimeout)
	assert.Equal(t, 750*time.Millisecond, ro.WriteTimeout)
	assert.Equal(t, 32, ro.PoolSize)
}

func TestClientOptionsDefaults(t *testing.T) {
	ro := Options{Addr: "127.0.0.1:6379"}.clientOptions()
	assert.Equal(t, defaultTimeout, ro.ReadTimeout)
	assert.Equal(t, defaultTimeout, ro.WriteTimeout)
	assert.Equal(t, defaultPoolSize, ro.PoolSize)
}

func TestNewRedisClientFailsWhenUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	// nothing listens on port 1
	rdb, err := NewRedisClient(ctx, Options{Addr: "127.0.0.1:1", Timeout: 200 * time.Millisecond})
	require.Error(t, err)
	assert.Nil(t, rdb)
	assert.Contains(t, err.Error(), "127.0.0.1:1")
}
