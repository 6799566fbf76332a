package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hackgods/clinic-booking-scheduling/internal/config"
)

const (
	defaultTimeout  = 2 * time.Second
	defaultPoolSize = 10
	pingTimeout     = 5 * time.Second
)

// Options configures the shared client used for slot locks and the name cache.
type Options struct {
	Addr     string
	Username string
	Password string
	Timeout  time.Duration
	PoolSize int
}

func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
		Timeout:  cfg.RedisTimeout,
		PoolSize: cfg.RedisPoolSize,
	}
}

func (o Options) clientOptions() *redis.Options {
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	poolSize := o.PoolSize
	if poolSize <= 0 {
		poolSize = defaultPoolSize
	}

	return &redis.Options{
		Addr:         o.Addr,
		Username:     o.Username,
		Password:     o.Password,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
		PoolSize:     poolSize,
		MinIdleConns: 1,
	}
}

// NewRedisClient connects and pings; a client that cannot answer a ping is
// closed and an error returned so callers can fall back to running without Redis.
func NewRedisClient(ctx context.Context, opts Options) (*redis.Client, error) {
	rdb := redis.NewClient(opts.clientOptions())

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", opts.Addr, err)
	}

	return rdb, nil
}
