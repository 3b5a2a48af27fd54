package redis

import (
	"context"
	"fmt"
	"time"

	"jornada/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("redis",
	fx.Provide(New),
)

const (
	pingAttempts = 5
	pingBackoff  = 2 * time.Second
)

// New returns nil when REDIS.ADDR is empty; the lock, sequence and ranking
// cache fall back to in-process implementations in that case.
func New(lc fx.Lifecycle, c *config.Config, log *zap.Logger) *redis.Client {
	if c.Redis.Addr == "" {
		log.Info("redis disabled, REDIS.ADDR not set")
		return nil
	}

	rdb := redis.NewClient(Options(c))
	log = log.Named("redis").With(zap.String("addr", c.Redis.Addr), zap.Int("db", c.Redis.DB))

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := WaitReady(ctx, rdb, pingAttempts, pingBackoff, log); err != nil {
				return err
			}
			log.Info("redis connected", zap.Int("pool_size", c.Redis.PoolSize))
			return nil
		},
		OnStop: func(context.Context) error {
			return rdb.Close()
		},
	})

	return rdb
}

func Options(c *config.Config) *redis.Options {
	return &redis.Options{
		Addr:        c.Redis.Addr,
		Password:    c.Redis.Password,
		DB:          c.Redis.DB,
		PoolSize:    c.Redis.PoolSize,
		PoolTimeout: c.Redis.PoolTimeout,
	}
}

// WaitReady pings until the server answers, the attempts run out or ctx ends.
func WaitReady(ctx context.Context, rdb redis.UniversalClient, attempts int, backoff time.Duration, log *zap.Logger) error {
	var err error
	for i := 1; i <= attempts; i++ {
		if err = rdb.Ping(ctx).Err(); err == nil {
			return nil
		}
		if i == attempts {
			break
		}

		log.Warn("redis not ready", zap.Int("attempt", i), zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("redis ping after %d attempts: %w", attempts, err)
}
