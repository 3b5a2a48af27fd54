package redis

import (
	"context"
	"testing"
	"time"

	"jornada/pkg/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWaitReady(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := &config.Config{}
	cfg.Redis.Addr = mr.Addr()
	rdb := redis.NewClient(Options(cfg))
	t.Cleanup(func() { _ = rdb.Close() })

	require.NoError(t, WaitReady(context.Background(), rdb, 2, time.Millisecond, zap.NewNop()))
}

func TestWaitReadyGivesUp(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: addr, MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	err := WaitReady(context.Background(), rdb, 2, time.Millisecond, zap.NewNop())
	require.ErrorContains(t, err, "after 2 attempts")
}
