package lock

import (
	"context"
	"errors"
	"time"

	"jornada/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("lock", fx.Provide(ProvideLocker))

var ErrNotAcquired = errors.New("lock: not acquired")

// Release frees a held lock. Calling it more than once is harmless.
type Release func(ctx context.Context) error

type Locker interface {
	// Acquire blocks until key is held, ctx is done or the wait budget runs out.
	Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error)
}

type Params struct {
	fx.In
	Config *config.Config
	Redis  *redis.Client `optional:"true"`
}

func ProvideLocker(p Params) Locker {
	if p.Redis == nil {
		zap.L().Info("using in-process locker")
		return NewLocal()
	}
	return NewRedis(p.Redis)
}
