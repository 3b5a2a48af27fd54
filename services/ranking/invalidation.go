package ranking

import (
	"context"

	"jornada/pkg/rediskey"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

func (s *Service) publishInvalidation(ctx context.Context, projectID string) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Publish(context.WithoutCancel(ctx), rediskey.BuildRankingInvalidateChannel(), projectID).Err(); err != nil {
		zap.L().Warn("failed to publish ranking invalidation", zap.String("project_id", projectID), zap.Error(err))
	}
}

// WatchInvalidations drops local top-10 entries named on the invalidation
// channel until stop is called. It returns once the subscription is live.
// Without redis it is a no-op.
func (s *Service) WatchInvalidations(ctx context.Context) (stop func() error, err error) {
	if s.rdb == nil {
		return func() error { return nil }, nil
	}

	sub := s.rdb.Subscribe(ctx, rediskey.BuildRankingInvalidateChannel())
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range sub.Channel() {
			s.cache.Invalidate(msg.Payload)
		}
	}()

	return func() error {
		err := sub.Close()
		<-done
		return err
	}, nil
}

func registerInvalidationWatcher(lc fx.Lifecycle, s *Service) {
	var stop func() error
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			var err error
			stop, err = s.WatchInvalidations(ctx)
			return err
		},
		OnStop: func(context.Context) error {
			return stop()
		},
	})
}
