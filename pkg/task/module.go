package task

import (
	"context"

	"jornada/pkg/config"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Client = fx.Module("asynq:client",
	fx.Provide(newClient, NewEnqueuer),
)

var Server = fx.Module("asynq:server",
	fx.Provide(newServeMux),
	fx.Invoke(runServer),
)

func redisOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	}
}

// newClient returns nil without REDIS.ADDR.
func newClient(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (*asynq.Client, error) {
	if cfg.Redis.Addr == "" {
		log.Info("task queue disabled, REDIS.ADDR not set")
		return nil, nil
	}

	client := asynq.NewClient(redisOpt(cfg))
	if err := client.Ping(); err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

func newServeMux(log *zap.Logger) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Use(Observe(log.Named("worker")))
	return mux
}

// ServerConfig weights the queues so ingestion side effects drain before
// housekeeping.
func ServerConfig(log *zap.Logger) asynq.Config {
	return asynq.Config{
		Concurrency: 10,
		Queues: map[string]int{
			QueueCritical: 6,
			QueueDefault:  3,
			QueueLow:      1,
		},
		Logger: zapLogger{s: log.Named("asynq").Sugar()},
	}
}

func runServer(lc fx.Lifecycle, cfg *config.Config, mux *asynq.ServeMux, log *zap.Logger) {
	server := asynq.NewServer(redisOpt(cfg), ServerConfig(log))

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if err := server.Start(mux); err != nil {
				return err
			}
			log.Info("worker started", zap.String("redis", cfg.Redis.Addr))
			return nil
		},
		OnStop: func(context.Context) error {
			server.Shutdown()
			return nil
		},
	})
}
