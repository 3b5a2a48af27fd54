package main

import (
	"log"
	"time"

	"jornada/pkg/config"
	"jornada/pkg/db"
	"jornada/pkg/gen"
	"jornada/pkg/health"
	"jornada/pkg/logger"
	"jornada/pkg/minio"
	"jornada/pkg/otelcol"
	"jornada/pkg/redis"
	"jornada/pkg/sequence"
	"jornada/pkg/server"
	"jornada/pkg/task"
	"jornada/services/actionlog"
	"jornada/services/project"
	"jornada/services/proof"
	"jornada/services/ranking"
	"jornada/services/scheduler"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		gen.Module,
		otelcol.Module,
		db.Module,
		redis.Module,
		sequence.Module,
		task.Client,
		task.Server,
		minio.Client,
		health.Module,
		fx.Provide(
			fx.Annotate(provideClock, fx.ResultTags(`name:"clock"`)),
		),
		fx.Invoke(
			installTracing,
			db.Otel,
			migrate,
		),
		project.Module,
		actionlog.Module,
		ranking.Module,
		ranking.Worker,
		proof.Module,
		proof.Worker,
		scheduler.Module,
		server.ProvideGRPCServer,
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	fx.New(opts...).Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})

func provideClock() func() time.Time {
	return time.Now
}

func installTracing(trace.TracerProvider) {}

func migrate(cfg *config.Config, conn *gorm.DB) error {
	if !cfg.Database.AutoMigrate {
		return nil
	}
	return conn.AutoMigrate(&scheduler.ScheduledJob{})
}
