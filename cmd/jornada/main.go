package main

import (
	"log"
	"time"

	"jornada/pkg/config"
	"jornada/pkg/db"
	"jornada/pkg/featureflags"
	"jornada/pkg/gen"
	"jornada/pkg/health"
	"jornada/pkg/httpapi"
	"jornada/pkg/lock"
	"jornada/pkg/logger"
	"jornada/pkg/otelcol"
	"jornada/pkg/redis"
	"jornada/pkg/sequence"
	"jornada/pkg/server"
	"jornada/pkg/task"
	"jornada/services/actionlog"
	"jornada/services/manychat"
	"jornada/services/participant"
	"jornada/services/project"
	"jornada/services/ranking"

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
		lock.Module,
		featureflags.Module,
		task.Client,
		health.Module,
		httpapi.Module,
		fx.Provide(
			fx.Annotate(provideClock, fx.ResultTags(`name:"clock"`)),
		),
		fx.Invoke(
			installTracing,
			db.Otel,
			db.Metric,
			migrate,
		),
		participant.Module,
		project.Module,
		actionlog.Module,
		ranking.Module,
		ranking.Gateway,
		manychat.Module,
		manychat.Gateway,
		server.ProvideHTTPServer,
		server.ProvideGRPCServer,
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	fx.New(opts...).Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	if cfg.AppEnv == "production" {
		return fxevent.NopLogger
	}
	return &fxevent.ZapLogger{Logger: logger}
})

func provideClock() func() time.Time {
	return time.Now
}

// installTracing forces the tracer provider to be built before any span starts.
func installTracing(trace.TracerProvider) {}

func migrate(cfg *config.Config, conn *gorm.DB) error {
	if !cfg.Database.AutoMigrate {
		return nil
	}

	zap.L().Info("[DB] running auto migration")
	return conn.AutoMigrate(
		&participant.Participant{},
		&project.Project{},
		&project.DayTemplate{},
		&actionlog.ActionLog{},
		&ranking.RankingSummary{},
		&manychat.InboundEvent{},
	)
}
