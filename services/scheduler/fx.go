package scheduler

import "go.uber.org/fx"

var Module = fx.Module("scheduler.service",
	fx.Provide(
		NewService,
		NewScheduler,
	),
	fx.Invoke(StartScheduler),
)
