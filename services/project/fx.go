package project

import "go.uber.org/fx"

var Module = fx.Module("project.service",
	fx.Provide(NewService),
)
