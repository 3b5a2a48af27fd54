package actionlog

import "go.uber.org/fx"

var Module = fx.Module("actionlog.service",
	fx.Provide(NewService),
)
