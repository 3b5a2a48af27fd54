package participant

import "go.uber.org/fx"

var Module = fx.Module("participant.service",
	fx.Provide(NewService),
)
