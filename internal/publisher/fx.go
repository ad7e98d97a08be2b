package publisher

import "go.uber.org/fx"

var Module = fx.Module("publisher",
	fx.Provide(New),
)
