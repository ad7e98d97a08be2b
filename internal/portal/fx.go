package portal

import "go.uber.org/fx"

var Module = fx.Module("portal",
	fx.Provide(New),
)
