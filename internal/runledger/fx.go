package runledger

import "go.uber.org/fx"

var Module = fx.Module("runledger",
	fx.Provide(New),
)
