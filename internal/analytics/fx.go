package analytics

import (
	"github.com/groupscope/groupscope/internal/analytics/service"
	"go.uber.org/fx"
)

var Module = fx.Module("analytics",
	fx.Provide(service.NewBuilder),
)
