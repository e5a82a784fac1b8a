package schedule

import (
	"github.com/smallbiznis/rebill/internal/schedule/service"
	"go.uber.org/fx"
)

// Module wires the billing schedule selector.
var Module = fx.Module("schedule",
	fx.Provide(
		service.New,
	),
)
