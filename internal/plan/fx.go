package plan

import (
	"github.com/smallbiznis/rebill/internal/plan/repository"
	"go.uber.org/fx"
)

// Module wires the plan repository.
var Module = fx.Module("plan",
	fx.Provide(
		repository.New,
	),
)
