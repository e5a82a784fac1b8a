package subscription

import (
	"github.com/smallbiznis/rebill/internal/subscription/repository"
	"github.com/smallbiznis/rebill/internal/subscription/service"
	"go.uber.org/fx"
)

// Module wires the subscription repository and lifecycle service.
var Module = fx.Module("subscription",
	fx.Provide(
		repository.New,
		service.New,
	),
)
