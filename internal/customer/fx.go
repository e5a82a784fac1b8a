package customer

import (
	"github.com/smallbiznis/rebill/internal/customer/repository"
	"go.uber.org/fx"
)

// Module wires the customer repository.
var Module = fx.Module("customer",
	fx.Provide(
		repository.New,
	),
)
