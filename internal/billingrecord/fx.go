package billingrecord

import (
	"github.com/smallbiznis/rebill/internal/billingrecord/repository"
	"go.uber.org/fx"
)

// Module wires the invoice-subscription ledger repository.
var Module = fx.Module("billingrecord",
	fx.Provide(
		repository.New,
	),
)
