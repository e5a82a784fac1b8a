package main

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/rebill/internal/billingrecord"
	"github.com/smallbiznis/rebill/internal/billingtask"
	"github.com/smallbiznis/rebill/internal/clock"
	"github.com/smallbiznis/rebill/internal/config"
	"github.com/smallbiznis/rebill/internal/customer"
	"github.com/smallbiznis/rebill/internal/id"
	"github.com/smallbiznis/rebill/internal/invoicing"
	"github.com/smallbiznis/rebill/internal/logger"
	"github.com/smallbiznis/rebill/internal/notify"
	"github.com/smallbiznis/rebill/internal/payment"
	"github.com/smallbiznis/rebill/internal/plan"
	"github.com/smallbiznis/rebill/internal/schedule"
	"github.com/smallbiznis/rebill/internal/scheduler"
	"github.com/smallbiznis/rebill/internal/subscription"
	"github.com/smallbiznis/rebill/pkg/db"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		clock.Module,
		db.Module,

		customer.Module,
		plan.Module,
		billingrecord.Module,
		subscription.Module,
		schedule.Module,

		invoicing.Module,
		payment.Module,
		notify.Module,
		billingtask.Module,

		scheduler.Module,

		fx.Invoke(registerSnowflake),
	)
	app.Run()
}

func registerSnowflake(cfg config.Config) error {
	return id.Init(int64(cfg.SnowflakeNodeID))
}
