// Package payment is the boundary to the payment gateway. The core only
// cancels in-flight payments when activation fails.
package payment

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Collaborator interface {
	CancelPayment(ctx context.Context, orgID, invoiceID string) error
}

type logCollaborator struct {
	log *zap.Logger
}

func NewLogCollaborator(log *zap.Logger) Collaborator {
	return &logCollaborator{log: log.Named("payment")}
}

func (c *logCollaborator) CancelPayment(ctx context.Context, orgID, invoiceID string) error {
	_ = ctx
	c.log.Info("cancel payment", zap.String("org_id", orgID), zap.String("invoice_id", invoiceID))
	return nil
}

// Module provides the default logging collaborator.
var Module = fx.Module("payment",
	fx.Provide(NewLogCollaborator),
)
