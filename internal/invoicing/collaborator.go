// Package invoicing is the boundary to the invoice engine. The billing core
// decides when and for what period to bill; fee computation, tax and
// document generation live behind this interface.
package invoicing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Reason tags why an invoice was requested.
type Reason string

const (
	ReasonPeriodic    Reason = "subscription_periodic"
	ReasonStarting    Reason = "subscription_starting"
	ReasonTerminating Reason = "subscription_terminating"
	ReasonFixedCharge Reason = "fixed_charge_event"
)

// BillRequest asks the invoice engine to bill a batch of subscriptions for
// one customer at the given reference instant.
type BillRequest struct {
	OrgID           string
	CustomerID      string
	SubscriptionIDs []string
	Timestamp       time.Time
	Reason          Reason
}

// CreditNoteRequest refunds the unconsumed remainder of a prepaid period.
type CreditNoteRequest struct {
	OrgID          string
	SubscriptionID string
	AmountCents    decimal.Decimal
	Currency       string
	FromDate       time.Time
	ToDate         time.Time
}

// Collaborator is the narrow surface the lifecycle and dispatcher call.
type Collaborator interface {
	Bill(ctx context.Context, req BillRequest) error
	IssueCreditNote(ctx context.Context, req CreditNoteRequest) error
	// RequestFirstInvoice opens the gating invoice for an activating
	// subscription. Success or failure comes back through the lifecycle's
	// ConfirmActivation / ExpireActivation calls.
	RequestFirstInvoice(ctx context.Context, orgID, subscriptionID string) error
	FinalizeInvoice(ctx context.Context, orgID, invoiceID string) error
	VoidInvoice(ctx context.Context, orgID, invoiceID string) error
}

type logCollaborator struct {
	log *zap.Logger
}

// NewLogCollaborator returns a Collaborator that only records requests. It
// stands in until a real invoice engine is wired.
func NewLogCollaborator(log *zap.Logger) Collaborator {
	return &logCollaborator{log: log.Named("invoicing")}
}

func (c *logCollaborator) Bill(ctx context.Context, req BillRequest) error {
	_ = ctx
	c.log.Info("bill request",
		zap.String("org_id", req.OrgID),
		zap.String("customer_id", req.CustomerID),
		zap.Strings("subscription_ids", req.SubscriptionIDs),
		zap.Time("timestamp", req.Timestamp),
		zap.String("reason", string(req.Reason)),
	)
	return nil
}

func (c *logCollaborator) IssueCreditNote(ctx context.Context, req CreditNoteRequest) error {
	_ = ctx
	c.log.Info("credit note request",
		zap.String("org_id", req.OrgID),
		zap.String("subscription_id", req.SubscriptionID),
		zap.String("amount_cents", req.AmountCents.String()),
		zap.String("currency", req.Currency),
	)
	return nil
}

func (c *logCollaborator) RequestFirstInvoice(ctx context.Context, orgID, subscriptionID string) error {
	_ = ctx
	c.log.Info("first invoice request",
		zap.String("org_id", orgID),
		zap.String("subscription_id", subscriptionID),
	)
	return nil
}

func (c *logCollaborator) FinalizeInvoice(ctx context.Context, orgID, invoiceID string) error {
	_ = ctx
	c.log.Info("finalize invoice", zap.String("org_id", orgID), zap.String("invoice_id", invoiceID))
	return nil
}

func (c *logCollaborator) VoidInvoice(ctx context.Context, orgID, invoiceID string) error {
	_ = ctx
	c.log.Info("void invoice", zap.String("org_id", orgID), zap.String("invoice_id", invoiceID))
	return nil
}

// Module provides the default logging collaborator.
var Module = fx.Module("invoicing",
	fx.Provide(NewLogCollaborator),
)
