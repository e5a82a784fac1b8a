package domain

import (
	"context"
	"time"

	"gorm.io/datatypes"
)

// InvoiceType distinguishes the schedule-driven recurring invoices from
// one-off documents issued on lifecycle events.
type InvoiceType string

const (
	InvoiceTypeRecurring   InvoiceType = "recurring"
	InvoiceTypeOneOff      InvoiceType = "one_off"
	InvoiceTypeTermination InvoiceType = "termination"
)

// InvoiceSubscription records that a subscription was picked up for an
// invoice. Recurring rows are the idempotency ledger the billing selector
// checks before re-billing a subscription on the same billing day.
type InvoiceSubscription struct {
	ID             string      `gorm:"column:id;primaryKey" json:"id"`
	OrgID          string      `gorm:"column:org_id;index" json:"org_id"`
	InvoiceID      string      `gorm:"column:invoice_id;index" json:"invoice_id"`
	SubscriptionID string      `gorm:"column:subscription_id;index" json:"subscription_id"`
	InvoiceType    InvoiceType `gorm:"column:invoice_type;index" json:"invoice_type"`
	// Timestamp is the reference instant the invoice was generated for, in UTC.
	Timestamp time.Time `gorm:"column:timestamp;index" json:"timestamp"`

	FromDate         *time.Time        `gorm:"column:from_date" json:"from_date,omitempty"`
	ToDate           *time.Time        `gorm:"column:to_date" json:"to_date,omitempty"`
	ChargesFromDate  *time.Time        `gorm:"column:charges_from_date" json:"charges_from_date,omitempty"`
	ChargesToDate    *time.Time        `gorm:"column:charges_to_date" json:"charges_to_date,omitempty"`
	Metadata         datatypes.JSONMap `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	CreatedAt        time.Time         `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (InvoiceSubscription) TableName() string { return "invoice_subscriptions" }

// Repository persists the invoice-subscription ledger.
type Repository interface {
	Create(ctx context.Context, rec *InvoiceSubscription) error
	// ListRecurringInWindow returns recurring rows for the given
	// subscriptions whose timestamp falls inside [from, to).
	ListRecurringInWindow(ctx context.Context, orgID string, subscriptionIDs []string, from, to time.Time) ([]InvoiceSubscription, error)
	// FindLatestRecurring returns the most recent recurring row for the
	// subscription, or nil when none exists.
	FindLatestRecurring(ctx context.Context, orgID, subscriptionID string) (*InvoiceSubscription, error)
}
