package domain

import (
	"context"
	"time"
)

// ListFilter narrows repository queries.
type ListFilter struct {
	OrgID      string
	CustomerID string
	Statuses   []Status
	// SubscriptionAtBefore matches pending subscriptions whose start date
	// has arrived.
	SubscriptionAtBefore *time.Time
	// EndingBefore matches subscriptions whose ending_at is due.
	EndingBefore *time.Time
	// ActivationTimedOutBefore matches activating subscriptions whose
	// activation window lapsed.
	ActivationTimedOutBefore *time.Time
	Limit                    int
}

// Repository persists subscriptions.
type Repository interface {
	Create(ctx context.Context, sub *Subscription) error
	Update(ctx context.Context, sub *Subscription) error
	FindByID(ctx context.Context, orgID, id string) (*Subscription, error)
	// FindByIDForUpdate locks the row for the duration of the enclosing
	// transaction.
	FindByIDForUpdate(ctx context.Context, orgID, id string) (*Subscription, error)
	List(ctx context.Context, filter ListFilter) ([]Subscription, error)
}
