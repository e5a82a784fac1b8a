package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrSubscriptionNotFound = errors.New("subscription_not_found")
	ErrInvalidBillingTime   = errors.New("unsupported_billing_time")
	ErrPlanRequired         = errors.New("plan_required")
	ErrCustomerRequired     = errors.New("customer_required")
)

// Outcome tags whether a lifecycle operation changed anything.
type Outcome string

const (
	OutcomeApplied Outcome = "applied"
	OutcomeNoOp    Outcome = "noop"
)

// TransitionResult reports the effect of a lifecycle operation. Operations
// on subscriptions in a non-eligible state return NoOp rather than an error.
type TransitionResult struct {
	Outcome      Outcome
	Subscription *Subscription
	// Successor is set when the operation rotated the customer onto a new
	// subscription (upgrade) or queued one (downgrade).
	Successor *Subscription
}

func Applied(sub *Subscription) TransitionResult {
	return TransitionResult{Outcome: OutcomeApplied, Subscription: sub}
}

func NoOp(sub *Subscription) TransitionResult {
	return TransitionResult{Outcome: OutcomeNoOp, Subscription: sub}
}

// CreateSubscriptionInput starts a subscription for a customer.
type CreateSubscriptionInput struct {
	OrgID          string
	CustomerID     string
	PlanID         string
	BillingTime    BillingTime
	SubscriptionAt time.Time
	// RequiresActivation gates the subscription behind an external
	// provisioning step before it starts billing.
	RequiresActivation bool
	ActivationTimeout  time.Duration
}

// ChangePlanInput moves a subscription to a different plan. Upgrades take
// effect immediately, downgrades at the next period boundary.
type ChangePlanInput struct {
	OrgID          string
	SubscriptionID string
	PlanID         string
}

// TerminateInput ends a subscription.
type TerminateInput struct {
	OrgID          string
	SubscriptionID string
	// Async defers side effects (credit notes, notifications) to the
	// background task queue.
	Async bool
}

// Service drives the subscription lifecycle.
type Service interface {
	Create(ctx context.Context, in CreateSubscriptionInput) (*Subscription, error)
	Get(ctx context.Context, orgID, id string) (*Subscription, error)

	// Activate moves a pending subscription into active (or activating when
	// an external step gates it).
	Activate(ctx context.Context, orgID, id string, at time.Time) (TransitionResult, error)
	// ConfirmActivation completes the external activation step. invoiceID
	// identifies the gating invoice to finalize; empty when unknown.
	ConfirmActivation(ctx context.Context, orgID, id, invoiceID string, at time.Time) (TransitionResult, error)
	// ExpireActivation terminates a subscription whose gating invoice
	// failed or whose activation window lapsed.
	ExpireActivation(ctx context.Context, orgID, id, invoiceID string, at time.Time) (TransitionResult, error)

	ChangePlan(ctx context.Context, in ChangePlanInput) (TransitionResult, error)
	Terminate(ctx context.Context, in TerminateInput) (TransitionResult, error)
	// Rotate flips a downgrade pair at a billing boundary: predecessor to
	// terminated, pending successor to active, both in one transaction.
	Rotate(ctx context.Context, orgID, id string, at time.Time) (TransitionResult, error)
	Cancel(ctx context.Context, orgID, id string) (TransitionResult, error)
}
