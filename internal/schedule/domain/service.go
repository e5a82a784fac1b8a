package domain

import (
	"context"
	"time"

	subdomain "github.com/smallbiznis/rebill/internal/subscription/domain"
)

// Scope narrows a selector run to one organization. The zero value means
// all organizations.
type Scope struct {
	OrgID string
}

// All reports whether the scope spans every organization.
func (s Scope) All() bool { return s.OrgID == "" }

// Service decides which subscriptions bill today. Selection is read-only;
// all mutation happens in the lifecycle transitions downstream.
type Service interface {
	// DueForBilling returns the active subscriptions whose cadence fires on
	// the reference day, minus those already billed that day, those starting
	// or ending that day, and those created after it.
	DueForBilling(ctx context.Context, scope Scope, today time.Time) ([]subdomain.Subscription, error)
	// DueForFixedChargeEvents returns the subscriptions owing a monthly
	// fixed-charge event on the reference day.
	DueForFixedChargeEvents(ctx context.Context, scope Scope, today time.Time) ([]subdomain.Subscription, error)
}
