package domain

import (
	"time"

	customerdomain "github.com/smallbiznis/rebill/internal/customer/domain"
	plandomain "github.com/smallbiznis/rebill/internal/plan/domain"
	"gorm.io/datatypes"
)

// Status is the lifecycle state of a subscription.
type Status string

const (
	StatusPending    Status = "pending"
	StatusActivating Status = "activating"
	StatusActive     Status = "active"
	StatusTerminated Status = "terminated"
	StatusCanceled   Status = "canceled"
)

// BillingTime controls how period boundaries are anchored.
type BillingTime string

const (
	// BillingTimeCalendar aligns periods to natural calendar units.
	BillingTimeCalendar BillingTime = "calendar"
	// BillingTimeAnniversary aligns periods to the subscription anchor date.
	BillingTimeAnniversary BillingTime = "anniversary"
)

func (b BillingTime) Valid() bool {
	return b == BillingTimeCalendar || b == BillingTimeAnniversary
}

// Subscription attaches a customer to a plan over time.
type Subscription struct {
	ID          string      `gorm:"column:id;primaryKey" json:"id"`
	OrgID       string      `gorm:"column:org_id;index" json:"org_id"`
	ExternalID  string      `gorm:"column:external_id;index" json:"external_id"`
	CustomerID  string      `gorm:"column:customer_id;index" json:"customer_id"`
	PlanID      string      `gorm:"column:plan_id;index" json:"plan_id"`
	Status      Status      `gorm:"column:status;index" json:"status"`
	BillingTime BillingTime `gorm:"column:billing_time" json:"billing_time"`

	// SubscriptionAt is the anchor date for anniversary billing. It survives
	// plan rotations so the customer keeps the same billing day.
	SubscriptionAt      time.Time  `gorm:"column:subscription_at" json:"subscription_at"`
	StartedAt           *time.Time `gorm:"column:started_at" json:"started_at,omitempty"`
	EndingAt            *time.Time `gorm:"column:ending_at" json:"ending_at,omitempty"`
	TerminatedAt        *time.Time `gorm:"column:terminated_at" json:"terminated_at,omitempty"`
	ActivatingAt        *time.Time `gorm:"column:activating_at" json:"activating_at,omitempty"`
	ActivationTimeoutAt *time.Time `gorm:"column:activation_timeout_at" json:"activation_timeout_at,omitempty"`
	CanceledAt          *time.Time `gorm:"column:canceled_at" json:"canceled_at,omitempty"`

	// ActivationRequired gates the subscription behind a successful first
	// invoice before it becomes active.
	ActivationRequired       bool  `gorm:"column:activation_required" json:"activation_required"`
	ActivationTimeoutSeconds int64 `gorm:"column:activation_timeout_seconds" json:"activation_timeout_seconds,omitempty"`

	PreviousSubscriptionID *string `gorm:"column:previous_subscription_id;index" json:"previous_subscription_id,omitempty"`
	NextSubscriptionID     *string `gorm:"column:next_subscription_id;index" json:"next_subscription_id,omitempty"`

	Metadata  datatypes.JSONMap `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time         `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	Customer *customerdomain.Customer `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	Plan     *plandomain.Plan         `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
}

func (Subscription) TableName() string { return "subscriptions" }

// IsActive reports whether the subscription is currently billable.
func (s Subscription) IsActive() bool { return s.Status == StatusActive }

// HasPendingSuccessor reports whether a deferred plan change is queued.
func (s Subscription) HasPendingSuccessor() bool { return s.NextSubscriptionID != nil }

// AnchorDay returns the day-of-month the subscription bills on under
// anniversary alignment.
func (s Subscription) AnchorDay() int { return s.SubscriptionAt.Day() }
