package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

var (
	ErrPlanNotFound        = errors.New("plan_not_found")
	ErrUnsupportedInterval = errors.New("unsupported_interval")
)

// Interval is the billing cadence of a plan.
type Interval string

const (
	IntervalWeekly     Interval = "weekly"
	IntervalMonthly    Interval = "monthly"
	IntervalQuarterly  Interval = "quarterly"
	IntervalSemiannual Interval = "semiannual"
	IntervalYearly     Interval = "yearly"
)

// Valid reports whether the interval is one of the supported cadences.
func (i Interval) Valid() bool {
	switch i {
	case IntervalWeekly, IntervalMonthly, IntervalQuarterly, IntervalSemiannual, IntervalYearly:
		return true
	}
	return false
}

// StepMonths returns the number of months in one period for month-based
// intervals, or 0 for weekly.
func (i Interval) StepMonths() int {
	switch i {
	case IntervalMonthly:
		return 1
	case IntervalQuarterly:
		return 3
	case IntervalSemiannual:
		return 6
	case IntervalYearly:
		return 12
	}
	return 0
}

// PeriodsPerYear returns how many billing periods the interval yields in a year.
func (i Interval) PeriodsPerYear() int64 {
	switch i {
	case IntervalWeekly:
		return 52
	case IntervalMonthly:
		return 12
	case IntervalQuarterly:
		return 4
	case IntervalSemiannual:
		return 2
	case IntervalYearly:
		return 1
	}
	return 0
}

// Plan is a billable offering a customer subscribes to.
type Plan struct {
	ID                      string            `gorm:"column:id;primaryKey" json:"id"`
	OrgID                   string            `gorm:"column:org_id;index" json:"org_id"`
	Code                    string            `gorm:"column:code" json:"code"`
	Name                    string            `gorm:"column:name" json:"name"`
	Interval                Interval          `gorm:"column:interval" json:"interval"`
	AmountCents             int64             `gorm:"column:amount_cents" json:"amount_cents"`
	Currency                string            `gorm:"column:currency" json:"currency"`
	PayInAdvance            bool              `gorm:"column:pay_in_advance" json:"pay_in_advance"`
	TrialPeriod             int               `gorm:"column:trial_period" json:"trial_period"`
	BillChargesMonthly      bool              `gorm:"column:bill_charges_monthly" json:"bill_charges_monthly"`
	BillFixedChargesMonthly bool              `gorm:"column:bill_fixed_charges_monthly" json:"bill_fixed_charges_monthly"`
	Metadata                datatypes.JSONMap `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	CreatedAt               time.Time         `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt               time.Time         `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Plan) TableName() string { return "plans" }

// YearlyAmount normalizes the plan price to a yearly figure so plans on
// different cadences can be compared.
func (p Plan) YearlyAmount() decimal.Decimal {
	return decimal.NewFromInt(p.AmountCents).Mul(decimal.NewFromInt(p.Interval.PeriodsPerYear()))
}
