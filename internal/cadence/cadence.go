// Package cadence holds the pure billing-day predicates, one per
// interval and alignment pair. Each predicate answers "does this
// subscription bill today" for a date already resolved into the
// customer's timezone. The selector composes these functions; no date
// logic lives in SQL.
package cadence

import (
	"time"

	plandomain "github.com/smallbiznis/rebill/internal/plan/domain"
	subdomain "github.com/smallbiznis/rebill/internal/subscription/domain"
)

func WeeklyCalendar(today time.Time) bool {
	return today.Weekday() == time.Monday
}

func WeeklyAnniversary(today, anchor time.Time) bool {
	return today.Weekday() == anchor.Weekday()
}

func MonthlyCalendar(today time.Time) bool {
	return today.Day() == 1
}

func MonthlyAnniversary(today, anchor time.Time) bool {
	return anniversaryDayMatches(today, anchor)
}

func QuarterlyCalendar(today time.Time) bool {
	switch today.Month() {
	case time.January, time.April, time.July, time.October:
		return today.Day() == 1
	}
	return false
}

func QuarterlyAnniversary(today, anchor time.Time) bool {
	return monthPhaseMatches(today, anchor, 3) && anniversaryDayMatches(today, anchor)
}

func SemiannualCalendar(today time.Time) bool {
	return (today.Month() == time.January || today.Month() == time.July) && today.Day() == 1
}

func SemiannualAnniversary(today, anchor time.Time) bool {
	return monthPhaseMatches(today, anchor, 6) && anniversaryDayMatches(today, anchor)
}

func YearlyCalendar(today time.Time) bool {
	return today.Month() == time.January && today.Day() == 1
}

func YearlyAnniversary(today, anchor time.Time) bool {
	return today.Month() == anchor.Month() && anniversaryDayMatches(today, anchor)
}

// anniversaryDayMatches applies the month-end roll rule: an anchor on the
// 31st (or Feb 29) bills on the last day of shorter months.
func anniversaryDayMatches(today, anchor time.Time) bool {
	if today.Day() == anchor.Day() {
		return true
	}
	last := lastDayOfMonth(today)
	return today.Day() == last && anchor.Day() > last
}

func monthPhaseMatches(today, anchor time.Time, stepMonths int) bool {
	diff := (int(today.Month()) - int(anchor.Month())) % stepMonths
	if diff < 0 {
		diff += stepMonths
	}
	return diff == 0
}

func lastDayOfMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// monthlyDay is the nested monthly sub-period predicate used by the
// charge overrides on yearly and semiannual plans.
func monthlyDay(today time.Time, sub subdomain.Subscription) bool {
	if sub.BillingTime == subdomain.BillingTimeCalendar {
		return MonthlyCalendar(today)
	}
	return MonthlyAnniversary(today, sub.SubscriptionAt)
}

func longInterval(i plandomain.Interval) bool {
	return i == plandomain.IntervalYearly || i == plandomain.IntervalSemiannual
}

// IsBillingDay reports whether the subscription's cadence fires on today.
// Status, idempotency and start/end-day exclusions are the selector's job.
func IsBillingDay(today time.Time, sub subdomain.Subscription, plan plandomain.Plan) bool {
	anchor := sub.SubscriptionAt
	calendar := sub.BillingTime == subdomain.BillingTimeCalendar

	var due bool
	switch plan.Interval {
	case plandomain.IntervalWeekly:
		if calendar {
			due = WeeklyCalendar(today)
		} else {
			due = WeeklyAnniversary(today, anchor)
		}
	case plandomain.IntervalMonthly:
		if calendar {
			due = MonthlyCalendar(today)
		} else {
			due = MonthlyAnniversary(today, anchor)
		}
	case plandomain.IntervalQuarterly:
		if calendar {
			due = QuarterlyCalendar(today)
		} else {
			due = QuarterlyAnniversary(today, anchor)
		}
	case plandomain.IntervalSemiannual:
		if calendar {
			due = SemiannualCalendar(today)
		} else {
			due = SemiannualAnniversary(today, anchor)
		}
	case plandomain.IntervalYearly:
		if calendar {
			due = YearlyCalendar(today)
		} else {
			due = YearlyAnniversary(today, anchor)
		}
	default:
		return false
	}

	if due {
		return true
	}
	// Yearly and semiannual plans billing charges monthly also fire on
	// every nested sub-period day.
	return plan.BillChargesMonthly && longInterval(plan.Interval) && monthlyDay(today, sub)
}

// IsFixedChargeDay reports whether a fixed-charge event is due today for a
// plan that bills fixed charges monthly inside a longer fee period.
func IsFixedChargeDay(today time.Time, sub subdomain.Subscription, plan plandomain.Plan) bool {
	return plan.BillFixedChargesMonthly && longInterval(plan.Interval) && monthlyDay(today, sub)
}
