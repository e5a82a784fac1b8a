// Package billingperiod derives invoicing period boundaries from a
// subscription anchor, a cadence and an alignment rule. Everything here is
// pure date arithmetic: the reference instant and its timezone come in as
// parameters and no storage is touched.
package billingperiod

import (
	"errors"
	"time"

	plandomain "github.com/smallbiznis/rebill/internal/plan/domain"
	subdomain "github.com/smallbiznis/rebill/internal/subscription/domain"
)

var (
	ErrUnsupportedInterval    = errors.New("unsupported_interval")
	ErrUnsupportedBillingTime = errors.New("unsupported_billing_time")
)

// Mode selects which period the calculator returns relative to the reference.
type Mode string

const (
	// ModeBilling returns the period a billing run invoices: the elapsed
	// period for pay-in-arrear plans, the period starting at the reference
	// for pay-in-advance plans.
	ModeBilling Mode = "billing"
	// ModeCurrentUsage returns the ongoing period containing the reference.
	ModeCurrentUsage Mode = "current_usage"
	// ModeTerminated returns period-start through end of the termination day.
	ModeTerminated Mode = "terminated"
)

// Boundaries is the result of a calculation. From/ChargesFrom are at
// beginning of day, To/ChargesTo at end of day, all in the reference's
// location.
type Boundaries struct {
	From        time.Time
	To          time.Time
	ChargesFrom time.Time
	ChargesTo   time.Time
}

// Input carries the subscription and plan attributes the calculation needs.
type Input struct {
	Interval       plandomain.Interval
	BillingTime    subdomain.BillingTime
	SubscriptionAt time.Time
	StartedAt      *time.Time
	TerminatedAt   *time.Time
	PayInAdvance   bool
	// BillChargesMonthly nests monthly charge sub-periods inside a yearly or
	// semiannual fee period.
	BillChargesMonthly bool
	// HasSuccessor marks a pending downgrade rotation. It disables the
	// terminated pay-in-arrear calendar-start rule, which only applies to
	// subscriptions that end for good.
	HasSuccessor bool
}

// Compute returns the period boundaries for the given mode. The reference
// instant must already be in the subscription's resolved timezone.
func Compute(in Input, reference time.Time, mode Mode) (Boundaries, error) {
	if !in.Interval.Valid() {
		return Boundaries{}, ErrUnsupportedInterval
	}
	if !in.BillingTime.Valid() {
		return Boundaries{}, ErrUnsupportedBillingTime
	}

	b, err := feePeriod(in, reference, mode)
	if err != nil {
		return Boundaries{}, err
	}

	b.ChargesFrom, b.ChargesTo = b.From, b.To
	if in.BillChargesMonthly && (in.Interval == plandomain.IntervalYearly || in.Interval == plandomain.IntervalSemiannual) {
		monthly := in
		monthly.Interval = plandomain.IntervalMonthly
		monthly.BillChargesMonthly = false
		sub, err := feePeriod(monthly, reference, mode)
		if err != nil {
			return Boundaries{}, err
		}
		b.ChargesFrom, b.ChargesTo = clampRange(sub.From, sub.To, b.From, b.To)
	}

	return b, nil
}

func feePeriod(in Input, reference time.Time, mode Mode) (Boundaries, error) {
	switch mode {
	case ModeCurrentUsage:
		start := periodStart(in, reference)
		return clamped(in, Boundaries{From: start, To: periodEnd(in, start)}), nil

	case ModeBilling:
		start := periodStart(in, reference)
		if in.PayInAdvance {
			return clamped(in, Boundaries{From: start, To: periodEnd(in, start)}), nil
		}
		// Pay in arrear bills the unit that just elapsed.
		prevStart := periodStart(in, start.AddDate(0, 0, -1))
		return clamped(in, Boundaries{From: prevStart, To: endOfDay(start.AddDate(0, 0, -1))}), nil

	case ModeTerminated:
		at := reference
		if in.TerminatedAt != nil {
			at = in.TerminatedAt.In(reference.Location())
		}
		start := periodStart(in, at)
		if !in.PayInAdvance && !in.HasSuccessor {
			// Arrear billing of a subscription that ends for good must
			// cover the whole elapsed unit, so the start reverts to the
			// calendar beginning even under anniversary alignment.
			start = calendarStart(in.Interval, at)
		}
		return clamped(in, Boundaries{From: start, To: endOfDay(at)}), nil
	}
	return Boundaries{}, errors.New("unsupported_mode")
}

// periodStart returns the beginning of the period containing ref.
func periodStart(in Input, ref time.Time) time.Time {
	if in.BillingTime == subdomain.BillingTimeCalendar {
		return calendarStart(in.Interval, ref)
	}
	return anniversaryStart(in.Interval, in.SubscriptionAt, ref)
}

// periodEnd returns the last instant of the period beginning at start.
func periodEnd(in Input, start time.Time) time.Time {
	var next time.Time
	if in.Interval == plandomain.IntervalWeekly {
		next = start.AddDate(0, 0, 7)
	} else if in.BillingTime == subdomain.BillingTimeCalendar {
		next = start.AddDate(0, in.Interval.StepMonths(), 0)
	} else {
		// The next anniversary is rebuilt from the anchor day, not from the
		// possibly clamped current start, so a day-31 anchor recovers the
		// 31st in longer months.
		next = addMonthsClamped(start, in.Interval.StepMonths(), in.SubscriptionAt.Day())
	}
	return endOfDay(next.AddDate(0, 0, -1))
}

func calendarStart(interval plandomain.Interval, ref time.Time) time.Time {
	y, m, _ := ref.Date()
	loc := ref.Location()
	switch interval {
	case plandomain.IntervalWeekly:
		// ISO weeks start Monday.
		offset := (int(ref.Weekday()) + 6) % 7
		return beginningOfDay(ref).AddDate(0, 0, -offset)
	case plandomain.IntervalMonthly:
		return time.Date(y, m, 1, 0, 0, 0, 0, loc)
	case plandomain.IntervalQuarterly:
		qm := time.Month((int(m)-1)/3*3 + 1)
		return time.Date(y, qm, 1, 0, 0, 0, 0, loc)
	case plandomain.IntervalSemiannual:
		hm := time.January
		if m >= time.July {
			hm = time.July
		}
		return time.Date(y, hm, 1, 0, 0, 0, 0, loc)
	default:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
	}
}

// anniversaryStart walks back month by month from the reference until it
// finds the latest anchor-aligned date not after it. Month arithmetic is done
// by explicit year/month/day reconstruction with the day clamped to the
// target month's length, so a day-31 or Feb-29 anchor lands on month-end
// rather than spilling into the next month.
func anniversaryStart(interval plandomain.Interval, anchor, ref time.Time) time.Time {
	refDay := beginningOfDay(ref)
	if interval == plandomain.IntervalWeekly {
		offset := (int(ref.Weekday()) - int(anchor.Weekday()) + 7) % 7
		return refDay.AddDate(0, 0, -offset)
	}

	step := interval.StepMonths()
	anchorMonth := int(anchor.Month())
	for i := 0; i <= 2*step; i++ {
		y, m := ref.Year(), int(ref.Month())-i
		for m < 1 {
			m += 12
			y--
		}
		if ((m-anchorMonth)%step+step)%step != 0 {
			continue
		}
		cand := clampedDate(y, time.Month(m), anchor.Day(), ref.Location())
		if !cand.After(refDay) {
			return cand
		}
	}
	return refDay
}

// clamped applies the first-period rule: a period never starts before the
// subscription did.
func clamped(in Input, b Boundaries) Boundaries {
	if in.StartedAt != nil {
		started := beginningOfDay(in.StartedAt.In(b.From.Location()))
		if b.From.Before(started) {
			b.From = started
		}
	}
	return b
}

func clampRange(from, to, lo, hi time.Time) (time.Time, time.Time) {
	if from.Before(lo) {
		from = lo
	}
	if to.After(hi) {
		to = hi
	}
	return from, to
}

func addMonthsClamped(t time.Time, months, day int) time.Time {
	y, m := t.Year(), int(t.Month())+months
	for m > 12 {
		m -= 12
		y++
	}
	return clampedDate(y, time.Month(m), day, t.Location())
}

func clampedDate(year int, month time.Month, day int, loc *time.Location) time.Time {
	if last := daysInMonth(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func beginningOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}
