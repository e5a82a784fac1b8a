package billingperiod

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	plandomain "github.com/smallbiznis/rebill/internal/plan/domain"
	subdomain "github.com/smallbiznis/rebill/internal/subscription/domain"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func eod(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC)
}

func ptr(t time.Time) *time.Time { return &t }

func TestComputeCurrentUsage(t *testing.T) {
	cases := []struct {
		name string
		in   Input
		ref  time.Time
		from time.Time
		to   time.Time
	}{
		{
			name: "monthly anniversary day 31",
			in: Input{
				Interval:       plandomain.IntervalMonthly,
				BillingTime:    subdomain.BillingTimeAnniversary,
				SubscriptionAt: date(2021, time.March, 31),
			},
			ref:  date(2022, time.April, 15),
			from: date(2022, time.March, 31),
			to:   eod(2022, time.April, 29),
		},
		{
			name: "monthly anniversary day 31 clamps to february",
			in: Input{
				Interval:       plandomain.IntervalMonthly,
				BillingTime:    subdomain.BillingTimeAnniversary,
				SubscriptionAt: date(2021, time.March, 31),
			},
			ref:  date(2022, time.February, 28),
			from: date(2022, time.February, 28),
			to:   eod(2022, time.March, 30),
		},
		{
			name: "monthly anniversary feb 29 anchor in non leap year",
			in: Input{
				Interval:       plandomain.IntervalMonthly,
				BillingTime:    subdomain.BillingTimeAnniversary,
				SubscriptionAt: date(2020, time.February, 29),
			},
			ref:  date(2021, time.February, 28),
			from: date(2021, time.February, 28),
			to:   eod(2021, time.March, 28),
		},
		{
			name: "yearly anniversary feb 29 anchor",
			in: Input{
				Interval:       plandomain.IntervalYearly,
				BillingTime:    subdomain.BillingTimeAnniversary,
				SubscriptionAt: date(2020, time.February, 29),
			},
			ref:  date(2021, time.March, 15),
			from: date(2021, time.February, 28),
			to:   eod(2022, time.February, 27),
		},
		{
			name: "weekly calendar starts monday",
			in: Input{
				Interval:       plandomain.IntervalWeekly,
				BillingTime:    subdomain.BillingTimeCalendar,
				SubscriptionAt: date(2022, time.January, 5),
			},
			ref:  date(2022, time.June, 22),
			from: date(2022, time.June, 20),
			to:   eod(2022, time.June, 26),
		},
		{
			name: "weekly anniversary follows anchor weekday",
			in: Input{
				Interval:       plandomain.IntervalWeekly,
				BillingTime:    subdomain.BillingTimeAnniversary,
				SubscriptionAt: date(2022, time.June, 2), // a Thursday
			},
			ref:  date(2022, time.June, 22), // a Wednesday
			from: date(2022, time.June, 16),
			to:   eod(2022, time.June, 22),
		},
		{
			name: "quarterly calendar",
			in: Input{
				Interval:       plandomain.IntervalQuarterly,
				BillingTime:    subdomain.BillingTimeCalendar,
				SubscriptionAt: date(2021, time.January, 10),
			},
			ref:  date(2022, time.May, 10),
			from: date(2022, time.April, 1),
			to:   eod(2022, time.June, 30),
		},
		{
			name: "quarterly anniversary keeps anchor month phase",
			in: Input{
				Interval:       plandomain.IntervalQuarterly,
				BillingTime:    subdomain.BillingTimeAnniversary,
				SubscriptionAt: date(2021, time.February, 15),
			},
			ref:  date(2022, time.April, 10),
			from: date(2022, time.February, 15),
			to:   eod(2022, time.May, 14),
		},
		{
			name: "semiannual calendar second half",
			in: Input{
				Interval:       plandomain.IntervalSemiannual,
				BillingTime:    subdomain.BillingTimeCalendar,
				SubscriptionAt: date(2021, time.January, 10),
			},
			ref:  date(2022, time.September, 1),
			from: date(2022, time.July, 1),
			to:   eod(2022, time.December, 31),
		},
		{
			name: "yearly calendar",
			in: Input{
				Interval:       plandomain.IntervalYearly,
				BillingTime:    subdomain.BillingTimeCalendar,
				SubscriptionAt: date(2021, time.May, 10),
			},
			ref:  date(2022, time.September, 1),
			from: date(2022, time.January, 1),
			to:   eod(2022, time.December, 31),
		},
		{
			name: "first period clamps to started at",
			in: Input{
				Interval:       plandomain.IntervalMonthly,
				BillingTime:    subdomain.BillingTimeCalendar,
				SubscriptionAt: date(2022, time.June, 15),
				StartedAt:      ptr(date(2022, time.June, 15)),
			},
			ref:  date(2022, time.June, 20),
			from: date(2022, time.June, 15),
			to:   eod(2022, time.June, 30),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Compute(tc.in, tc.ref, ModeCurrentUsage)
			require.NoError(t, err)
			assert.True(t, got.From.Equal(tc.from), "from: got %s want %s", got.From, tc.from)
			assert.True(t, got.To.Equal(tc.to), "to: got %s want %s", got.To, tc.to)
			assert.True(t, got.ChargesFrom.Equal(tc.from))
			assert.True(t, got.ChargesTo.Equal(tc.to))
		})
	}
}

func TestComputeBilling(t *testing.T) {
	t.Run("pay in arrear bills the elapsed month", func(t *testing.T) {
		got, err := Compute(Input{
			Interval:       plandomain.IntervalMonthly,
			BillingTime:    subdomain.BillingTimeCalendar,
			SubscriptionAt: date(2022, time.January, 1),
		}, date(2022, time.July, 1), ModeBilling)
		require.NoError(t, err)
		assert.True(t, got.From.Equal(date(2022, time.June, 1)))
		assert.True(t, got.To.Equal(eod(2022, time.June, 30)))
	})

	t.Run("pay in arrear first invoice clamps to started at", func(t *testing.T) {
		got, err := Compute(Input{
			Interval:       plandomain.IntervalMonthly,
			BillingTime:    subdomain.BillingTimeCalendar,
			SubscriptionAt: date(2022, time.June, 15),
			StartedAt:      ptr(date(2022, time.June, 15)),
		}, date(2022, time.July, 1), ModeBilling)
		require.NoError(t, err)
		assert.True(t, got.From.Equal(date(2022, time.June, 15)))
		assert.True(t, got.To.Equal(eod(2022, time.June, 30)))
	})

	t.Run("pay in advance bills the period ahead", func(t *testing.T) {
		got, err := Compute(Input{
			Interval:       plandomain.IntervalMonthly,
			BillingTime:    subdomain.BillingTimeAnniversary,
			SubscriptionAt: date(2022, time.January, 15),
			PayInAdvance:   true,
		}, date(2022, time.July, 15), ModeBilling)
		require.NoError(t, err)
		assert.True(t, got.From.Equal(date(2022, time.July, 15)))
		assert.True(t, got.To.Equal(eod(2022, time.August, 14)))
	})
}

func TestComputeTerminated(t *testing.T) {
	anchor := date(2021, time.March, 31)

	t.Run("arrear without successor reverts to calendar start", func(t *testing.T) {
		got, err := Compute(Input{
			Interval:       plandomain.IntervalMonthly,
			BillingTime:    subdomain.BillingTimeAnniversary,
			SubscriptionAt: anchor,
			TerminatedAt:   ptr(date(2022, time.April, 10)),
		}, date(2022, time.April, 10), ModeTerminated)
		require.NoError(t, err)
		assert.True(t, got.From.Equal(date(2022, time.April, 1)))
		assert.True(t, got.To.Equal(eod(2022, time.April, 10)))
	})

	t.Run("arrear with pending rotation keeps anniversary start", func(t *testing.T) {
		got, err := Compute(Input{
			Interval:       plandomain.IntervalMonthly,
			BillingTime:    subdomain.BillingTimeAnniversary,
			SubscriptionAt: anchor,
			TerminatedAt:   ptr(date(2022, time.April, 10)),
			HasSuccessor:   true,
		}, date(2022, time.April, 10), ModeTerminated)
		require.NoError(t, err)
		assert.True(t, got.From.Equal(date(2022, time.March, 31)))
		assert.True(t, got.To.Equal(eod(2022, time.April, 10)))
	})

	t.Run("pay in advance keeps the started period", func(t *testing.T) {
		got, err := Compute(Input{
			Interval:       plandomain.IntervalMonthly,
			BillingTime:    subdomain.BillingTimeAnniversary,
			SubscriptionAt: date(2022, time.January, 15),
			PayInAdvance:   true,
			TerminatedAt:   ptr(date(2022, time.July, 20)),
		}, date(2022, time.July, 20), ModeTerminated)
		require.NoError(t, err)
		assert.True(t, got.From.Equal(date(2022, time.July, 15)))
		assert.True(t, got.To.Equal(eod(2022, time.July, 20)))
	})
}

func TestComputeMonthlyChargesNested(t *testing.T) {
	got, err := Compute(Input{
		Interval:           plandomain.IntervalYearly,
		BillingTime:        subdomain.BillingTimeAnniversary,
		SubscriptionAt:     date(2021, time.March, 31),
		BillChargesMonthly: true,
	}, date(2022, time.April, 15), ModeCurrentUsage)
	require.NoError(t, err)

	assert.True(t, got.From.Equal(date(2022, time.March, 31)))
	assert.True(t, got.To.Equal(eod(2023, time.March, 30)))
	assert.True(t, got.ChargesFrom.Equal(date(2022, time.March, 31)))
	assert.True(t, got.ChargesTo.Equal(eod(2022, time.April, 29)))
}

func TestComputeConfigurationErrors(t *testing.T) {
	_, err := Compute(Input{
		Interval:    plandomain.Interval("daily"),
		BillingTime: subdomain.BillingTimeCalendar,
	}, date(2022, time.June, 1), ModeBilling)
	assert.ErrorIs(t, err, ErrUnsupportedInterval)

	_, err = Compute(Input{
		Interval:    plandomain.IntervalMonthly,
		BillingTime: subdomain.BillingTime("lunar"),
	}, date(2022, time.June, 1), ModeBilling)
	assert.ErrorIs(t, err, ErrUnsupportedBillingTime)
}

func TestComputeKeepsReferenceLocation(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	got, err := Compute(Input{
		Interval:       plandomain.IntervalMonthly,
		BillingTime:    subdomain.BillingTimeCalendar,
		SubscriptionAt: date(2022, time.January, 1),
	}, time.Date(2022, time.July, 10, 3, 0, 0, 0, loc), ModeCurrentUsage)
	require.NoError(t, err)

	assert.True(t, got.From.Equal(time.Date(2022, time.July, 1, 0, 0, 0, 0, loc)))
	assert.Equal(t, loc, got.From.Location())
}

// Consecutive periods must be adjacent with no gap and no overlap, even
// across the short-month clamp.
func TestPeriodsAreAdjacent(t *testing.T) {
	in := Input{
		Interval:       plandomain.IntervalMonthly,
		BillingTime:    subdomain.BillingTimeAnniversary,
		SubscriptionAt: date(2021, time.January, 31),
	}

	prev, err := Compute(in, date(2021, time.January, 31), ModeCurrentUsage)
	require.NoError(t, err)

	for i := 0; i < 36; i++ {
		next, err := Compute(in, prev.To.AddDate(0, 0, 1), ModeCurrentUsage)
		require.NoError(t, err)
		assert.Equal(t, time.Nanosecond, next.From.Sub(prev.To),
			"period %d: %s should immediately follow %s", i, next.From, prev.To)
		prev = next
	}
}
