package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	recdomain "github.com/smallbiznis/rebill/internal/billingrecord/domain"
	"github.com/smallbiznis/rebill/internal/billingtask"
	"github.com/smallbiznis/rebill/internal/clock"
	custdomain "github.com/smallbiznis/rebill/internal/customer/domain"
	"github.com/smallbiznis/rebill/internal/id"
	"github.com/smallbiznis/rebill/internal/invoicing"
	"github.com/smallbiznis/rebill/internal/notify"
	"github.com/smallbiznis/rebill/internal/payment"
	plandomain "github.com/smallbiznis/rebill/internal/plan/domain"
	"github.com/smallbiznis/rebill/internal/subscription/domain"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func eod(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC)
}

type harness struct {
	db    *gorm.DB
	clk   *clock.FakeClock
	queue *billingtask.MemoryQueue
	svc   domain.Service
}

func setup(t *testing.T) *harness {
	t.Helper()
	require.NoError(t, id.Init(1))

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(
		&custdomain.BillingEntity{},
		&custdomain.Customer{},
		&plandomain.Plan{},
		&domain.Subscription{},
		&recdomain.InvoiceSubscription{},
	))

	clk := clock.NewFakeClock(time.Date(2022, time.July, 15, 12, 0, 0, 0, time.UTC))
	queue := billingtask.NewMemoryQueue()
	log := zap.NewNop()
	svc := New(gdb, clk, log,
		invoicing.NewLogCollaborator(log),
		payment.NewLogCollaborator(log),
		notify.NewLogNotifier(log),
		queue,
	)

	h := &harness{db: gdb, clk: clk, queue: queue, svc: svc}
	h.seed(t)
	return h
}

func (h *harness) seed(t *testing.T) {
	t.Helper()
	require.NoError(t, h.db.Create(&custdomain.Customer{
		ID: "cust-1", OrgID: "org-1", Name: "customer",
	}).Error)

	plans := []plandomain.Plan{
		{ID: "plan-basic", OrgID: "org-1", Code: "basic", Interval: plandomain.IntervalMonthly, AmountCents: 1000, Currency: "USD"},
		{ID: "plan-lite", OrgID: "org-1", Code: "lite", Interval: plandomain.IntervalMonthly, AmountCents: 500, Currency: "USD"},
		{ID: "plan-micro", OrgID: "org-1", Code: "micro", Interval: plandomain.IntervalMonthly, AmountCents: 250, Currency: "USD"},
		{ID: "plan-pro", OrgID: "org-1", Code: "pro", Interval: plandomain.IntervalMonthly, AmountCents: 2000, Currency: "USD", PayInAdvance: true},
		{ID: "plan-basic-copy", OrgID: "org-1", Code: "basic-copy", Interval: plandomain.IntervalMonthly, AmountCents: 1000, Currency: "USD"},
	}
	for _, p := range plans {
		require.NoError(t, h.db.Create(&p).Error)
	}
}

func (h *harness) create(t *testing.T, planID string) *domain.Subscription {
	t.Helper()
	sub, err := h.svc.Create(context.Background(), domain.CreateSubscriptionInput{
		OrgID:       "org-1",
		CustomerID:  "cust-1",
		PlanID:      planID,
		BillingTime: domain.BillingTimeCalendar,
	})
	require.NoError(t, err)
	h.queue.DrainBilling()
	return sub
}

func TestCreateStartsImmediately(t *testing.T) {
	h := setup(t)

	sub, err := h.svc.Create(context.Background(), domain.CreateSubscriptionInput{
		OrgID:      "org-1",
		CustomerID: "cust-1",
		PlanID:     "plan-basic",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusActive, sub.Status)
	require.NotNil(t, sub.StartedAt)
	assert.Equal(t, domain.BillingTimeCalendar, sub.BillingTime)
	assert.NotEmpty(t, sub.ExternalID)
	assert.Empty(t, h.queue.DrainBilling(), "pay in arrear bills at the period end")
}

func TestCreatePayInAdvanceBillsFirstPeriod(t *testing.T) {
	h := setup(t)

	sub, err := h.svc.Create(context.Background(), domain.CreateSubscriptionInput{
		OrgID:      "org-1",
		CustomerID: "cust-1",
		PlanID:     "plan-pro",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusActive, sub.Status)
	tasks := h.queue.DrainBilling()
	require.Len(t, tasks, 1)
	assert.Equal(t, invoicing.ReasonStarting, tasks[0].Reason)
	assert.Equal(t, []string{sub.ID}, tasks[0].SubscriptionIDs)
}

func TestCreateFutureStartStaysPending(t *testing.T) {
	h := setup(t)

	sub, err := h.svc.Create(context.Background(), domain.CreateSubscriptionInput{
		OrgID:          "org-1",
		CustomerID:     "cust-1",
		PlanID:         "plan-basic",
		SubscriptionAt: date(2022, time.August, 1),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPending, sub.Status)
	assert.Nil(t, sub.StartedAt)
}

func TestCreateValidation(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	_, err := h.svc.Create(ctx, domain.CreateSubscriptionInput{OrgID: "org-1", CustomerID: "cust-1"})
	assert.ErrorIs(t, err, domain.ErrPlanRequired)

	_, err = h.svc.Create(ctx, domain.CreateSubscriptionInput{OrgID: "org-1", CustomerID: "cust-1", PlanID: "missing"})
	assert.ErrorIs(t, err, plandomain.ErrPlanNotFound)

	_, err = h.svc.Create(ctx, domain.CreateSubscriptionInput{OrgID: "org-1", CustomerID: "missing", PlanID: "plan-basic"})
	assert.ErrorIs(t, err, custdomain.ErrCustomerNotFound)

	_, err = h.svc.Create(ctx, domain.CreateSubscriptionInput{
		OrgID: "org-1", CustomerID: "cust-1", PlanID: "plan-basic",
		BillingTime: domain.BillingTime("lunar"),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidBillingTime)
}

func TestChangePlanDowngradeDefersRotation(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	sub := h.create(t, "plan-basic")

	res, err := h.svc.ChangePlan(ctx, domain.ChangePlanInput{
		OrgID: "org-1", SubscriptionID: sub.ID, PlanID: "plan-lite",
	})
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeApplied, res.Outcome)

	assert.Equal(t, domain.StatusActive, res.Subscription.Status, "current stays active until the boundary")
	require.NotNil(t, res.Successor)
	assert.Equal(t, domain.StatusPending, res.Successor.Status)
	assert.Equal(t, sub.ExternalID, res.Successor.ExternalID)
	assert.True(t, res.Successor.SubscriptionAt.Equal(sub.SubscriptionAt), "anchor survives the rotation")
	require.NotNil(t, res.Subscription.NextSubscriptionID)
	assert.Equal(t, res.Successor.ID, *res.Subscription.NextSubscriptionID)
	assert.Empty(t, h.queue.DrainBilling(), "nothing bills until the boundary")
}

func TestChangePlanUpgradeRotatesImmediately(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	sub := h.create(t, "plan-basic")

	res, err := h.svc.ChangePlan(ctx, domain.ChangePlanInput{
		OrgID: "org-1", SubscriptionID: sub.ID, PlanID: "plan-pro",
	})
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeApplied, res.Outcome)

	assert.Equal(t, domain.StatusTerminated, res.Subscription.Status)
	require.NotNil(t, res.Successor)
	assert.Equal(t, domain.StatusActive, res.Successor.Status)
	require.NotNil(t, res.Successor.StartedAt)

	tasks := h.queue.DrainBilling()
	require.Len(t, tasks, 2)
	assert.Equal(t, invoicing.ReasonTerminating, tasks[0].Reason)
	assert.Equal(t, []string{sub.ID}, tasks[0].SubscriptionIDs)
	assert.Equal(t, invoicing.ReasonStarting, tasks[1].Reason)
	assert.Equal(t, []string{res.Successor.ID}, tasks[1].SubscriptionIDs)
}

func TestChangePlanSamePlanIsNoOp(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	sub := h.create(t, "plan-basic")

	res, err := h.svc.ChangePlan(ctx, domain.ChangePlanInput{
		OrgID: "org-1", SubscriptionID: sub.ID, PlanID: "plan-basic",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeNoOp, res.Outcome)
	assert.Equal(t, domain.StatusActive, res.Subscription.Status)
	assert.Nil(t, res.Subscription.NextSubscriptionID)
	assert.Empty(t, h.queue.DrainBilling())
}

func TestChangePlanEqualAmountRotatesImmediately(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	sub := h.create(t, "plan-basic")

	// Equal yearly value is still a plan switch: it rotates like an
	// upgrade, only the same plan id is a no-op.
	res, err := h.svc.ChangePlan(ctx, domain.ChangePlanInput{
		OrgID: "org-1", SubscriptionID: sub.ID, PlanID: "plan-basic-copy",
	})
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeApplied, res.Outcome)

	assert.Equal(t, domain.StatusTerminated, res.Subscription.Status)
	require.NotNil(t, res.Successor)
	assert.Equal(t, domain.StatusActive, res.Successor.Status)
	assert.Equal(t, "plan-basic-copy", res.Successor.PlanID)

	tasks := h.queue.DrainBilling()
	require.Len(t, tasks, 1)
	assert.Equal(t, invoicing.ReasonTerminating, tasks[0].Reason)
}

func TestUpgradeTerminationRevertsToCalendarStart(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	h.clk.Set(time.Date(2022, time.January, 31, 12, 0, 0, 0, time.UTC))
	sub, err := h.svc.Create(ctx, domain.CreateSubscriptionInput{
		OrgID:       "org-1",
		CustomerID:  "cust-1",
		PlanID:      "plan-basic",
		BillingTime: domain.BillingTimeAnniversary,
	})
	require.NoError(t, err)
	h.queue.DrainBilling()
	h.clk.Set(time.Date(2022, time.July, 15, 12, 0, 0, 0, time.UTC))

	res, err := h.svc.ChangePlan(ctx, domain.ChangePlanInput{
		OrgID: "org-1", SubscriptionID: sub.ID, PlanID: "plan-pro",
	})
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeApplied, res.Outcome)

	// The upgrade ends the old subscription for good, so the arrear ledger
	// row covers the elapsed calendar unit, not the anniversary period.
	var rec recdomain.InvoiceSubscription
	require.NoError(t, h.db.First(&rec, "subscription_id = ? AND invoice_type = ?",
		sub.ID, recdomain.InvoiceTypeTermination).Error)
	require.NotNil(t, rec.FromDate)
	require.NotNil(t, rec.ToDate)
	assert.True(t, rec.FromDate.Equal(date(2022, time.July, 1)), "from: %s", rec.FromDate)
	assert.True(t, rec.ToDate.Equal(eod(2022, time.July, 15)), "to: %s", rec.ToDate)
}

func TestChangePlanSupersedesStalePendingSuccessor(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	sub := h.create(t, "plan-basic")

	first, err := h.svc.ChangePlan(ctx, domain.ChangePlanInput{
		OrgID: "org-1", SubscriptionID: sub.ID, PlanID: "plan-lite",
	})
	require.NoError(t, err)

	second, err := h.svc.ChangePlan(ctx, domain.ChangePlanInput{
		OrgID: "org-1", SubscriptionID: sub.ID, PlanID: "plan-micro",
	})
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeApplied, second.Outcome)

	var stale domain.Subscription
	require.NoError(t, h.db.First(&stale, "id = ?", first.Successor.ID).Error)
	assert.Equal(t, domain.StatusCanceled, stale.Status)
	assert.NotNil(t, stale.CanceledAt)

	require.NotNil(t, second.Subscription.NextSubscriptionID)
	assert.Equal(t, second.Successor.ID, *second.Subscription.NextSubscriptionID)
}

func TestTerminateBillsFinalPeriod(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	h.clk.Set(time.Date(2022, time.January, 15, 12, 0, 0, 0, time.UTC))
	sub := h.create(t, "plan-basic")
	h.clk.Set(time.Date(2022, time.July, 15, 12, 0, 0, 0, time.UTC))

	res, err := h.svc.Terminate(ctx, domain.TerminateInput{OrgID: "org-1", SubscriptionID: sub.ID})
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeApplied, res.Outcome)
	assert.Equal(t, domain.StatusTerminated, res.Subscription.Status)

	// Arrear termination covers the whole elapsed calendar unit.
	var rec recdomain.InvoiceSubscription
	require.NoError(t, h.db.First(&rec, "subscription_id = ? AND invoice_type = ?",
		sub.ID, recdomain.InvoiceTypeTermination).Error)
	require.NotNil(t, rec.FromDate)
	require.NotNil(t, rec.ToDate)
	assert.True(t, rec.FromDate.Equal(date(2022, time.July, 1)), "from: %s", rec.FromDate)
	assert.True(t, rec.ToDate.Equal(eod(2022, time.July, 15)), "to: %s", rec.ToDate)
}

func TestTerminateIsIdempotent(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	sub := h.create(t, "plan-basic")

	first, err := h.svc.Terminate(ctx, domain.TerminateInput{OrgID: "org-1", SubscriptionID: sub.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeApplied, first.Outcome)

	second, err := h.svc.Terminate(ctx, domain.TerminateInput{OrgID: "org-1", SubscriptionID: sub.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeNoOp, second.Outcome)
	assert.Equal(t, domain.StatusTerminated, second.Subscription.Status)
}

func TestTerminateReusesRecordedBoundaries(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	h.clk.Set(time.Date(2022, time.January, 15, 12, 0, 0, 0, time.UTC))
	sub := h.create(t, "plan-basic")

	// The June period was already invoiced. Terminating on July 1 recomputes
	// June as the as-if-not-terminated period and must reuse its dates.
	h.clk.Set(time.Date(2022, time.July, 1, 9, 0, 0, 0, time.UTC))
	from := date(2022, time.June, 1)
	to := eod(2022, time.June, 30)
	require.NoError(t, h.db.Create(&recdomain.InvoiceSubscription{
		ID:             "rec-june",
		OrgID:          "org-1",
		SubscriptionID: sub.ID,
		InvoiceType:    recdomain.InvoiceTypeRecurring,
		Timestamp:      date(2022, time.July, 1),
		FromDate:       &from,
		ToDate:         &to,
	}).Error)

	res, err := h.svc.Terminate(ctx, domain.TerminateInput{OrgID: "org-1", SubscriptionID: sub.ID})
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeApplied, res.Outcome)

	var rec recdomain.InvoiceSubscription
	require.NoError(t, h.db.First(&rec, "subscription_id = ? AND invoice_type = ?",
		sub.ID, recdomain.InvoiceTypeTermination).Error)
	assert.True(t, rec.FromDate.Equal(from), "reused from: %s", rec.FromDate)
	assert.True(t, rec.ToDate.Equal(to), "reused to: %s", rec.ToDate)
}

func TestTerminatePendingCancels(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	sub, err := h.svc.Create(ctx, domain.CreateSubscriptionInput{
		OrgID: "org-1", CustomerID: "cust-1", PlanID: "plan-basic",
		SubscriptionAt: date(2022, time.August, 1),
	})
	require.NoError(t, err)

	res, err := h.svc.Terminate(ctx, domain.TerminateInput{OrgID: "org-1", SubscriptionID: sub.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeApplied, res.Outcome)
	assert.Equal(t, domain.StatusCanceled, res.Subscription.Status)
}

func TestTerminateCancelsPendingSuccessor(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	sub := h.create(t, "plan-basic")

	down, err := h.svc.ChangePlan(ctx, domain.ChangePlanInput{
		OrgID: "org-1", SubscriptionID: sub.ID, PlanID: "plan-lite",
	})
	require.NoError(t, err)

	_, err = h.svc.Terminate(ctx, domain.TerminateInput{OrgID: "org-1", SubscriptionID: sub.ID})
	require.NoError(t, err)

	var succ domain.Subscription
	require.NoError(t, h.db.First(&succ, "id = ?", down.Successor.ID).Error)
	assert.Equal(t, domain.StatusCanceled, succ.Status)
}

func TestActivationGating(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	sub, err := h.svc.Create(ctx, domain.CreateSubscriptionInput{
		OrgID: "org-1", CustomerID: "cust-1", PlanID: "plan-pro",
		RequiresActivation: true,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusActivating, sub.Status)
	require.NotNil(t, sub.ActivationTimeoutAt)
	assert.True(t, sub.ActivationTimeoutAt.Equal(h.clk.Now().Add(DefaultActivationTimeout)))

	res, err := h.svc.ConfirmActivation(ctx, "org-1", sub.ID, "inv-1", h.clk.Now())
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeApplied, res.Outcome)
	assert.Equal(t, domain.StatusActive, res.Subscription.Status)
	assert.Nil(t, res.Subscription.ActivationTimeoutAt)

	// The window no longer applies once active.
	expired, err := h.svc.ExpireActivation(ctx, "org-1", sub.ID, "", h.clk.Now())
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeNoOp, expired.Outcome)
}

func TestExpireActivationTerminates(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	sub, err := h.svc.Create(ctx, domain.CreateSubscriptionInput{
		OrgID: "org-1", CustomerID: "cust-1", PlanID: "plan-pro",
		RequiresActivation: true,
		ActivationTimeout:  time.Hour,
	})
	require.NoError(t, err)

	h.clk.Advance(2 * time.Hour)
	res, err := h.svc.ExpireActivation(ctx, "org-1", sub.ID, "inv-1", h.clk.Now())
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeApplied, res.Outcome)
	assert.Equal(t, domain.StatusTerminated, res.Subscription.Status)
	assert.Nil(t, res.Subscription.StartedAt)
	assert.Nil(t, res.Subscription.ActivatingAt)
}

func TestConfirmActivationNoOpWhenActive(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	sub := h.create(t, "plan-basic")

	res, err := h.svc.ConfirmActivation(ctx, "org-1", sub.ID, "", h.clk.Now())
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeNoOp, res.Outcome)
	assert.Equal(t, domain.StatusActive, res.Subscription.Status)
}

func TestRotateFlipsDowngradePair(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	sub := h.create(t, "plan-basic")

	down, err := h.svc.ChangePlan(ctx, domain.ChangePlanInput{
		OrgID: "org-1", SubscriptionID: sub.ID, PlanID: "plan-lite",
	})
	require.NoError(t, err)
	h.queue.DrainBilling()

	boundary := date(2022, time.August, 1)
	res, err := h.svc.Rotate(ctx, "org-1", sub.ID, boundary)
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeApplied, res.Outcome)

	assert.Equal(t, domain.StatusTerminated, res.Subscription.Status)
	assert.Equal(t, domain.StatusActive, res.Successor.Status)
	assert.Equal(t, down.Successor.ID, res.Successor.ID)

	tasks := h.queue.DrainBilling()
	require.Len(t, tasks, 1)
	assert.Equal(t, invoicing.ReasonTerminating, tasks[0].Reason)
	assert.Equal(t, []string{sub.ID}, tasks[0].SubscriptionIDs)

	// Re-running the rotation is harmless.
	again, err := h.svc.Rotate(ctx, "org-1", sub.ID, boundary)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeNoOp, again.Outcome)
}

func TestCancelPendingOnly(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	pending, err := h.svc.Create(ctx, domain.CreateSubscriptionInput{
		OrgID: "org-1", CustomerID: "cust-1", PlanID: "plan-basic",
		SubscriptionAt: date(2022, time.September, 1),
	})
	require.NoError(t, err)

	res, err := h.svc.Cancel(ctx, "org-1", pending.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeApplied, res.Outcome)
	assert.Equal(t, domain.StatusCanceled, res.Subscription.Status)

	active := h.create(t, "plan-basic")
	res, err = h.svc.Cancel(ctx, "org-1", active.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeNoOp, res.Outcome)
}
