package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/rebill/internal/billingperiod"
	recdomain "github.com/smallbiznis/rebill/internal/billingrecord/domain"
	recrepo "github.com/smallbiznis/rebill/internal/billingrecord/repository"
	"github.com/smallbiznis/rebill/internal/billingtask"
	"github.com/smallbiznis/rebill/internal/clock"
	custrepo "github.com/smallbiznis/rebill/internal/customer/repository"
	"github.com/smallbiznis/rebill/internal/id"
	"github.com/smallbiznis/rebill/internal/invoicing"
	"github.com/smallbiznis/rebill/internal/notify"
	"github.com/smallbiznis/rebill/internal/orgcontext"
	"github.com/smallbiznis/rebill/internal/payment"
	plandomain "github.com/smallbiznis/rebill/internal/plan/domain"
	planrepo "github.com/smallbiznis/rebill/internal/plan/repository"
	"github.com/smallbiznis/rebill/internal/subscription/domain"
	subrepo "github.com/smallbiznis/rebill/internal/subscription/repository"
)

// DefaultActivationTimeout applies when activation gating is requested
// without an explicit window.
const DefaultActivationTimeout = 24 * time.Hour

type service struct {
	db       *gorm.DB
	clk      clock.Clock
	log      *zap.Logger
	invoicer invoicing.Collaborator
	payments payment.Collaborator
	notifier notify.Notifier
	queue    billingtask.Queue
}

func New(
	db *gorm.DB,
	clk clock.Clock,
	log *zap.Logger,
	invoicer invoicing.Collaborator,
	payments payment.Collaborator,
	notifier notify.Notifier,
	queue billingtask.Queue,
) domain.Service {
	return &service{
		db:       db,
		clk:      clk,
		log:      log.Named("subscription.service"),
		invoicer: invoicer,
		payments: payments,
		notifier: notifier,
		queue:    queue,
	}
}

// post collects side effects to run after the enclosing transaction commits,
// so a rollback never leaves a stray notification or task behind.
type post struct {
	fns []func(ctx context.Context) error
}

func (p *post) add(fn func(ctx context.Context) error) {
	p.fns = append(p.fns, fn)
}

func (p *post) notify(n notify.Notifier, event string, entity any) {
	p.add(func(ctx context.Context) error {
		n.Notify(ctx, event, entity)
		return nil
	})
}

func (p *post) run(ctx context.Context, log *zap.Logger) error {
	if org, ok := orgcontext.OrgID(ctx); ok {
		log = log.With(zap.String("org_id", org))
	}
	var first error
	for _, fn := range p.fns {
		if err := fn(ctx); err != nil {
			log.Error("post-commit side effect failed", zap.Error(err))
			if first == nil {
				first = err
			}
		}
	}
	return first
}

func (s *service) Create(ctx context.Context, in domain.CreateSubscriptionInput) (*domain.Subscription, error) {
	if in.PlanID == "" {
		return nil, domain.ErrPlanRequired
	}
	if in.CustomerID == "" {
		return nil, domain.ErrCustomerRequired
	}

	billingTime := in.BillingTime
	if billingTime == "" {
		billingTime = domain.BillingTimeCalendar
	}
	if !billingTime.Valid() {
		return nil, domain.ErrInvalidBillingTime
	}

	now := s.clk.Now()
	anchor := in.SubscriptionAt
	if anchor.IsZero() {
		anchor = now
	}

	timeout := in.ActivationTimeout
	if in.RequiresActivation && timeout <= 0 {
		timeout = DefaultActivationTimeout
	}

	var (
		sub *domain.Subscription
		fx  post
	)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		plan, err := planrepo.New(tx).FindByID(ctx, in.OrgID, in.PlanID)
		if err != nil {
			return err
		}
		if !plan.Interval.Valid() {
			return plandomain.ErrUnsupportedInterval
		}
		if _, err := custrepo.New(tx).FindByID(ctx, in.OrgID, in.CustomerID); err != nil {
			return err
		}

		sub = &domain.Subscription{
			ID:                       id.New(),
			OrgID:                    in.OrgID,
			ExternalID:               uuid.NewString(),
			CustomerID:               in.CustomerID,
			PlanID:                   plan.ID,
			Status:                   domain.StatusPending,
			BillingTime:              billingTime,
			SubscriptionAt:           anchor,
			ActivationRequired:       in.RequiresActivation,
			ActivationTimeoutSeconds: int64(timeout / time.Second),
		}

		if anchor.After(now) {
			return subrepo.New(tx).Create(ctx, sub)
		}

		if in.RequiresActivation {
			s.enterActivating(sub, plan, now, &fx)
		} else {
			s.enterActive(sub, plan, now, &fx)
		}
		return subrepo.New(tx).Create(ctx, sub)
	})
	if err != nil {
		return nil, err
	}
	if err := fx.run(ctx, s.log); err != nil {
		return sub, err
	}
	return sub, nil
}

func (s *service) Get(ctx context.Context, orgID, subID string) (*domain.Subscription, error) {
	return subrepo.New(s.db).FindByID(ctx, orgID, subID)
}

func (s *service) Activate(ctx context.Context, orgID, subID string, at time.Time) (domain.TransitionResult, error) {
	var (
		res domain.TransitionResult
		fx  post
	)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		repo := subrepo.New(tx)
		sub, err := repo.FindByIDForUpdate(ctx, orgID, subID)
		if err != nil {
			return err
		}
		if sub.Status != domain.StatusPending || sub.SubscriptionAt.After(at) {
			res = domain.NoOp(sub)
			return nil
		}

		plan, err := s.planFor(ctx, tx, sub)
		if err != nil {
			return err
		}

		if sub.ActivationRequired {
			s.enterActivating(sub, plan, at, &fx)
		} else {
			s.enterActive(sub, plan, at, &fx)
		}
		res = domain.Applied(sub)
		return repo.Update(ctx, sub)
	})
	if err != nil {
		return domain.TransitionResult{}, err
	}
	return res, fx.run(ctx, s.log)
}

func (s *service) ConfirmActivation(ctx context.Context, orgID, subID, invoiceID string, at time.Time) (domain.TransitionResult, error) {
	var (
		res domain.TransitionResult
		fx  post
	)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		repo := subrepo.New(tx)
		sub, err := repo.FindByIDForUpdate(ctx, orgID, subID)
		if err != nil {
			return err
		}
		if sub.Status != domain.StatusActivating {
			res = domain.NoOp(sub)
			return nil
		}

		started := at
		sub.Status = domain.StatusActive
		sub.StartedAt = &started
		sub.ActivationTimeoutAt = nil
		if err := repo.Update(ctx, sub); err != nil {
			return err
		}

		// An activating successor completes an upgrade: the predecessor
		// goes out of service at the same instant.
		if sub.PreviousSubscriptionID != nil {
			pred, err := repo.FindByIDForUpdate(ctx, orgID, *sub.PreviousSubscriptionID)
			if err == nil && pred.Status == domain.StatusActive {
				pred.Status = domain.StatusTerminated
				terminated := at
				pred.TerminatedAt = &terminated
				if err := repo.Update(ctx, pred); err != nil {
					return err
				}
				fx.notify(s.notifier, notify.EventSubscriptionTerminated, pred)
			}
		}

		if invoiceID != "" {
			fx.add(func(ctx context.Context) error {
				return s.invoicer.FinalizeInvoice(ctx, orgID, invoiceID)
			})
		}
		fx.notify(s.notifier, notify.EventSubscriptionStarted, sub)
		res = domain.Applied(sub)
		return nil
	})
	if err != nil {
		return domain.TransitionResult{}, err
	}
	return res, fx.run(ctx, s.log)
}

func (s *service) ExpireActivation(ctx context.Context, orgID, subID, invoiceID string, at time.Time) (domain.TransitionResult, error) {
	var (
		res domain.TransitionResult
		fx  post
	)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		repo := subrepo.New(tx)
		sub, err := repo.FindByIDForUpdate(ctx, orgID, subID)
		if err != nil {
			return err
		}
		if sub.Status != domain.StatusActivating {
			res = domain.NoOp(sub)
			return nil
		}

		terminated := at
		sub.Status = domain.StatusTerminated
		sub.TerminatedAt = &terminated
		sub.StartedAt = nil
		sub.ActivatingAt = nil
		sub.ActivationTimeoutAt = nil
		if err := repo.Update(ctx, sub); err != nil {
			return err
		}

		if invoiceID != "" {
			fx.add(func(ctx context.Context) error {
				return s.invoicer.VoidInvoice(ctx, orgID, invoiceID)
			})
			fx.add(func(ctx context.Context) error {
				return s.payments.CancelPayment(ctx, orgID, invoiceID)
			})
		}
		fx.notify(s.notifier, notify.EventSubscriptionActivationFailed, sub)
		res = domain.Applied(sub)
		return nil
	})
	if err != nil {
		return domain.TransitionResult{}, err
	}
	return res, fx.run(ctx, s.log)
}

func (s *service) ChangePlan(ctx context.Context, in domain.ChangePlanInput) (domain.TransitionResult, error) {
	now := s.clk.Now()
	var (
		res domain.TransitionResult
		fx  post
	)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		repo := subrepo.New(tx)
		sub, err := repo.FindByIDForUpdate(ctx, in.OrgID, in.SubscriptionID)
		if err != nil {
			return err
		}
		if sub.Status != domain.StatusActive {
			res = domain.NoOp(sub)
			return nil
		}

		newPlan, err := planrepo.New(tx).FindByID(ctx, in.OrgID, in.PlanID)
		if err != nil {
			return err
		}
		if !newPlan.Interval.Valid() {
			return plandomain.ErrUnsupportedInterval
		}
		oldPlan, err := s.planFor(ctx, tx, sub)
		if err != nil {
			return err
		}

		// Resubmitting the current plan is a no-op, not a rotation.
		if newPlan.ID == oldPlan.ID {
			res = domain.NoOp(sub)
			return nil
		}

		// A second change supersedes any still-pending successor.
		if sub.NextSubscriptionID != nil {
			stale, err := repo.FindByIDForUpdate(ctx, in.OrgID, *sub.NextSubscriptionID)
			if err != nil {
				return err
			}
			if stale.Status == domain.StatusPending {
				canceled := now
				stale.Status = domain.StatusCanceled
				stale.CanceledAt = &canceled
				if err := repo.Update(ctx, stale); err != nil {
					return err
				}
				fx.notify(s.notifier, notify.EventSubscriptionCanceled, stale)
			}
			sub.NextSubscriptionID = nil
		}

		// The successor shares the external identity and the anchor so the
		// customer keeps their billing day across the rotation.
		succ := &domain.Subscription{
			ID:                     id.New(),
			OrgID:                  sub.OrgID,
			ExternalID:             sub.ExternalID,
			CustomerID:             sub.CustomerID,
			PlanID:                 newPlan.ID,
			BillingTime:            sub.BillingTime,
			SubscriptionAt:         sub.SubscriptionAt,
			PreviousSubscriptionID: &sub.ID,
		}

		if newPlan.YearlyAmount().GreaterThanOrEqual(oldPlan.YearlyAmount()) {
			// Upgrade (new value >= old): rotate immediately, regardless of
			// period boundary.
			started := now
			succ.Status = domain.StatusActive
			succ.StartedAt = &started
			if err := repo.Create(ctx, succ); err != nil {
				return err
			}

			terminated := now
			sub.Status = domain.StatusTerminated
			sub.TerminatedAt = &terminated

			if oldPlan.PayInAdvance {
				s.queueCreditNote(ctx, sub, oldPlan, now, &fx)
			}
			// The ledger row is written before the successor link: the chain
			// link marks a queued downgrade, and an upgrade terminates the
			// old subscription for good.
			if err := s.recordTermination(ctx, tx, sub, oldPlan, now); err != nil {
				return err
			}

			sub.NextSubscriptionID = &succ.ID
			if err := repo.Update(ctx, sub); err != nil {
				return err
			}
			s.queueBilling(sub.OrgID, sub.CustomerID, []string{sub.ID}, now, invoicing.ReasonTerminating, &fx)
			if newPlan.PayInAdvance {
				s.queueBilling(succ.OrgID, succ.CustomerID, []string{succ.ID}, now, invoicing.ReasonStarting, &fx)
			}
			fx.notify(s.notifier, notify.EventSubscriptionTerminated, sub)
			fx.notify(s.notifier, notify.EventSubscriptionStarted, succ)
			res = domain.TransitionResult{Outcome: domain.OutcomeApplied, Subscription: sub, Successor: succ}
			return nil
		}

		// Downgrade: queue the successor and wait for the next boundary.
		succ.Status = domain.StatusPending
		if err := repo.Create(ctx, succ); err != nil {
			return err
		}
		sub.NextSubscriptionID = &succ.ID
		if err := repo.Update(ctx, sub); err != nil {
			return err
		}
		res = domain.TransitionResult{Outcome: domain.OutcomeApplied, Subscription: sub, Successor: succ}
		return nil
	})
	if err != nil {
		return domain.TransitionResult{}, err
	}
	return res, fx.run(ctx, s.log)
}

func (s *service) Terminate(ctx context.Context, in domain.TerminateInput) (domain.TransitionResult, error) {
	now := s.clk.Now()
	var (
		res domain.TransitionResult
		fx  post
	)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		repo := subrepo.New(tx)
		sub, err := repo.FindByIDForUpdate(ctx, in.OrgID, in.SubscriptionID)
		if err != nil {
			return err
		}

		switch sub.Status {
		case domain.StatusTerminated, domain.StatusCanceled:
			res = domain.NoOp(sub)
			return nil
		case domain.StatusPending:
			// A subscription that never started has nothing to bill.
			canceled := now
			sub.Status = domain.StatusCanceled
			sub.CanceledAt = &canceled
			if err := repo.Update(ctx, sub); err != nil {
				return err
			}
			fx.notify(s.notifier, notify.EventSubscriptionCanceled, sub)
			res = domain.Applied(sub)
			return nil
		}

		plan, err := s.planFor(ctx, tx, sub)
		if err != nil {
			return err
		}

		terminated := now
		sub.Status = domain.StatusTerminated
		sub.TerminatedAt = &terminated

		// A queued downgrade dies with the subscription.
		if sub.NextSubscriptionID != nil {
			succ, err := repo.FindByIDForUpdate(ctx, in.OrgID, *sub.NextSubscriptionID)
			if err != nil {
				return err
			}
			if succ.Status == domain.StatusPending {
				canceled := now
				succ.Status = domain.StatusCanceled
				succ.CanceledAt = &canceled
				if err := repo.Update(ctx, succ); err != nil {
					return err
				}
				fx.notify(s.notifier, notify.EventSubscriptionCanceled, succ)
			}
			sub.NextSubscriptionID = nil
		}

		if err := repo.Update(ctx, sub); err != nil {
			return err
		}

		if plan.PayInAdvance {
			s.queueCreditNote(ctx, sub, plan, now, &fx)
		}
		if err := s.recordTermination(ctx, tx, sub, plan, now); err != nil {
			return err
		}

		if in.Async {
			s.queueBilling(sub.OrgID, sub.CustomerID, []string{sub.ID}, now, invoicing.ReasonTerminating, &fx)
		} else {
			req := invoicing.BillRequest{
				OrgID:           sub.OrgID,
				CustomerID:      sub.CustomerID,
				SubscriptionIDs: []string{sub.ID},
				Timestamp:       now,
				Reason:          invoicing.ReasonTerminating,
			}
			fx.add(func(ctx context.Context) error {
				return s.invoicer.Bill(ctx, req)
			})
		}
		fx.notify(s.notifier, notify.EventSubscriptionTerminated, sub)
		res = domain.Applied(sub)
		return nil
	})
	if err != nil {
		return domain.TransitionResult{}, err
	}
	return res, fx.run(ctx, s.log)
}

func (s *service) Rotate(ctx context.Context, orgID, subID string, at time.Time) (domain.TransitionResult, error) {
	var (
		res domain.TransitionResult
		fx  post
	)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		repo := subrepo.New(tx)
		sub, err := repo.FindByIDForUpdate(ctx, orgID, subID)
		if err != nil {
			return err
		}
		if sub.Status != domain.StatusActive || sub.NextSubscriptionID == nil {
			res = domain.NoOp(sub)
			return nil
		}

		succ, err := repo.FindByIDForUpdate(ctx, orgID, *sub.NextSubscriptionID)
		if err != nil {
			return err
		}
		if succ.Status != domain.StatusPending {
			res = domain.NoOp(sub)
			return nil
		}

		oldPlan, err := s.planFor(ctx, tx, sub)
		if err != nil {
			return err
		}
		newPlan, err := s.planFor(ctx, tx, succ)
		if err != nil {
			return err
		}

		terminated := at
		sub.Status = domain.StatusTerminated
		sub.TerminatedAt = &terminated
		if err := repo.Update(ctx, sub); err != nil {
			return err
		}

		started := at
		succ.Status = domain.StatusActive
		succ.StartedAt = &started
		if err := repo.Update(ctx, succ); err != nil {
			return err
		}

		if err := s.recordTermination(ctx, tx, sub, oldPlan, at); err != nil {
			return err
		}
		s.queueBilling(sub.OrgID, sub.CustomerID, []string{sub.ID}, at, invoicing.ReasonTerminating, &fx)
		if newPlan.PayInAdvance {
			s.queueBilling(succ.OrgID, succ.CustomerID, []string{succ.ID}, at, invoicing.ReasonStarting, &fx)
		}
		fx.notify(s.notifier, notify.EventSubscriptionTerminated, sub)
		fx.notify(s.notifier, notify.EventSubscriptionStarted, succ)
		res = domain.TransitionResult{Outcome: domain.OutcomeApplied, Subscription: sub, Successor: succ}
		return nil
	})
	if err != nil {
		return domain.TransitionResult{}, err
	}
	return res, fx.run(ctx, s.log)
}

func (s *service) Cancel(ctx context.Context, orgID, subID string) (domain.TransitionResult, error) {
	now := s.clk.Now()
	var (
		res domain.TransitionResult
		fx  post
	)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		repo := subrepo.New(tx)
		sub, err := repo.FindByIDForUpdate(ctx, orgID, subID)
		if err != nil {
			return err
		}
		if sub.Status != domain.StatusPending {
			res = domain.NoOp(sub)
			return nil
		}
		canceled := now
		sub.Status = domain.StatusCanceled
		sub.CanceledAt = &canceled
		if err := repo.Update(ctx, sub); err != nil {
			return err
		}
		fx.notify(s.notifier, notify.EventSubscriptionCanceled, sub)
		res = domain.Applied(sub)
		return nil
	})
	if err != nil {
		return domain.TransitionResult{}, err
	}
	return res, fx.run(ctx, s.log)
}

func (s *service) enterActive(sub *domain.Subscription, plan *plandomain.Plan, at time.Time, fx *post) {
	started := at
	sub.Status = domain.StatusActive
	sub.StartedAt = &started
	fx.notify(s.notifier, notify.EventSubscriptionStarted, sub)
	if plan.PayInAdvance {
		s.queueBilling(sub.OrgID, sub.CustomerID, []string{sub.ID}, at, invoicing.ReasonStarting, fx)
	}
}

func (s *service) enterActivating(sub *domain.Subscription, plan *plandomain.Plan, at time.Time, fx *post) {
	activating := at
	deadline := at.Add(time.Duration(sub.ActivationTimeoutSeconds) * time.Second)
	sub.Status = domain.StatusActivating
	sub.ActivatingAt = &activating
	sub.ActivationTimeoutAt = &deadline

	orgID, subID := sub.OrgID, sub.ID
	fx.add(func(ctx context.Context) error {
		return s.invoicer.RequestFirstInvoice(ctx, orgID, subID)
	})
	if plan.PayInAdvance && plan.BillFixedChargesMonthly {
		s.queueBilling(sub.OrgID, sub.CustomerID, []string{sub.ID}, at, invoicing.ReasonFixedCharge, fx)
	}
	fx.notify(s.notifier, notify.EventSubscriptionActivating, sub)
}

func (s *service) queueBilling(orgID, customerID string, subIDs []string, at time.Time, reason invoicing.Reason, fx *post) {
	task := billingtask.BillingTask{
		OrgID:           orgID,
		CustomerID:      customerID,
		SubscriptionIDs: subIDs,
		Timestamp:       at,
		Reason:          reason,
	}
	fx.add(func(ctx context.Context) error {
		return s.queue.EnqueueBilling(ctx, task)
	})
}

// queueCreditNote prorates the unconsumed remainder of a prepaid period and
// queues the refund request.
func (s *service) queueCreditNote(ctx context.Context, sub *domain.Subscription, plan *plandomain.Plan, at time.Time, fx *post) {
	_ = ctx
	local := at.In(s.locationFor(sub))

	in := calcInput(sub, plan)
	in.TerminatedAt = nil
	bounds, err := billingperiod.Compute(in, local, billingperiod.ModeCurrentUsage)
	if err != nil {
		s.log.Error("credit note period calculation failed",
			zap.String("subscription_id", sub.ID), zap.Error(err))
		return
	}

	total := dayCount(bounds.From, bounds.To)
	remaining := dayCount(local.AddDate(0, 0, 1), bounds.To)
	if total <= 0 || remaining <= 0 {
		return
	}

	amount := decimal.NewFromInt(plan.AmountCents).
		Mul(decimal.NewFromInt(int64(remaining))).
		Div(decimal.NewFromInt(int64(total))).
		Round(0)

	req := invoicing.CreditNoteRequest{
		OrgID:          sub.OrgID,
		SubscriptionID: sub.ID,
		AmountCents:    amount,
		Currency:       plan.Currency,
		FromDate:       local.AddDate(0, 0, 1),
		ToDate:         bounds.To,
	}
	fx.add(func(ctx context.Context) error {
		return s.invoicer.IssueCreditNote(ctx, req)
	})
}

// recordTermination writes the termination row on the invoice ledger with
// the final period boundaries. When the boundaries recomputed as if the
// subscription had not terminated match an already recorded recurring row
// within a day, the recorded dates are reused instead of re-splitting an
// already-issued period.
func (s *service) recordTermination(ctx context.Context, tx *gorm.DB, sub *domain.Subscription, plan *plandomain.Plan, at time.Time) error {
	local := at.In(s.locationFor(sub))

	in := calcInput(sub, plan)
	bounds, err := billingperiod.Compute(in, local, billingperiod.ModeTerminated)
	if err != nil {
		return err
	}

	asIf := in
	asIf.TerminatedAt = nil
	recomputed, err := billingperiod.Compute(asIf, local, billingperiod.ModeBilling)
	if err != nil {
		return err
	}

	latest, err := recrepo.New(tx).FindLatestRecurring(ctx, sub.OrgID, sub.ID)
	if err != nil {
		return err
	}
	if latest != nil && latest.FromDate != nil && latest.ToDate != nil &&
		withinOneDay(*latest.FromDate, recomputed.From) &&
		withinOneDay(*latest.ToDate, recomputed.To) {
		bounds.From, bounds.To = *latest.FromDate, *latest.ToDate
		bounds.ChargesFrom, bounds.ChargesTo = bounds.From, bounds.To
		if latest.ChargesFromDate != nil && latest.ChargesToDate != nil {
			bounds.ChargesFrom, bounds.ChargesTo = *latest.ChargesFromDate, *latest.ChargesToDate
		}
	}

	rec := &recdomain.InvoiceSubscription{
		ID:              id.New(),
		OrgID:           sub.OrgID,
		SubscriptionID:  sub.ID,
		InvoiceType:     recdomain.InvoiceTypeTermination,
		Timestamp:       at,
		FromDate:        &bounds.From,
		ToDate:          &bounds.To,
		ChargesFromDate: &bounds.ChargesFrom,
		ChargesToDate:   &bounds.ChargesTo,
	}
	return recrepo.New(tx).Create(ctx, rec)
}

func (s *service) planFor(ctx context.Context, tx *gorm.DB, sub *domain.Subscription) (*plandomain.Plan, error) {
	if sub.Plan != nil {
		return sub.Plan, nil
	}
	return planrepo.New(tx).FindByID(ctx, sub.OrgID, sub.PlanID)
}

func (s *service) locationFor(sub *domain.Subscription) *time.Location {
	if sub.Customer != nil {
		return sub.Customer.Location()
	}
	return time.UTC
}

func calcInput(sub *domain.Subscription, plan *plandomain.Plan) billingperiod.Input {
	return billingperiod.Input{
		Interval:           plan.Interval,
		BillingTime:        sub.BillingTime,
		SubscriptionAt:     sub.SubscriptionAt,
		StartedAt:          sub.StartedAt,
		TerminatedAt:       sub.TerminatedAt,
		PayInAdvance:       plan.PayInAdvance,
		BillChargesMonthly: plan.BillChargesMonthly,
		HasSuccessor:       sub.NextSubscriptionID != nil,
	}
}

// dayCount counts calendar days from the date of from through the date of
// to, inclusive. Dates are normalized to UTC so DST shifts cannot skew the
// count.
func dayCount(from, to time.Time) int {
	f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	t := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(t.Sub(f).Hours()/24) + 1
}

func withinOneDay(a, b time.Time) bool {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d <= 24*time.Hour
}
