// Package scheduler runs the daily billing sweeps: pending activation,
// billing dispatch, fixed-charge events, ending-at termination and
// activation timeouts.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/rebill/internal/billingtask"
	"github.com/smallbiznis/rebill/internal/clock"
	"github.com/smallbiznis/rebill/internal/observability/metrics"
	"github.com/smallbiznis/rebill/internal/orgcontext"
	scheduledomain "github.com/smallbiznis/rebill/internal/schedule/domain"
	subdomain "github.com/smallbiznis/rebill/internal/subscription/domain"
)

var ErrInvalidConfig = errors.New("scheduler: invalid configuration")

type Params struct {
	fx.In

	Log             *zap.Logger
	Clock           clock.Clock
	Selector        scheduledomain.Service
	SubscriptionSvc subdomain.Service
	Subscriptions   subdomain.Repository
	Queue           billingtask.Queue
	Config          Config `optional:"true"`
}

type Scheduler struct {
	log             *zap.Logger
	cfg             Config
	clock           clock.Clock
	selector        scheduledomain.Service
	subscriptionSvc subdomain.Service
	subscriptions   subdomain.Repository
	queue           billingtask.Queue
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.Selector == nil || p.SubscriptionSvc == nil || p.Subscriptions == nil || p.Queue == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:             p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:             p.Config.withDefaults(),
		clock:           p.Clock,
		selector:        p.Selector,
		subscriptionSvc: p.SubscriptionSvc,
		subscriptions:   p.Subscriptions,
		queue:           p.Queue,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name, s.cfg.BatchSize)
	if owner {
		s.logJobStart(run)
	}

	err := fn(ctx)
	metrics.ObserveJob(name, time.Since(start).Seconds(), err)
	if owner {
		if err != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(run)
	}
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.log.Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce executes every enabled sweep once, in dependency order:
// activations first so new starters are visible to the billing dispatch,
// terminations and timeouts last.
func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name    string
		Enabled bool
		Run     func(context.Context) error
	}{
		{"activate_pending", s.isJobEnabled("activate_pending"), func(ctx context.Context) error {
			return s.runJob(ctx, "activate_pending", 30*time.Second, s.ActivatePendingJob)
		}},
		{"bill_subscriptions", s.isJobEnabled("bill_subscriptions"), func(ctx context.Context) error {
			return s.runJob(ctx, "bill_subscriptions", 5*time.Minute, s.BillSubscriptionsJob)
		}},
		{"fixed_charge_events", s.isJobEnabled("fixed_charge_events"), func(ctx context.Context) error {
			return s.runJob(ctx, "fixed_charge_events", time.Minute, s.FixedChargeEventsJob)
		}},
		{"terminate_ending", s.isJobEnabled("terminate_ending"), func(ctx context.Context) error {
			return s.runJob(ctx, "terminate_ending", time.Minute, s.TerminateEndingJob)
		}},
		{"activation_timeouts", s.isJobEnabled("activation_timeouts"), func(ctx context.Context) error {
			return s.runJob(ctx, "activation_timeouts", 30*time.Second, s.ActivationTimeoutsJob)
		}},
	}

	for _, job := range jobs {
		if job.Enabled {
			err = errors.Join(err, job.Run(parent))
		}
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)

	for {
		if lag := time.Since(nextRun); lag > 0 {
			metrics.RunLoopLag.Set(lag.Seconds())
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// An empty list enables everything (monolith mode).
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// ActivatePendingJob starts pending subscriptions whose start date arrived.
func (s *Scheduler) ActivatePendingJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, "activate_pending", s.cfg.BatchSize)
	if owner {
		s.logJobStart(run)
		defer s.logJobFinish(run)
	}
	now := s.clock.Now()
	var jobErr error

	for {
		if ctx.Err() != nil {
			return errors.Join(jobErr, ctx.Err())
		}

		subs, err := s.subscriptions.List(ctx, subdomain.ListFilter{
			Statuses:             []subdomain.Status{subdomain.StatusPending},
			SubscriptionAtBefore: &now,
			Limit:                s.cfg.BatchSize,
		})
		if err != nil {
			s.logSchedulerError(run, "scheduler.activate.fetch.failed", "activate_pending", "", err)
			return errors.Join(jobErr, err)
		}
		if len(subs) == 0 {
			break
		}

		progressed := 0
		for _, sub := range subs {
			res, err := s.subscriptionSvc.Activate(orgcontext.WithOrgID(ctx, sub.OrgID), sub.OrgID, sub.ID, now)
			if err != nil {
				jobErr = errors.Join(jobErr, err)
				s.logSchedulerError(run, "scheduler.activate.failed", "activate_pending", sub.OrgID, err,
					zap.String("subscription_id", sub.ID),
				)
				continue
			}
			if res.Outcome == subdomain.OutcomeApplied {
				run.AddProcessed(1)
				progressed++
			}
		}
		// Rows that stay pending (gating, errors) would loop forever.
		if progressed == 0 {
			break
		}
	}

	return jobErr
}

// BillSubscriptionsJob runs the billing dispatch for all organizations.
func (s *Scheduler) BillSubscriptionsJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, "bill_subscriptions", s.cfg.BatchSize)
	if owner {
		s.logJobStart(run)
		defer s.logJobFinish(run)
	}

	dispatched, err := s.DispatchBilling(ctx, scheduledomain.Scope{}, s.clock.Now())
	run.AddProcessed(dispatched)
	if err != nil {
		s.logSchedulerError(run, "scheduler.dispatch.failed", "bill_subscriptions", "", err)
	}
	return err
}

// FixedChargeEventsJob emits monthly fixed-charge tasks for long-interval
// plans.
func (s *Scheduler) FixedChargeEventsJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, "fixed_charge_events", s.cfg.BatchSize)
	if owner {
		s.logJobStart(run)
		defer s.logJobFinish(run)
	}

	dispatched, err := s.DispatchFixedCharges(ctx, scheduledomain.Scope{}, s.clock.Now())
	run.AddProcessed(dispatched)
	if err != nil {
		s.logSchedulerError(run, "scheduler.dispatch.failed", "fixed_charge_events", "", err)
	}
	return err
}

// TerminateEndingJob terminates subscriptions whose fixed end date passed
// and bills their final period.
func (s *Scheduler) TerminateEndingJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, "terminate_ending", s.cfg.BatchSize)
	if owner {
		s.logJobStart(run)
		defer s.logJobFinish(run)
	}
	now := s.clock.Now()
	var jobErr error

	subs, err := s.subscriptions.List(ctx, subdomain.ListFilter{
		Statuses:     []subdomain.Status{subdomain.StatusActive},
		EndingBefore: &now,
		Limit:        s.cfg.BatchSize,
	})
	if err != nil {
		s.logSchedulerError(run, "scheduler.terminate.fetch.failed", "terminate_ending", "", err)
		return err
	}

	for _, sub := range subs {
		if ctx.Err() != nil {
			return errors.Join(jobErr, ctx.Err())
		}
		res, err := s.subscriptionSvc.Terminate(orgcontext.WithOrgID(ctx, sub.OrgID), subdomain.TerminateInput{
			OrgID:          sub.OrgID,
			SubscriptionID: sub.ID,
			Async:          true,
		})
		if err != nil {
			jobErr = errors.Join(jobErr, err)
			s.logSchedulerError(run, "scheduler.terminate.failed", "terminate_ending", sub.OrgID, err,
				zap.String("subscription_id", sub.ID),
			)
			continue
		}
		if res.Outcome == subdomain.OutcomeApplied {
			run.AddProcessed(1)
		}
	}

	return jobErr
}

// ActivationTimeoutsJob terminates activating subscriptions whose gating
// window lapsed. This is the only time-based automatic cancellation.
func (s *Scheduler) ActivationTimeoutsJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, "activation_timeouts", s.cfg.BatchSize)
	if owner {
		s.logJobStart(run)
		defer s.logJobFinish(run)
	}
	now := s.clock.Now()
	var jobErr error

	subs, err := s.subscriptions.List(ctx, subdomain.ListFilter{
		Statuses:                 []subdomain.Status{subdomain.StatusActivating},
		ActivationTimedOutBefore: &now,
		Limit:                    s.cfg.BatchSize,
	})
	if err != nil {
		s.logSchedulerError(run, "scheduler.timeout.fetch.failed", "activation_timeouts", "", err)
		return err
	}

	for _, sub := range subs {
		if ctx.Err() != nil {
			return errors.Join(jobErr, ctx.Err())
		}
		res, err := s.subscriptionSvc.ExpireActivation(orgcontext.WithOrgID(ctx, sub.OrgID), sub.OrgID, sub.ID, "", now)
		if err != nil {
			jobErr = errors.Join(jobErr, err)
			s.logSchedulerError(run, "scheduler.timeout.failed", "activation_timeouts", sub.OrgID, err,
				zap.String("subscription_id", sub.ID),
			)
			continue
		}
		if res.Outcome == subdomain.OutcomeApplied {
			run.AddProcessed(1)
		}
	}

	return jobErr
}
