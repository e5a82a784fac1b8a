package scheduler

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/smallbiznis/rebill/internal/billingtask"
	"github.com/smallbiznis/rebill/internal/invoicing"
	"github.com/smallbiznis/rebill/internal/observability/metrics"
	scheduledomain "github.com/smallbiznis/rebill/internal/schedule/domain"
	subdomain "github.com/smallbiznis/rebill/internal/subscription/domain"
)

// DispatchBilling runs the selector and turns the due set into tasks: one
// billing task per customer batch, plus one termination task for every
// subscription with a pending downgrade waiting at this boundary. It
// returns the number of tasks emitted.
func (s *Scheduler) DispatchBilling(ctx context.Context, scope scheduledomain.Scope, now time.Time) (int, error) {
	due, err := s.selector.DueForBilling(ctx, scope, now)
	if err != nil {
		return 0, err
	}

	var (
		rotations []subdomain.Subscription
		order     []string
		byGroup   = make(map[string][]subdomain.Subscription)
	)
	for _, sub := range due {
		// A pending successor means this boundary is the rotation point:
		// the subscription must terminate before anything is billed.
		if sub.HasPendingSuccessor() {
			rotations = append(rotations, sub)
			continue
		}
		key := sub.OrgID + "/" + sub.CustomerID
		if _, ok := byGroup[key]; !ok {
			order = append(order, key)
		}
		byGroup[key] = append(byGroup[key], sub)
	}

	dispatched := 0
	var dispatchErr error

	for _, sub := range rotations {
		task := billingtask.TerminationTask{
			OrgID:          sub.OrgID,
			SubscriptionID: sub.ID,
			Timestamp:      now,
			Delay:          s.jitter(scope),
		}
		if err := s.queue.EnqueueTermination(ctx, task); err != nil {
			dispatchErr = errors.Join(dispatchErr, err)
			s.log.Error("termination task enqueue failed",
				zap.String("subscription_id", sub.ID), zap.Error(err))
			continue
		}
		metrics.TasksDispatched.WithLabelValues("termination").Inc()
		dispatched++
	}

	for _, key := range order {
		group := byGroup[key]
		ids := make([]string, 0, len(group))
		for _, sub := range group {
			ids = append(ids, sub.ID)
		}
		task := billingtask.BillingTask{
			OrgID:           group[0].OrgID,
			CustomerID:      group[0].CustomerID,
			SubscriptionIDs: ids,
			Timestamp:       now,
			Reason:          invoicing.ReasonPeriodic,
			Delay:           s.jitter(scope),
		}
		if err := s.queue.EnqueueBilling(ctx, task); err != nil {
			dispatchErr = errors.Join(dispatchErr, err)
			s.log.Error("billing task enqueue failed",
				zap.String("customer_id", group[0].CustomerID), zap.Error(err))
			continue
		}
		metrics.TasksDispatched.WithLabelValues("billing").Inc()
		dispatched++
	}

	return dispatched, dispatchErr
}

// DispatchFixedCharges emits one fixed-charge billing task per customer for
// the subscriptions owing a monthly charge event today.
func (s *Scheduler) DispatchFixedCharges(ctx context.Context, scope scheduledomain.Scope, now time.Time) (int, error) {
	due, err := s.selector.DueForFixedChargeEvents(ctx, scope, now)
	if err != nil {
		return 0, err
	}

	var order []string
	byGroup := make(map[string][]subdomain.Subscription)
	for _, sub := range due {
		key := sub.OrgID + "/" + sub.CustomerID
		if _, ok := byGroup[key]; !ok {
			order = append(order, key)
		}
		byGroup[key] = append(byGroup[key], sub)
	}

	dispatched := 0
	var dispatchErr error
	for _, key := range order {
		group := byGroup[key]
		ids := make([]string, 0, len(group))
		for _, sub := range group {
			ids = append(ids, sub.ID)
		}
		task := billingtask.BillingTask{
			OrgID:           group[0].OrgID,
			CustomerID:      group[0].CustomerID,
			SubscriptionIDs: ids,
			Timestamp:       now,
			Reason:          invoicing.ReasonFixedCharge,
			Delay:           s.jitter(scope),
		}
		if err := s.queue.EnqueueBilling(ctx, task); err != nil {
			dispatchErr = errors.Join(dispatchErr, err)
			continue
		}
		metrics.TasksDispatched.WithLabelValues("fixed_charge").Inc()
		dispatched++
	}

	return dispatched, dispatchErr
}

// jitter staggers org-wide dispatch so the invoice engine is not hit by
// every customer at once. Single-organization runs go out immediately.
func (s *Scheduler) jitter(scope scheduledomain.Scope) time.Duration {
	if !scope.All() || s.cfg.DispatchJitterMax <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(s.cfg.DispatchJitterMax)))
}
