package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	recdomain "github.com/smallbiznis/rebill/internal/billingrecord/domain"
	"github.com/smallbiznis/rebill/internal/cadence"
	plandomain "github.com/smallbiznis/rebill/internal/plan/domain"
	"github.com/smallbiznis/rebill/internal/schedule/domain"
	subdomain "github.com/smallbiznis/rebill/internal/subscription/domain"
)

// ledgerWindow bounds the anti-join query. Two days on each side of the
// reference covers every timezone offset.
const ledgerWindow = 48 * time.Hour

type service struct {
	subs   subdomain.Repository
	ledger recdomain.Repository
	log    *zap.Logger
}

func New(subs subdomain.Repository, ledger recdomain.Repository, log *zap.Logger) domain.Service {
	return &service{
		subs:   subs,
		ledger: ledger,
		log:    log.Named("schedule.selector"),
	}
}

func (s *service) DueForBilling(ctx context.Context, scope domain.Scope, today time.Time) ([]subdomain.Subscription, error) {
	candidates, err := s.candidates(ctx, scope, today, cadence.IsBillingDay)
	if err != nil {
		return nil, err
	}
	return s.excludeAlreadyBilled(ctx, candidates, today)
}

func (s *service) DueForFixedChargeEvents(ctx context.Context, scope domain.Scope, today time.Time) ([]subdomain.Subscription, error) {
	return s.candidates(ctx, scope, today, cadence.IsFixedChargeDay)
}

type predicate func(today time.Time, sub subdomain.Subscription, plan plandomain.Plan) bool

func (s *service) candidates(ctx context.Context, scope domain.Scope, today time.Time, due predicate) ([]subdomain.Subscription, error) {
	subs, err := s.subs.List(ctx, subdomain.ListFilter{
		OrgID:    scope.OrgID,
		Statuses: []subdomain.Status{subdomain.StatusActive},
	})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(subs))
	out := make([]subdomain.Subscription, 0, len(subs))
	for _, sub := range subs {
		if _, dup := seen[sub.ID]; dup {
			continue
		}
		if sub.Plan == nil {
			s.log.Warn("subscription without plan skipped", zap.String("subscription_id", sub.ID))
			continue
		}

		loc := time.UTC
		if sub.Customer != nil {
			loc = sub.Customer.Location()
		}
		local := today.In(loc)

		// Not yet visible to this run.
		if dateAfter(sub.CreatedAt.In(loc), local) {
			continue
		}
		// The creation flow billed the start day already.
		if sub.StartedAt != nil && sameDate(sub.StartedAt.In(loc), local) {
			continue
		}
		// The termination sweep owns the final day.
		if sub.EndingAt != nil && sameDate(sub.EndingAt.In(loc), local) {
			continue
		}

		if !due(local, sub, *sub.Plan) {
			continue
		}
		seen[sub.ID] = struct{}{}
		out = append(out, sub)
	}
	return out, nil
}

// excludeAlreadyBilled drops candidates that already have a recurring
// ledger row on the same billing day, evaluated in each subscription's own
// timezone. This anti-join is the sole idempotency mechanism: a repeated or
// concurrent run selects a shrinking due set.
func (s *service) excludeAlreadyBilled(ctx context.Context, candidates []subdomain.Subscription, today time.Time) ([]subdomain.Subscription, error) {
	if len(candidates) == 0 {
		return candidates, nil
	}

	byOrg := make(map[string][]string)
	for _, sub := range candidates {
		byOrg[sub.OrgID] = append(byOrg[sub.OrgID], sub.ID)
	}

	billed := make(map[string][]time.Time)
	for orgID, ids := range byOrg {
		recs, err := s.ledger.ListRecurringInWindow(ctx, orgID, ids,
			today.Add(-ledgerWindow), today.Add(ledgerWindow))
		if err != nil {
			return nil, err
		}
		for _, rec := range recs {
			billed[rec.SubscriptionID] = append(billed[rec.SubscriptionID], rec.Timestamp)
		}
	}

	out := make([]subdomain.Subscription, 0, len(candidates))
	for _, sub := range candidates {
		loc := time.UTC
		if sub.Customer != nil {
			loc = sub.Customer.Location()
		}
		local := today.In(loc)

		already := false
		for _, ts := range billed[sub.ID] {
			if sameDate(ts.In(loc), local) {
				already = true
				break
			}
		}
		if !already {
			out = append(out, sub)
		}
	}
	return out, nil
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func dateAfter(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	if ay != by {
		return ay > by
	}
	if am != bm {
		return am > bm
	}
	return ad > bd
}
