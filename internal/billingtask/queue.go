// Package billingtask carries the work items the dispatcher emits. Tasks
// are delivered at least once; consumers rely on the idempotent lifecycle
// and the invoice-subscription anti-join, not on exactly-once delivery.
package billingtask

import (
	"context"
	"sync"
	"time"

	"github.com/smallbiznis/rebill/internal/invoicing"
	"go.uber.org/fx"
)

// BillingTask bills a batch of one customer's subscriptions.
type BillingTask struct {
	OrgID           string
	CustomerID      string
	SubscriptionIDs []string
	// Timestamp is the dispatch instant, recorded later on the
	// idempotency ledger rows.
	Timestamp time.Time
	Reason    invoicing.Reason
	// Delay staggers org-wide dispatch against the invoice engine.
	Delay time.Duration
}

// TerminationTask rotates or finishes a single subscription before its
// final period is billed.
type TerminationTask struct {
	OrgID          string
	SubscriptionID string
	Timestamp      time.Time
	Delay          time.Duration
}

type Queue interface {
	EnqueueBilling(ctx context.Context, task BillingTask) error
	EnqueueTermination(ctx context.Context, task TerminationTask) error
}

// MemoryQueue buffers tasks in memory. The default wiring; a broker-backed
// queue is a deployment concern.
type MemoryQueue struct {
	mu           sync.Mutex
	billing      []BillingTask
	terminations []TerminationTask
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

func (q *MemoryQueue) EnqueueBilling(ctx context.Context, task BillingTask) error {
	_ = ctx
	q.mu.Lock()
	defer q.mu.Unlock()
	q.billing = append(q.billing, task)
	return nil
}

func (q *MemoryQueue) EnqueueTermination(ctx context.Context, task TerminationTask) error {
	_ = ctx
	q.mu.Lock()
	defer q.mu.Unlock()
	q.terminations = append(q.terminations, task)
	return nil
}

// DrainBilling returns and clears the buffered billing tasks.
func (q *MemoryQueue) DrainBilling() []BillingTask {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.billing
	q.billing = nil
	return out
}

// DrainTerminations returns and clears the buffered termination tasks.
func (q *MemoryQueue) DrainTerminations() []TerminationTask {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.terminations
	q.terminations = nil
	return out
}

// Module provides the in-memory queue as the Queue implementation.
var Module = fx.Module("billingtask",
	fx.Provide(
		NewMemoryQueue,
		func(q *MemoryQueue) Queue { return q },
	),
)
