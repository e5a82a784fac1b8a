// Package notify fans lifecycle events out to webhook/notification
// delivery. Calls are fire and forget; delivery failures never fail a
// lifecycle transition.
package notify

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	EventSubscriptionStarted          = "subscription.started"
	EventSubscriptionActivating       = "subscription.activating"
	EventSubscriptionActivationFailed = "subscription.activation_failed"
	EventSubscriptionTerminated       = "subscription.terminated"
	EventSubscriptionCanceled         = "subscription.canceled"
)

type Notifier interface {
	Notify(ctx context.Context, event string, entity any)
}

type logNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) Notifier {
	return &logNotifier{log: log.Named("notify")}
}

func (n *logNotifier) Notify(ctx context.Context, event string, entity any) {
	_ = ctx
	n.log.Info("event", zap.String("event", event), zap.Any("entity", entity))
}

// Module provides the default logging notifier.
var Module = fx.Module("notify",
	fx.Provide(NewLogNotifier),
)
