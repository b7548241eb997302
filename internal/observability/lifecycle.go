package observability

import (
	"context"

	"go.uber.org/zap"

	"github.com/accountops/account-deletion/internal/events"
)

// SubscribeLifecycle records deletion lifecycle events as metrics and log lines.
func SubscribeLifecycle(d events.Dispatcher, metrics *Metrics, logger *zap.Logger) {
	handler := func(_ context.Context, e events.Event) error {
		metrics.RecordTransition(string(e.Type))
		logger.Info("account deletion event",
			zap.String("event_type", string(e.Type)),
			zap.String("user_id", e.UserID),
			zap.Int64("request_id", e.RequestID),
			zap.Any("payload", e.Payload),
		)
		return nil
	}

	for _, t := range []events.EventType{
		events.EventDeletionScheduled,
		events.EventDeletionCancelled,
		events.EventDeletionCompleted,
		events.EventReminderSent,
	} {
		d.Subscribe(t, handler)
	}
}
