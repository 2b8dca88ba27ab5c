package messagequeue

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"jamai-backend-go/internal/models"
)

// QueueNotifier publishes billing notifications as JSON on a single queue.
// Publish failures are logged and never returned.
type QueueNotifier struct {
	publisher Publisher
	queue     string
	logger    *zap.Logger
}

// NewQueueNotifier creates a notifier writing to queue through publisher.
func NewQueueNotifier(publisher Publisher, queue string, logger *zap.Logger) *QueueNotifier {
	return &QueueNotifier{publisher: publisher, queue: queue, logger: logger}
}

// Notify publishes n.
func (q *QueueNotifier) Notify(ctx context.Context, n models.BillingNotification) {
	body, err := json.Marshal(n)
	if err != nil {
		q.logger.Error("Failed to encode billing notification", zap.String("type", n.Type), zap.Error(err))
		return
	}
	if err := q.publisher.Publish(ctx, q.queue, body); err != nil {
		q.logger.Warn("Failed to publish billing notification",
			zap.String("type", n.Type),
			zap.String("user_id", n.UserID),
			zap.String("queue", q.queue),
			zap.Error(err))
	}
}

// LogNotifier only logs notifications. It is used when no broker is configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(_ context.Context, n models.BillingNotification) {
	l.logger.Debug("Billing notification",
		zap.String("type", n.Type),
		zap.String("user_id", n.UserID),
		zap.String("plan_id", n.PlanID))
}
