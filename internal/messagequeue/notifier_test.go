package messagequeue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"jamai-backend-go/internal/models"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, queueName string, body []byte) error {
	args := m.Called(ctx, queueName, body)
	return args.Error(0)
}

func (m *mockPublisher) Close() error {
	return m.Called().Error(0)
}

func TestQueueNotifier_PublishesJSON(t *testing.T) {
	pub := &mockPublisher{}
	var published []byte
	pub.On("Publish", mock.Anything, "billing-events", mock.Anything).
		Run(func(args mock.Arguments) { published = args.Get(2).([]byte) }).
		Return(nil)

	n := NewQueueNotifier(pub, "billing-events", zap.NewNop())
	n.Notify(context.Background(), models.BillingNotification{
		ID:         "n1",
		Type:       models.NotificationPlanChanged,
		UserID:     "user_1",
		PlanID:     "pro",
		Credits:    500,
		OccurredAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})

	pub.AssertExpectations(t)
	var got models.BillingNotification
	require.NoError(t, json.Unmarshal(published, &got))
	assert.Equal(t, models.NotificationPlanChanged, got.Type)
	assert.Equal(t, "user_1", got.UserID)
	assert.Equal(t, int64(500), got.Credits)
}

func TestQueueNotifier_SwallowsPublishErrors(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, "billing-events", mock.Anything).Return(errors.New("broker down"))

	n := NewQueueNotifier(pub, "billing-events", zap.New(core))
	assert.NotPanics(t, func() {
		n.Notify(context.Background(), models.BillingNotification{Type: models.NotificationPaymentFailed, UserID: "u"})
	})

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "Failed to publish billing notification", logs.All()[0].Message)
}
