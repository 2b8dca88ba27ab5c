package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"jamai-backend-go/internal/models"
	"jamai-backend-go/internal/plans"
)

func newTestUsageService(t *testing.T, users *fakeUsers) UsageService {
	return NewUsageService(users, plans.DefaultCatalog(testPrices), zaptest.NewLogger(t))
}

func TestGetUsage(t *testing.T) {
	users := newFakeUsers()
	bonus := int64(320)
	users.put(&models.User{ID: "user_1", Plan: "premium", CreditsTotal: 500, CreditsUsed: 180, Credits: &bonus})
	svc := newTestUsageService(t, users)

	u, err := svc.GetUsage(context.Background(), "user_1")
	require.NoError(t, err)
	assert.Equal(t, "pro", u.Plan)
	assert.Equal(t, int64(320), u.CreditsAvailable)
	assert.Equal(t, int64(320), u.Credits)

	_, err = svc.GetUsage(context.Background(), "ghost")
	assert.True(t, errors.Is(err, ErrUserNotFound))
}

func TestDeduct(t *testing.T) {
	users := newFakeUsers()
	users.put(&models.User{ID: "user_1", Plan: "free", CreditsTotal: 25, CreditsUsed: 20})
	svc := newTestUsageService(t, users)
	ctx := context.Background()

	u, err := svc.Deduct(ctx, "user_1", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(25), u.CreditsUsed)
	assert.Zero(t, u.CreditsAvailable)

	_, err = svc.Deduct(ctx, "user_1", 1)
	assert.True(t, errors.Is(err, ErrInsufficientCredits))
	assert.Equal(t, int64(25), users.get("user_1").CreditsUsed)

	_, err = svc.Deduct(ctx, "user_1", 0)
	assert.True(t, errors.Is(err, ErrInvalidAmount))

	_, err = svc.Deduct(ctx, "ghost", 1)
	assert.True(t, errors.Is(err, ErrUserNotFound))
}
