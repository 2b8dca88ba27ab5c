package core

import (
	"context"

	"jamai-backend-go/internal/models"
	"jamai-backend-go/internal/payments"
	"jamai-backend-go/internal/plans"
)

// UserService defines the interface for user profile operations.
type UserService interface {
	GetByID(ctx context.Context, userID string) (*models.User, error)
}

// SubscriptionService owns the subscription record and the plan/credits
// fields derived from it on the user profile.
type SubscriptionService interface {
	// UpsertSubscription inserts or updates the record keyed by
	// StripeSubscriptionID and reports whether it was inserted.
	UpsertSubscription(ctx context.Context, sub *models.Subscription) (bool, error)
	// ApplyPlanToUser writes the plan and its allotment onto the user profile.
	ApplyPlanToUser(ctx context.Context, userID string, planID plans.PlanID, update PlanUpdate) error
	// CreateOrUpdateSubscription reconciles a Stripe subscription with the
	// store and the owning user.
	CreateOrUpdateSubscription(ctx context.Context, sub *payments.Subscription, userID, planHint string) (*SubscriptionOutcome, error)
	// CancelSubscription marks the record canceled and moves its user to the
	// free plan. Returns ErrSubscriptionNotFound for unknown ids and
	// ErrSubscriptionCanceled when the record is already canceled.
	CancelSubscription(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error)
	// MarkPastDue flags the record after a failed payment. Credits are untouched.
	// A canceled record stays canceled and ErrSubscriptionCanceled is returned.
	MarkPastDue(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error)
}

// ReferralService defines referral code issuance, redemption and settlement.
type ReferralService interface {
	Generate(ctx context.Context, userID, email string) (*GenerateResult, error)
	Validate(ctx context.Context, code string) (*models.Referral, error)
	Redeem(ctx context.Context, code, referredUserID, referredEmail string) (*models.ReferralRedemption, error)
	// SettleReferralCredits awards the referral bonus for the user's pending
	// redemption, if any. Failures are logged, never returned.
	SettleReferralCredits(ctx context.Context, userID string)
}

// BillingService defines the Stripe facing operations.
type BillingService interface {
	HandleStripeWebhook(ctx context.Context, signature string, payload []byte) (*WebhookResult, error)
	// SyncSubscriptionClient looks the user's subscription up in Stripe and
	// returns what the caller should write. Nothing is persisted.
	SyncSubscriptionClient(ctx context.Context, userID, email string) (*SyncResult, error)
	// SyncSubscription looks the user's subscription up in Stripe and applies it.
	SyncSubscription(ctx context.Context, userID, email string) (*SyncResult, error)
	CreateCheckoutSession(ctx context.Context, userID, email, planID string) (*payments.Session, error)
	CreatePortalSession(ctx context.Context, userID string) (*payments.Session, error)
}

// UsageService defines credit balance reads and deductions.
type UsageService interface {
	GetUsage(ctx context.Context, userID string) (*Usage, error)
	Deduct(ctx context.Context, userID string, amount int64) (*Usage, error)
}

// Notifier receives billing transitions once they are applied.
type Notifier interface {
	Notify(ctx context.Context, n models.BillingNotification)
}

// EventStore remembers which webhook events were already applied.
type EventStore interface {
	IsProcessed(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID string) error
}
