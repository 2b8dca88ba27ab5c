package db

import (
	"context"
	"time"

	"jamai-backend-go/internal/models"
)

// PlanFields is the merge-write applied to a user profile when a plan is
// (re)applied. Plan is written to both plan and planId.
type PlanFields struct {
	Plan             string
	CreditsTotal     int64
	ResetUsage       bool   // write creditsUsed = 0
	StripeCustomerID string // written only when non-empty
	UpdatedAt        time.Time
}

// UserRepository defines the interface for user profile storage operations.
type UserRepository interface {
	GetByID(ctx context.Context, userID string) (*models.User, error)
	// ApplyPlan merges fields into the profile, creating it if absent.
	ApplyPlan(ctx context.Context, userID string, fields PlanFields) error
	// AddCredits adds amount to the credits balance (seeded from creditsTotal
	// when unset) and returns the new balance.
	AddCredits(ctx context.Context, userID string, amount int64) (int64, error)
	// ConsumeCredits increments creditsUsed by amount if enough of the
	// allotment is left, else returns ErrPreconditionFailed.
	ConsumeCredits(ctx context.Context, userID string, amount int64) (*models.User, error)
}

// SubscriptionRepository defines the interface for subscription record storage.
type SubscriptionRepository interface {
	GetByStripeID(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error)
	// Create inserts a record whose document ID is the Stripe subscription ID.
	// Returns ErrAlreadyExists if another writer got there first.
	Create(ctx context.Context, sub *models.Subscription) error
	// Update merges every field except createdAt into the document sub.ID.
	Update(ctx context.Context, sub *models.Subscription) error
	UpdateStatus(ctx context.Context, docID, status string, at time.Time) error
}

// ReferralRepository defines the interface for referral aggregate storage.
type ReferralRepository interface {
	GetByReferrerID(ctx context.Context, referrerID string) (*models.Referral, error)
	GetByCode(ctx context.Context, code string) (*models.Referral, error)
	Create(ctx context.Context, referral *models.Referral) (string, error)
	IncrementTotalReferrals(ctx context.Context, referralID string) error
	RecordSuccessfulReferral(ctx context.Context, referrerID string, creditsEarned int64) error
}

// RedemptionRepository defines the interface for referral redemption storage.
type RedemptionRepository interface {
	GetByReferredUserID(ctx context.Context, referredUserID string) (*models.ReferralRedemption, error)
	GetPendingByReferredUserID(ctx context.Context, referredUserID string) (*models.ReferralRedemption, error)
	Create(ctx context.Context, redemption *models.ReferralRedemption) (string, error)
	// ClaimAward flips creditsAwarded to true and marks the redemption
	// completed. It reports false if the redemption was already awarded.
	ClaimAward(ctx context.Context, redemptionID, awardedAt string) (bool, error)
}

// BillingEventRepository defines the interface for the webhook audit trail.
type BillingEventRepository interface {
	Create(ctx context.Context, event models.BillingEvent) error
}
