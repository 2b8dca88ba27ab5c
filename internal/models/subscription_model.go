package models

import "time"

// Stripe subscription statuses mirrored on SubscriptionRecord.Status.
const (
	SubscriptionStatusActive            = "active"
	SubscriptionStatusTrialing          = "trialing"
	SubscriptionStatusPastDue           = "past_due"
	SubscriptionStatusCanceled          = "canceled"
	SubscriptionStatusIncomplete        = "incomplete"
	SubscriptionStatusIncompleteExpired = "incomplete_expired"
	SubscriptionStatusUnpaid            = "unpaid"
)

// Subscription is the stored mirror of a Stripe subscription, keyed by
// StripeSubscriptionID. Records are never deleted; cancellation is a status.
type Subscription struct {
	ID                   string    `json:"id" firestore:"-"`
	UserID               string    `json:"userId" firestore:"userId"`
	StripeCustomerID     string    `json:"stripeCustomerId" firestore:"stripeCustomerId"`
	StripeSubscriptionID string    `json:"stripeSubscriptionId" firestore:"stripeSubscriptionId"`
	StripePriceID        string    `json:"stripePriceId" firestore:"stripePriceId"`
	Status               string    `json:"status" firestore:"status"`
	PlanID               string    `json:"planId" firestore:"planId"`
	CurrentPeriodStart   time.Time `json:"currentPeriodStart" firestore:"currentPeriodStart"`
	CurrentPeriodEnd     time.Time `json:"currentPeriodEnd" firestore:"currentPeriodEnd"`
	CancelAtPeriodEnd    bool      `json:"cancelAtPeriodEnd" firestore:"cancelAtPeriodEnd"`
	CreatedAt            time.Time `json:"createdAt" firestore:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt" firestore:"updatedAt"`
}
