package models

import "time"

// Outcomes recorded on BillingEvent.
const (
	BillingOutcomeApplied = "applied"
	BillingOutcomeSkipped = "skipped"
)

// BillingEvent is the audit trail entry written for every applied webhook event.
type BillingEvent struct {
	ID             string                 `json:"id" firestore:"-"`
	EventID        string                 `json:"eventId" firestore:"eventId"`
	Type           string                 `json:"type" firestore:"type"`
	UserID         string                 `json:"userId,omitempty" firestore:"userId,omitempty"`
	SubscriptionID string                 `json:"subscriptionId,omitempty" firestore:"subscriptionId,omitempty"`
	PlanID         string                 `json:"planId,omitempty" firestore:"planId,omitempty"`
	Outcome        string                 `json:"outcome" firestore:"outcome"`
	Details        map[string]interface{} `json:"details,omitempty" firestore:"details,omitempty"`
	ProcessedAt    time.Time              `json:"processedAt" firestore:"processedAt,serverTimestamp"`
}

// Notification types published to the billing events queue.
const (
	NotificationPlanChanged          = "plan_changed"
	NotificationSubscriptionCanceled = "subscription_canceled"
	NotificationPaymentFailed        = "payment_failed"
	NotificationReferralSettled      = "referral_settled"
)

// BillingNotification is the message published when a billing transition is applied.
type BillingNotification struct {
	ID             string    `json:"id"`
	Type           string    `json:"type"`
	UserID         string    `json:"userId"`
	PlanID         string    `json:"planId,omitempty"`
	SubscriptionID string    `json:"subscriptionId,omitempty"`
	Credits        int64     `json:"credits,omitempty"`
	OccurredAt     time.Time `json:"occurredAt"`
}
