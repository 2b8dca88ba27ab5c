package models

import "time"

// User is the subset of a Jam AI user profile that billing reconciles.
// The document ID is the Firebase Auth UID.
type User struct {
	ID               string    `json:"id" firestore:"-"`
	Email            string    `json:"email,omitempty" firestore:"email,omitempty"`
	DisplayName      string    `json:"displayName,omitempty" firestore:"displayName,omitempty"`
	Plan             string    `json:"plan" firestore:"plan"`
	PlanID           string    `json:"planId" firestore:"planId"` // mirrors Plan for older clients
	CreditsTotal     int64     `json:"creditsTotal" firestore:"creditsTotal"`
	CreditsUsed      int64     `json:"creditsUsed" firestore:"creditsUsed"`
	Credits          *int64    `json:"credits,omitempty" firestore:"credits,omitempty"` // referral bonus balance
	StripeCustomerID string    `json:"stripeCustomerId,omitempty" firestore:"stripeCustomerId,omitempty"`
	CreatedAt        time.Time `json:"createdAt,omitempty" firestore:"createdAt,omitempty"`
	UpdatedAt        time.Time `json:"updatedAt,omitempty" firestore:"updatedAt,omitempty"`
}

// AvailableCredits is the part of this period's allotment not yet used.
func (u *User) AvailableCredits() int64 {
	left := u.CreditsTotal - u.CreditsUsed
	if left < 0 {
		return 0
	}
	return left
}

// CreditBalance returns the "available now" counter used for referral
// bonuses, falling back to the plan allotment when it was never set.
func (u *User) CreditBalance() int64 {
	if u.Credits != nil {
		return *u.Credits
	}
	return u.CreditsTotal
}
