package models

// SyncSubscriptionClientRequest is the body of the unauthenticated sync call.
type SyncSubscriptionClientRequest struct {
	UserEmail string `json:"userEmail" binding:"required,email"`
	UserID    string `json:"userId" binding:"required"`
}

// GenerateReferralRequest asks for the caller's referral code.
type GenerateReferralRequest struct {
	UserID    string `json:"userId" binding:"required"`
	UserEmail string `json:"userEmail" binding:"required,email"`
}

// ValidateReferralRequest checks a referral code.
type ValidateReferralRequest struct {
	ReferralCode string `json:"referralCode" binding:"required,referralcode"`
}

// RedeemReferralRequest records a referred signup.
type RedeemReferralRequest struct {
	ReferralCode      string `json:"referralCode" binding:"required,referralcode"`
	ReferredUserID    string `json:"referredUserId" binding:"required"`
	ReferredUserEmail string `json:"referredUserEmail" binding:"required,email"`
}

// CreateCheckoutSessionRequest starts a Stripe Checkout for a paid plan.
type CreateCheckoutSessionRequest struct {
	PlanID string `json:"planId" binding:"required,paidplan"`
}

// DeductCreditsRequest consumes credits from the current period.
type DeductCreditsRequest struct {
	Amount int64 `json:"amount" binding:"required,gt=0"`
}
