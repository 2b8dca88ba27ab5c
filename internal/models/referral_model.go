package models

// Redemption statuses.
const (
	RedemptionStatusPending   = "pending"
	RedemptionStatusCompleted = "completed"
)

// Referral is the per-referrer aggregate holding the referrer's code.
// Timestamps are RFC 3339 strings, matching documents written by the web app.
type Referral struct {
	ID                  string `json:"id" firestore:"-"`
	ReferrerID          string `json:"referrerId" firestore:"referrerId"`
	ReferrerEmail       string `json:"referrerEmail" firestore:"referrerEmail"`
	ReferralCode        string `json:"referralCode" firestore:"referralCode"`
	CreatedAt           string `json:"createdAt" firestore:"createdAt"`
	TotalReferrals      int64  `json:"totalReferrals" firestore:"totalReferrals"`
	SuccessfulReferrals int64  `json:"successfulReferrals" firestore:"successfulReferrals"`
	TotalCreditsEarned  int64  `json:"totalCreditsEarned" firestore:"totalCreditsEarned"`
}

// ReferralRedemption links a referred user to the code they redeemed.
// CreditsAwarded flips to true at most once.
type ReferralRedemption struct {
	ID                    string `json:"id" firestore:"-"`
	ReferralCode          string `json:"referralCode" firestore:"referralCode"`
	ReferrerID            string `json:"referrerId" firestore:"referrerId"`
	ReferredUserID        string `json:"referredUserId" firestore:"referredUserId"`
	ReferredUserEmail     string `json:"referredUserEmail" firestore:"referredUserEmail"`
	RedeemedAt            string `json:"redeemedAt" firestore:"redeemedAt"`
	CreditsAwarded        bool   `json:"creditsAwarded" firestore:"creditsAwarded"`
	CreditsAwardedAt      string `json:"creditsAwardedAt,omitempty" firestore:"creditsAwardedAt,omitempty"`
	SubscriptionStartedAt string `json:"subscriptionStartedAt,omitempty" firestore:"subscriptionStartedAt,omitempty"`
	Status                string `json:"status" firestore:"status"`
}
