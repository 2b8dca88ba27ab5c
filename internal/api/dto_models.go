package api

// ErrorResponse is a generic structure for returning errors via API.
type ErrorResponse struct {
	Error   string `json:"error"`             // A high-level error message or code
	Details string `json:"details,omitempty"` // More specific details about the error, if available
}

// SuccessResponse is a generic structure for simple success messages.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// WebhookAckResponse acknowledges a Stripe delivery.
type WebhookAckResponse struct {
	Received  bool `json:"received"`
	Duplicate bool `json:"duplicate,omitempty"`
}

// CreateCheckoutSessionResponse carries the hosted checkout page.
type CreateCheckoutSessionResponse struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// CreatePortalSessionResponse returns the URL for the Stripe Customer Portal.
type CreatePortalSessionResponse struct {
	URL string `json:"url"`
}

// ValidateReferralResponse reports whether a code resolves to a referrer.
type ValidateReferralResponse struct {
	Valid         bool   `json:"valid"`
	ReferrerID    string `json:"referrerId,omitempty"`
	ReferrerEmail string `json:"referrerEmail,omitempty"`
	Error         string `json:"error,omitempty"`
}
