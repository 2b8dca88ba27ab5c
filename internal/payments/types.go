// Package payments wraps the Stripe API behind the small surface billing needs:
// webhook verification, subscription and customer lookups, and hosted
// checkout/portal sessions.
package payments

import (
	"context"
	"errors"
	"time"
)

// Stripe webhook event types handled by billing.
const (
	EventCheckoutSessionCompleted = "checkout.session.completed"
	EventSubscriptionCreated      = "customer.subscription.created"
	EventSubscriptionUpdated      = "customer.subscription.updated"
	EventSubscriptionDeleted      = "customer.subscription.deleted"
	EventInvoicePaid              = "invoice.paid"
	EventInvoicePaymentFailed     = "invoice.payment_failed"
)

var (
	ErrInvalidSignature     = errors.New("stripe webhook signature verification failed")
	ErrMalformedPayload     = errors.New("malformed stripe payload")
	ErrCustomerNotFound     = errors.New("stripe customer not found")
	ErrNoActiveSubscription = errors.New("no active stripe subscription")
	ErrProvider             = errors.New("stripe api request failed")
)

// Event is a verified webhook event. Object is the raw data.object JSON.
type Event struct {
	ID     string
	Type   string
	Object []byte
}

// Subscription is the part of a Stripe subscription billing reconciles.
type Subscription struct {
	ID                 string
	CustomerID         string
	Status             string
	PriceID            string
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	CancelAtPeriodEnd  bool
	Metadata           map[string]string
}

// CheckoutSession is a completed Stripe Checkout session.
type CheckoutSession struct {
	ID                string
	Mode              string
	CustomerID        string
	SubscriptionID    string
	ClientReferenceID string
	Metadata          map[string]string
}

// Invoice is a Stripe invoice reduced to the subscription it bills.
type Invoice struct {
	ID             string
	CustomerID     string
	SubscriptionID string
}

// Customer is a Stripe customer.
type Customer struct {
	ID    string
	Email string
}

// CheckoutParams describe a subscription-mode checkout for one user.
type CheckoutParams struct {
	UserID     string
	Email      string
	PlanID     string
	PriceID    string
	SuccessURL string
	CancelURL  string
}

// Session is a hosted Stripe page (checkout or billing portal).
type Session struct {
	ID  string
	URL string
}

// Gateway is the Stripe surface used by the billing core.
type Gateway interface {
	// ConstructEvent verifies the Stripe-Signature header against the payload.
	ConstructEvent(payload []byte, signature string) (*Event, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)
	// FindCustomerByEmail returns ErrCustomerNotFound when no customer matches.
	FindCustomerByEmail(ctx context.Context, email string) (*Customer, error)
	// GetActiveSubscription returns ErrNoActiveSubscription when the customer has none.
	GetActiveSubscription(ctx context.Context, customerID string) (*Subscription, error)
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*Session, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (*Session, error)
}
