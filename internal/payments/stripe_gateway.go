package payments

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	portalsession "github.com/stripe/stripe-go/v82/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/subscription"
	"github.com/stripe/stripe-go/v82/webhook"
)

type stripeGateway struct {
	webhookSecret string
}

// NewStripeGateway configures the Stripe SDK with secretKey and returns a
// Gateway verifying webhooks with webhookSecret.
func NewStripeGateway(secretKey, webhookSecret string) Gateway {
	stripe.Key = secretKey
	return &stripeGateway{webhookSecret: webhookSecret}
}

// ConstructEvent verifies and parses a webhook payload. Events produced under
// an older account API version are accepted; objects are decoded by the
// version-tolerant decoders in this package.
func (g *stripeGateway) ConstructEvent(payload []byte, signature string) (*Event, error) {
	return constructEvent(payload, signature, g.webhookSecret)
}

func constructEvent(payload []byte, signature, secret string) (*Event, error) {
	if signature == "" {
		return nil, fmt.Errorf("%w: missing Stripe-Signature header", ErrInvalidSignature)
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if event.Data == nil {
		return nil, fmt.Errorf("%w: event %s has no data", ErrMalformedPayload, event.ID)
	}
	return &Event{ID: event.ID, Type: string(event.Type), Object: event.Data.Raw}, nil
}

func (g *stripeGateway) GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	sub, err := subscription.Get(subscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("%w: retrieve subscription %s: %v", ErrProvider, subscriptionID, err)
	}
	return fromStripeSubscription(sub)
}

func (g *stripeGateway) FindCustomerByEmail(ctx context.Context, email string) (*Customer, error) {
	params := &stripe.CustomerListParams{Email: stripe.String(email)}
	params.Limit = stripe.Int64(1)
	params.Context = ctx

	iter := customer.List(params)
	if iter.Next() {
		c := iter.Customer()
		return &Customer{ID: c.ID, Email: c.Email}, nil
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%w: list customers: %v", ErrProvider, err)
	}
	return nil, fmt.Errorf("%w: %s", ErrCustomerNotFound, email)
}

func (g *stripeGateway) GetActiveSubscription(ctx context.Context, customerID string) (*Subscription, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String(string(stripe.SubscriptionStatusActive)),
	}
	params.Limit = stripe.Int64(1)
	params.Context = ctx

	iter := subscription.List(params)
	if iter.Next() {
		return fromStripeSubscription(iter.Subscription())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%w: list subscriptions: %v", ErrProvider, err)
	}
	return nil, fmt.Errorf("%w: customer %s", ErrNoActiveSubscription, customerID)
}

func (g *stripeGateway) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*Session, error) {
	metadata := map[string]string{"userId": p.UserID, "planId": p.PlanID}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(p.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(p.SuccessURL),
		CancelURL:         stripe.String(p.CancelURL),
		ClientReferenceID: stripe.String(p.UserID),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: metadata,
		},
	}
	if p.Email != "" {
		params.CustomerEmail = stripe.String(p.Email)
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	s, err := checkoutsession.New(params)
	if err != nil {
		return nil, fmt.Errorf("%w: create checkout session: %v", ErrProvider, err)
	}
	return &Session{ID: s.ID, URL: s.URL}, nil
}

func (g *stripeGateway) CreatePortalSession(ctx context.Context, customerID, returnURL string) (*Session, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	s, err := portalsession.New(params)
	if err != nil {
		return nil, fmt.Errorf("%w: create portal session: %v", ErrProvider, err)
	}
	return &Session{ID: s.ID, URL: s.URL}, nil
}

// fromStripeSubscription runs SDK objects through DecodeSubscription so API
// responses and webhook payloads share one decoding path.
func fromStripeSubscription(sub *stripe.Subscription) (*Subscription, error) {
	if sub.LastResponse != nil && len(sub.LastResponse.RawJSON) > 0 {
		return DecodeSubscription(sub.LastResponse.RawJSON)
	}
	raw, err := json.Marshal(sub)
	if err != nil {
		return nil, fmt.Errorf("%w: encode subscription %s: %v", ErrMalformedPayload, sub.ID, err)
	}
	return DecodeSubscription(raw)
}
