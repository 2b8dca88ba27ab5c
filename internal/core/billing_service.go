package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"jamai-backend-go/internal/config"
	"jamai-backend-go/internal/db"
	"jamai-backend-go/internal/models"
	"jamai-backend-go/internal/payments"
	"jamai-backend-go/internal/plans"
)

var (
	ErrPlanNotFound        = errors.New("plan or price ID not found")
	ErrStripeClient        = errors.New("stripe client operation failed")
	ErrWebhookProcessing   = errors.New("stripe webhook processing failed")
	ErrWebhookSignature    = errors.New("stripe webhook signature verification failed")
	ErrUserStripeNotLinked = errors.New("user does not have a Stripe customer ID")
	ErrMissingEmail        = errors.New("user email is required")
)

// WebhookResult reports what happened to one delivered event.
type WebhookResult struct {
	EventID   string
	Type      string
	Outcome   string
	Duplicate bool
}

// PlanFieldsUpdate is the profile write a client should perform after a
// client-side sync.
type PlanFieldsUpdate struct {
	Plan             string `json:"plan"`
	PlanID           string `json:"planId"`
	CreditsTotal     int64  `json:"creditsTotal"`
	CreditsUsed      int64  `json:"creditsUsed"`
	StripeCustomerID string `json:"stripeCustomerId,omitempty"`
}

// SyncResult is the response of both sync variants.
type SyncResult struct {
	Message            string            `json:"message"`
	Plan               string            `json:"plan"`
	Credits            int64             `json:"credits"`
	SubscriptionStatus string            `json:"subscriptionStatus,omitempty"`
	UpdateNeeded       *PlanFieldsUpdate `json:"updateNeeded,omitempty"`
}

// handled is the audit summary of an applied event.
type handled struct {
	userID         string
	subscriptionID string
	planID         string
	outcome        string
	details        map[string]interface{}
}

func skipped(reason string) handled {
	return handled{outcome: models.BillingOutcomeSkipped, details: map[string]interface{}{"reason": reason}}
}

type billingService struct {
	gateway       payments.Gateway
	subscriptions SubscriptionService
	users         db.UserRepository
	billingEvents db.BillingEventRepository
	events        EventStore
	catalog       *plans.Catalog
	clientURL     string
	resetPolicy   string
	logger        *zap.Logger
}

// BillingDeps groups the collaborators of the billing service. BillingEvents
// and Events are optional.
type BillingDeps struct {
	Gateway       payments.Gateway
	Subscriptions SubscriptionService
	Users         db.UserRepository
	BillingEvents db.BillingEventRepository
	Events        EventStore
	Catalog       *plans.Catalog
}

// NewBillingService creates a BillingService.
func NewBillingService(deps BillingDeps, appConfig *config.Config, logger *zap.Logger) BillingService {
	s := &billingService{
		gateway:       deps.Gateway,
		subscriptions: deps.Subscriptions,
		users:         deps.Users,
		billingEvents: deps.BillingEvents,
		events:        deps.Events,
		catalog:       deps.Catalog,
		resetPolicy:   config.CreditsResetPeriod,
		logger:        logger,
	}
	if appConfig != nil {
		s.clientURL = strings.TrimRight(appConfig.ClientURL, "/")
		s.resetPolicy = appConfig.CreditsResetPolicy
	}
	return s
}

// HandleStripeWebhook verifies and applies one webhook delivery. Signature
// failures wrap ErrWebhookSignature; failures while applying the event wrap
// ErrWebhookProcessing so Stripe retries the delivery.
func (s *billingService) HandleStripeWebhook(ctx context.Context, signature string, payload []byte) (*WebhookResult, error) {
	event, err := s.gateway.ConstructEvent(payload, signature)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWebhookSignature, err)
	}
	log := s.logger.With(zap.String("event_id", event.ID), zap.String("event_type", event.Type))
	result := &WebhookResult{EventID: event.ID, Type: event.Type}

	if s.events != nil {
		done, err := s.events.IsProcessed(ctx, event.ID)
		if err != nil {
			log.Warn("Processed-event lookup failed, applying event anyway", zap.Error(err))
		} else if done {
			log.Info("Duplicate webhook delivery ignored")
			result.Duplicate = true
			return result, nil
		}
	}

	h, err := s.dispatch(ctx, event)
	if err != nil {
		log.Error("Webhook processing failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %s %s: %v", ErrWebhookProcessing, event.Type, event.ID, err)
	}
	result.Outcome = h.outcome
	log.Info("Webhook processed",
		zap.String("outcome", h.outcome),
		zap.String("user_id", h.userID),
		zap.String("subscription_id", h.subscriptionID))

	if s.events != nil {
		if err := s.events.MarkProcessed(ctx, event.ID); err != nil {
			log.Warn("Failed to mark event processed", zap.Error(err))
		}
	}
	s.recordEvent(ctx, event, h)
	return result, nil
}

func (s *billingService) recordEvent(ctx context.Context, event *payments.Event, h handled) {
	if s.billingEvents == nil {
		return
	}
	entry := models.BillingEvent{
		EventID:        event.ID,
		Type:           event.Type,
		UserID:         h.userID,
		SubscriptionID: h.subscriptionID,
		PlanID:         h.planID,
		Outcome:        h.outcome,
		Details:        h.details,
	}
	if err := s.billingEvents.Create(ctx, entry); err != nil {
		s.logger.Warn("Failed to write billing event", zap.String("event_id", event.ID), zap.Error(err))
	}
}

func (s *billingService) dispatch(ctx context.Context, event *payments.Event) (handled, error) {
	switch event.Type {
	case payments.EventCheckoutSessionCompleted:
		return s.onCheckoutCompleted(ctx, event)
	case payments.EventSubscriptionCreated, payments.EventSubscriptionUpdated:
		return s.onSubscriptionChanged(ctx, event)
	case payments.EventSubscriptionDeleted:
		return s.onSubscriptionDeleted(ctx, event)
	case payments.EventInvoicePaid:
		return s.onInvoicePaid(ctx, event)
	case payments.EventInvoicePaymentFailed:
		return s.onInvoicePaymentFailed(ctx, event)
	default:
		return skipped("unhandled event type"), nil
	}
}

func (s *billingService) onCheckoutCompleted(ctx context.Context, event *payments.Event) (handled, error) {
	session, err := payments.DecodeCheckoutSession(event.Object)
	if err != nil {
		return handled{}, err
	}
	userID := session.Metadata["userId"]
	if userID == "" {
		userID = session.ClientReferenceID
	}
	if userID == "" {
		s.logger.Warn("Checkout session without user id", zap.String("session_id", session.ID))
		return skipped("checkout session has no user id"), nil
	}
	if session.SubscriptionID == "" {
		return skipped("checkout session has no subscription"), nil
	}

	sub, err := s.gateway.GetSubscription(ctx, session.SubscriptionID)
	if err != nil {
		return handled{}, err
	}
	return s.reconcile(ctx, sub, userID, session.Metadata["planId"])
}

func (s *billingService) onSubscriptionChanged(ctx context.Context, event *payments.Event) (handled, error) {
	sub, err := payments.DecodeSubscription(event.Object)
	if err != nil {
		return handled{}, err
	}
	userID := sub.Metadata["userId"]
	if userID == "" {
		s.logger.Warn("Subscription without userId metadata", zap.String("subscription_id", sub.ID))
		return skipped("subscription has no userId metadata"), nil
	}
	return s.reconcile(ctx, sub, userID, sub.Metadata["planId"])
}

func (s *billingService) onSubscriptionDeleted(ctx context.Context, event *payments.Event) (handled, error) {
	sub, err := payments.DecodeSubscription(event.Object)
	if err != nil {
		return handled{}, err
	}
	record, err := s.subscriptions.CancelSubscription(ctx, sub.ID)
	if errors.Is(err, ErrSubscriptionNotFound) {
		s.logger.Warn("Deleted subscription has no record", zap.String("subscription_id", sub.ID))
		h := skipped("subscription record not found")
		h.subscriptionID = sub.ID
		return h, nil
	}
	if errors.Is(err, ErrSubscriptionCanceled) {
		h := skipped("subscription already canceled")
		h.subscriptionID = sub.ID
		return h, nil
	}
	if err != nil {
		return handled{}, err
	}
	return handled{
		userID:         record.UserID,
		subscriptionID: sub.ID,
		planID:         string(plans.Free),
		outcome:        models.BillingOutcomeApplied,
	}, nil
}

func (s *billingService) onInvoicePaid(ctx context.Context, event *payments.Event) (handled, error) {
	invoice, err := payments.DecodeInvoice(event.Object)
	if err != nil {
		return handled{}, err
	}
	if invoice.SubscriptionID == "" {
		return skipped("invoice is not for a subscription"), nil
	}
	sub, err := s.gateway.GetSubscription(ctx, invoice.SubscriptionID)
	if err != nil {
		return handled{}, err
	}
	userID := sub.Metadata["userId"]
	if userID == "" {
		s.logger.Warn("Invoice subscription without userId metadata", zap.String("subscription_id", sub.ID))
		h := skipped("subscription has no userId metadata")
		h.subscriptionID = sub.ID
		return h, nil
	}
	return s.reconcile(ctx, sub, userID, sub.Metadata["planId"])
}

func (s *billingService) onInvoicePaymentFailed(ctx context.Context, event *payments.Event) (handled, error) {
	invoice, err := payments.DecodeInvoice(event.Object)
	if err != nil {
		return handled{}, err
	}
	if invoice.SubscriptionID == "" {
		return skipped("invoice is not for a subscription"), nil
	}
	record, err := s.subscriptions.MarkPastDue(ctx, invoice.SubscriptionID)
	if errors.Is(err, ErrSubscriptionNotFound) {
		h := skipped("subscription record not found")
		h.subscriptionID = invoice.SubscriptionID
		return h, nil
	}
	if errors.Is(err, ErrSubscriptionCanceled) {
		s.logger.Warn("Payment failure for canceled subscription ignored",
			zap.String("subscription_id", invoice.SubscriptionID))
		h := skipped("subscription is canceled")
		h.subscriptionID = invoice.SubscriptionID
		h.userID = record.UserID
		return h, nil
	}
	if err != nil {
		return handled{}, err
	}
	return handled{
		userID:         record.UserID,
		subscriptionID: invoice.SubscriptionID,
		planID:         record.PlanID,
		outcome:        models.BillingOutcomeApplied,
		details:        map[string]interface{}{"status": models.SubscriptionStatusPastDue},
	}, nil
}

func (s *billingService) reconcile(ctx context.Context, sub *payments.Subscription, userID, planHint string) (handled, error) {
	out, err := s.subscriptions.CreateOrUpdateSubscription(ctx, sub, userID, planHint)
	if err != nil {
		return handled{}, err
	}
	if out.Skipped {
		h := skipped("subscription is canceled")
		h.userID = userID
		h.subscriptionID = sub.ID
		return h, nil
	}
	return handled{
		userID:         userID,
		subscriptionID: sub.ID,
		planID:         string(out.UserPlanID),
		outcome:        models.BillingOutcomeApplied,
		details: map[string]interface{}{
			"status":     sub.Status,
			"created":    out.Created,
			"usageReset": out.UsageReset,
		},
	}, nil
}

// lookupStripePlan resolves the plan a customer is currently paying for.
// A nil customer means Stripe has no customer with that email; a nil
// subscription means the customer has no active subscription.
func (s *billingService) lookupStripePlan(ctx context.Context, email string) (*payments.Customer, *payments.Subscription, error) {
	customer, err := s.gateway.FindCustomerByEmail(ctx, email)
	if errors.Is(err, payments.ErrCustomerNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrStripeClient, err)
	}
	sub, err := s.gateway.GetActiveSubscription(ctx, customer.ID)
	if errors.Is(err, payments.ErrNoActiveSubscription) {
		return customer, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrStripeClient, err)
	}
	return customer, sub, nil
}

func (s *billingService) planUpdate(planID plans.PlanID, customerID string) *PlanFieldsUpdate {
	return &PlanFieldsUpdate{
		Plan:             string(planID),
		PlanID:           string(planID),
		CreditsTotal:     s.catalog.CreditsForPlan(planID),
		CreditsUsed:      0,
		StripeCustomerID: customerID,
	}
}

func (s *billingService) SyncSubscriptionClient(ctx context.Context, userID, email string) (*SyncResult, error) {
	if email == "" {
		return nil, ErrMissingEmail
	}
	if userID == "" {
		return nil, ErrMissingUserID
	}
	freeCredits := s.catalog.CreditsForPlan(plans.Free)

	customer, sub, err := s.lookupStripePlan(ctx, email)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return &SyncResult{
			Message: "No Stripe customer found. You may not have a paid subscription yet.",
			Plan:    string(plans.Free),
			Credits: freeCredits,
		}, nil
	}
	if sub == nil {
		return &SyncResult{
			Message:      "No active subscription found.",
			Plan:         string(plans.Free),
			Credits:      freeCredits,
			UpdateNeeded: s.planUpdate(plans.Free, ""),
		}, nil
	}

	planID := s.catalog.PlanForPriceID(sub.PriceID)
	return &SyncResult{
		Message:            "Subscription found successfully",
		Plan:               string(planID),
		Credits:            s.catalog.CreditsForPlan(planID),
		SubscriptionStatus: sub.Status,
		UpdateNeeded:       s.planUpdate(planID, customer.ID),
	}, nil
}

func (s *billingService) SyncSubscription(ctx context.Context, userID, email string) (*SyncResult, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}
	if email == "" {
		return nil, ErrMissingEmail
	}

	customer, sub, err := s.lookupStripePlan(ctx, email)
	if err != nil {
		return nil, err
	}

	planID := plans.Free
	customerID := ""
	result := &SyncResult{}
	switch {
	case customer == nil:
		result.Message = "No Stripe customer found. Set to Free plan."
	case sub == nil:
		customerID = customer.ID
		result.Message = "No active subscription found. Set to Free plan."
	default:
		customerID = customer.ID
		planID = s.catalog.PlanForPriceID(sub.PriceID)
		result.Message = "Subscription synced successfully"
		result.SubscriptionStatus = sub.Status
	}

	reset, err := s.syncResetsUsage(ctx, userID, planID)
	if err != nil {
		return nil, err
	}
	if err := s.subscriptions.ApplyPlanToUser(ctx, userID, planID, PlanUpdate{
		ResetUsage:       reset,
		StripeCustomerID: customerID,
	}); err != nil {
		return nil, err
	}
	result.Plan = string(planID)
	result.Credits = s.catalog.CreditsForPlan(planID)
	return result, nil
}

// syncResetsUsage resets usage on a sync only when the sync moves the user
// to another plan, unless the policy resets on every application.
func (s *billingService) syncResetsUsage(ctx context.Context, userID string, planID plans.PlanID) (bool, error) {
	if s.resetPolicy == config.CreditsResetAlways {
		return true, nil
	}
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, db.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("load user %s: %w", userID, err)
	}
	current := user.PlanID
	if current == "" {
		current = user.Plan
	}
	return s.catalog.Normalize(current) != planID, nil
}

func (s *billingService) CreateCheckoutSession(ctx context.Context, userID, email, planID string) (*payments.Session, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}
	if !s.catalog.IsKnown(planID) {
		return nil, fmt.Errorf("%w: plan '%s'", ErrPlanNotFound, planID)
	}
	plan := s.catalog.Normalize(planID)
	priceID, ok := s.catalog.PriceIDForPlan(plan)
	if !ok {
		return nil, fmt.Errorf("%w: no price configured for plan '%s'", ErrPlanNotFound, plan)
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, payments.CheckoutParams{
		UserID:     userID,
		Email:      email,
		PlanID:     string(plan),
		PriceID:    priceID,
		SuccessURL: s.clientURL + "/auth/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  s.clientURL + "/pricing?canceled=true",
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStripeClient, err)
	}
	s.logger.Info("Checkout session created",
		zap.String("user_id", userID),
		zap.String("plan", string(plan)),
		zap.String("session_id", session.ID))
	return session, nil
}

func (s *billingService) CreatePortalSession(ctx context.Context, userID string) (*payments.Session, error) {
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", userID, err)
	}
	if user.StripeCustomerID == "" {
		return nil, fmt.Errorf("%w for user %s", ErrUserStripeNotLinked, userID)
	}

	session, err := s.gateway.CreatePortalSession(ctx, user.StripeCustomerID, s.clientURL+"/account")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStripeClient, err)
	}
	return session, nil
}
