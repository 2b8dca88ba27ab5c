package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"jamai-backend-go/internal/config"
	"jamai-backend-go/internal/db"
	"jamai-backend-go/internal/models"
	"jamai-backend-go/internal/payments"
	"jamai-backend-go/internal/plans"
)

var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrMissingUserID        = errors.New("user id is required")
	// ErrSubscriptionCanceled is returned for lifecycle changes addressed to a
	// record that was already canceled. Canceled is terminal.
	ErrSubscriptionCanceled = errors.New("subscription is canceled")
)

// PlanUpdate carries the optional parts of a plan application.
type PlanUpdate struct {
	ResetUsage       bool
	StripeCustomerID string
}

// SubscriptionOutcome describes what CreateOrUpdateSubscription changed.
type SubscriptionOutcome struct {
	PlanID      plans.PlanID
	UserPlanID  plans.PlanID // plan written to the user; free when the status is not entitled
	Created     bool
	UsageReset  bool
	PlanChanged bool
	Skipped     bool // the stored record is canceled; nothing was written
}

type subscriptionService struct {
	subs        db.SubscriptionRepository
	users       db.UserRepository
	catalog     *plans.Catalog
	referrals   ReferralService
	notifier    Notifier
	resetPolicy string
	logger      *zap.Logger
	now         func() time.Time
}

// NewSubscriptionService creates a SubscriptionService. resetPolicy is one of
// config.CreditsResetPeriod or config.CreditsResetAlways.
func NewSubscriptionService(
	subs db.SubscriptionRepository,
	users db.UserRepository,
	catalog *plans.Catalog,
	referrals ReferralService,
	notifier Notifier,
	resetPolicy string,
	logger *zap.Logger,
) SubscriptionService {
	return &subscriptionService{
		subs:        subs,
		users:       users,
		catalog:     catalog,
		referrals:   referrals,
		notifier:    notifier,
		resetPolicy: resetPolicy,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *subscriptionService) UpsertSubscription(ctx context.Context, sub *models.Subscription) (bool, error) {
	existing, err := s.lookup(ctx, sub.StripeSubscriptionID)
	if err != nil {
		return false, err
	}
	return s.upsert(ctx, sub, existing)
}

// lookup returns the stored record or nil when there is none.
func (s *subscriptionService) lookup(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error) {
	existing, err := s.subs.GetByStripeID(ctx, stripeSubscriptionID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup subscription %s: %w", stripeSubscriptionID, err)
	}
	return existing, nil
}

func (s *subscriptionService) upsert(ctx context.Context, sub *models.Subscription, existing *models.Subscription) (bool, error) {
	now := s.now()
	sub.UpdatedAt = now

	if existing == nil {
		sub.CreatedAt = now
		err := s.subs.Create(ctx, sub)
		if err == nil {
			s.logger.Info("Subscription record created",
				zap.String("subscription_id", sub.StripeSubscriptionID),
				zap.String("user_id", sub.UserID))
			return true, nil
		}
		if !errors.Is(err, db.ErrAlreadyExists) {
			return false, fmt.Errorf("create subscription %s: %w", sub.StripeSubscriptionID, err)
		}
		// A concurrent delivery inserted it first; fall through to an update.
		existing, err = s.subs.GetByStripeID(ctx, sub.StripeSubscriptionID)
		if err != nil {
			return false, fmt.Errorf("lookup subscription %s after conflict: %w", sub.StripeSubscriptionID, err)
		}
	}

	sub.ID = existing.ID
	sub.CreatedAt = existing.CreatedAt
	if err := s.subs.Update(ctx, sub); err != nil {
		return false, fmt.Errorf("update subscription %s: %w", sub.StripeSubscriptionID, err)
	}
	s.logger.Info("Subscription record updated",
		zap.String("subscription_id", sub.StripeSubscriptionID),
		zap.String("status", sub.Status))
	return false, nil
}

func (s *subscriptionService) ApplyPlanToUser(ctx context.Context, userID string, planID plans.PlanID, update PlanUpdate) error {
	if userID == "" {
		return ErrMissingUserID
	}
	plan := s.catalog.Normalize(string(planID))
	fields := db.PlanFields{
		Plan:             string(plan),
		CreditsTotal:     s.catalog.CreditsForPlan(plan),
		ResetUsage:       update.ResetUsage,
		StripeCustomerID: update.StripeCustomerID,
		UpdatedAt:        s.now(),
	}
	if err := s.users.ApplyPlan(ctx, userID, fields); err != nil {
		return fmt.Errorf("apply plan %s to user %s: %w", plan, userID, err)
	}
	s.logger.Info("Plan applied to user",
		zap.String("user_id", userID),
		zap.String("plan", string(plan)),
		zap.Int64("credits_total", fields.CreditsTotal),
		zap.Bool("usage_reset", fields.ResetUsage))
	return nil
}

// resolvePlan prefers a recognised hint from metadata over the price id.
func (s *subscriptionService) resolvePlan(priceID, planHint string) plans.PlanID {
	if planHint != "" && s.catalog.IsKnown(planHint) {
		return s.catalog.Normalize(planHint)
	}
	return s.catalog.PlanForPriceID(priceID)
}

// grantsPlan reports whether a subscription in status keeps its plan on the
// user. past_due is still in dunning and keeps it.
func grantsPlan(status string) bool {
	return plans.IsEntitled(status) || status == models.SubscriptionStatusPastDue
}

func (s *subscriptionService) CreateOrUpdateSubscription(ctx context.Context, sub *payments.Subscription, userID, planHint string) (*SubscriptionOutcome, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}
	planID := s.resolvePlan(sub.PriceID, planHint)

	existing, err := s.lookup(ctx, sub.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Status == models.SubscriptionStatusCanceled {
		s.logger.Warn("Ignoring update for canceled subscription",
			zap.String("subscription_id", sub.ID),
			zap.String("user_id", userID),
			zap.String("status", sub.Status))
		return &SubscriptionOutcome{PlanID: planID, UserPlanID: plans.Free, Skipped: true}, nil
	}

	record := &models.Subscription{
		UserID:               userID,
		StripeCustomerID:     sub.CustomerID,
		StripeSubscriptionID: sub.ID,
		StripePriceID:        sub.PriceID,
		Status:               sub.Status,
		PlanID:               string(planID),
		CurrentPeriodStart:   sub.CurrentPeriodStart,
		CurrentPeriodEnd:     sub.CurrentPeriodEnd,
		CancelAtPeriodEnd:    sub.CancelAtPeriodEnd,
	}
	created, err := s.upsert(ctx, record, existing)
	if err != nil {
		return nil, err
	}

	userPlan := planID
	if !grantsPlan(sub.Status) {
		userPlan = plans.Free
	}

	out := &SubscriptionOutcome{PlanID: planID, UserPlanID: userPlan, Created: created}
	out.PlanChanged = existing == nil || s.catalog.Normalize(existing.PlanID) != planID ||
		grantsPlan(existing.Status) != grantsPlan(sub.Status)
	out.UsageReset = s.shouldResetUsage(existing, record, out.PlanChanged)

	if err := s.ApplyPlanToUser(ctx, userID, userPlan, PlanUpdate{
		ResetUsage:       out.UsageReset,
		StripeCustomerID: sub.CustomerID,
	}); err != nil {
		return nil, err
	}

	// Referral bonus is paid when a paid subscription first becomes
	// entitled: a new record, or one leaving incomplete or unpaid. Renewals
	// and tier changes of an entitled record never settle.
	activated := existing == nil || !grantsPlan(existing.Status)
	if plans.IsPaid(userPlan) && activated && s.referrals != nil {
		s.referrals.SettleReferralCredits(ctx, userID)
	}

	if out.PlanChanged {
		s.notify(ctx, models.BillingNotification{
			Type:           models.NotificationPlanChanged,
			UserID:         userID,
			PlanID:         string(userPlan),
			SubscriptionID: sub.ID,
			Credits:        s.catalog.CreditsForPlan(userPlan),
		})
	}
	return out, nil
}

func (s *subscriptionService) shouldResetUsage(existing, next *models.Subscription, planChanged bool) bool {
	if s.resetPolicy == config.CreditsResetAlways || existing == nil || planChanged {
		return true
	}
	return next.CurrentPeriodStart.After(existing.CurrentPeriodStart)
}

func (s *subscriptionService) CancelSubscription(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error) {
	existing, err := s.lookup(ctx, stripeSubscriptionID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("%w: %s", ErrSubscriptionNotFound, stripeSubscriptionID)
	}
	if existing.Status == models.SubscriptionStatusCanceled {
		return existing, fmt.Errorf("%w: %s", ErrSubscriptionCanceled, stripeSubscriptionID)
	}
	if err := s.subs.UpdateStatus(ctx, existing.ID, models.SubscriptionStatusCanceled, s.now()); err != nil {
		return nil, fmt.Errorf("cancel subscription %s: %w", stripeSubscriptionID, err)
	}
	existing.Status = models.SubscriptionStatusCanceled

	// Records written before userId was stored cannot be traced to a profile.
	if existing.UserID == "" {
		s.logger.Warn("Canceled subscription has no user id; profile left unchanged",
			zap.String("subscription_id", stripeSubscriptionID))
		return existing, nil
	}
	if err := s.ApplyPlanToUser(ctx, existing.UserID, plans.Free, PlanUpdate{ResetUsage: true}); err != nil {
		return nil, err
	}
	s.notify(ctx, models.BillingNotification{
		Type:           models.NotificationSubscriptionCanceled,
		UserID:         existing.UserID,
		PlanID:         string(plans.Free),
		SubscriptionID: stripeSubscriptionID,
		Credits:        s.catalog.CreditsForPlan(plans.Free),
	})
	return existing, nil
}

func (s *subscriptionService) MarkPastDue(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error) {
	existing, err := s.lookup(ctx, stripeSubscriptionID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("%w: %s", ErrSubscriptionNotFound, stripeSubscriptionID)
	}
	if existing.Status == models.SubscriptionStatusCanceled {
		return existing, fmt.Errorf("%w: %s", ErrSubscriptionCanceled, stripeSubscriptionID)
	}
	if err := s.subs.UpdateStatus(ctx, existing.ID, models.SubscriptionStatusPastDue, s.now()); err != nil {
		return nil, fmt.Errorf("mark subscription %s past due: %w", stripeSubscriptionID, err)
	}
	existing.Status = models.SubscriptionStatusPastDue
	s.notify(ctx, models.BillingNotification{
		Type:           models.NotificationPaymentFailed,
		UserID:         existing.UserID,
		PlanID:         existing.PlanID,
		SubscriptionID: stripeSubscriptionID,
	})
	return existing, nil
}

func (s *subscriptionService) notify(ctx context.Context, n models.BillingNotification) {
	if s.notifier == nil {
		return
	}
	n.ID = uuid.NewString()
	n.OccurredAt = s.now()
	s.notifier.Notify(ctx, n)
}
