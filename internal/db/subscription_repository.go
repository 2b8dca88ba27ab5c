package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"jamai-backend-go/internal/models"
)

const subscriptionsCollection = "subscriptions"

// firestoreSubscriptionRepository implements SubscriptionRepository using Firestore.
type firestoreSubscriptionRepository struct {
	client *firestore.Client
}

// NewFirestoreSubscriptionRepository creates a new instance of firestoreSubscriptionRepository.
func NewFirestoreSubscriptionRepository(client *firestore.Client) SubscriptionRepository {
	if client == nil {
		panic("Firestore client is not initialized for SubscriptionRepository")
	}
	return &firestoreSubscriptionRepository{client: client}
}

// GetByStripeID finds the record by its stripeSubscriptionId field. Records
// written by the web app live under auto-generated document IDs, so the field
// query is used instead of a direct document read.
func (r *firestoreSubscriptionRepository) GetByStripeID(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error) {
	if stripeSubscriptionID == "" {
		return nil, errors.New("stripeSubscriptionID cannot be empty for GetByStripeID operation")
	}

	iter := r.client.Collection(subscriptionsCollection).
		Where("stripeSubscriptionId", "==", stripeSubscriptionID).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	docSnap, err := iter.Next()
	if err == iterator.Done {
		return nil, fmt.Errorf("subscription '%s' not found: %w", stripeSubscriptionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query subscription '%s': %w", stripeSubscriptionID, err)
	}

	var sub models.Subscription
	if err := docSnap.DataTo(&sub); err != nil {
		return nil, fmt.Errorf("failed to decode subscription '%s': %w", stripeSubscriptionID, err)
	}
	sub.ID = docSnap.Ref.ID
	return &sub, nil
}

// Create inserts a new record keyed by the Stripe subscription ID.
func (r *firestoreSubscriptionRepository) Create(ctx context.Context, sub *models.Subscription) error {
	if sub.StripeSubscriptionID == "" {
		return errors.New("stripeSubscriptionId cannot be empty for Create operation")
	}
	sub.ID = sub.StripeSubscriptionID

	_, err := r.client.Collection(subscriptionsCollection).Doc(sub.ID).Create(ctx, sub)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return fmt.Errorf("subscription '%s': %w", sub.ID, ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create subscription '%s': %w", sub.ID, err)
	}
	return nil
}

// Update merges the provider-sourced fields into an existing record.
// createdAt is not part of the written map and keeps its original value.
func (r *firestoreSubscriptionRepository) Update(ctx context.Context, sub *models.Subscription) error {
	if sub.ID == "" {
		return errors.New("subscription document ID cannot be empty for Update operation")
	}
	data := map[string]interface{}{
		"userId":               sub.UserID,
		"stripeCustomerId":     sub.StripeCustomerID,
		"stripeSubscriptionId": sub.StripeSubscriptionID,
		"stripePriceId":        sub.StripePriceID,
		"status":               sub.Status,
		"planId":               sub.PlanID,
		"currentPeriodStart":   sub.CurrentPeriodStart,
		"currentPeriodEnd":     sub.CurrentPeriodEnd,
		"cancelAtPeriodEnd":    sub.CancelAtPeriodEnd,
		"updatedAt":            sub.UpdatedAt,
	}
	_, err := r.client.Collection(subscriptionsCollection).Doc(sub.ID).Set(ctx, data, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to update subscription '%s': %w", sub.ID, err)
	}
	return nil
}

// UpdateStatus changes only status and updatedAt.
func (r *firestoreSubscriptionRepository) UpdateStatus(ctx context.Context, docID, subStatus string, at time.Time) error {
	_, err := r.client.Collection(subscriptionsCollection).Doc(docID).Update(ctx, []firestore.Update{
		{Path: "status", Value: subStatus},
		{Path: "updatedAt", Value: at},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("subscription document '%s' not found: %w", docID, ErrNotFound)
		}
		return fmt.Errorf("failed to set status '%s' on subscription '%s': %w", subStatus, docID, err)
	}
	return nil
}
