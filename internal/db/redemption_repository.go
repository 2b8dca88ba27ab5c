package db

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"jamai-backend-go/internal/models"
)

const redemptionsCollection = "referral_redemptions"

// firestoreRedemptionRepository implements RedemptionRepository using Firestore.
type firestoreRedemptionRepository struct {
	client *firestore.Client
}

// NewFirestoreRedemptionRepository creates a new instance of firestoreRedemptionRepository.
func NewFirestoreRedemptionRepository(client *firestore.Client) RedemptionRepository {
	if client == nil {
		panic("Firestore client is not initialized for RedemptionRepository")
	}
	return &firestoreRedemptionRepository{client: client}
}

// GetByReferredUserID returns any redemption made by the user, awarded or not.
func (r *firestoreRedemptionRepository) GetByReferredUserID(ctx context.Context, referredUserID string) (*models.ReferralRedemption, error) {
	if referredUserID == "" {
		return nil, errors.New("referredUserID cannot be empty for GetByReferredUserID operation")
	}
	q := r.client.Collection(redemptionsCollection).Where("referredUserId", "==", referredUserID)
	return r.first(ctx, q, referredUserID)
}

// GetPendingByReferredUserID returns the user's redemption that has not been awarded yet.
func (r *firestoreRedemptionRepository) GetPendingByReferredUserID(ctx context.Context, referredUserID string) (*models.ReferralRedemption, error) {
	if referredUserID == "" {
		return nil, errors.New("referredUserID cannot be empty for GetPendingByReferredUserID operation")
	}
	q := r.client.Collection(redemptionsCollection).
		Where("referredUserId", "==", referredUserID).
		Where("creditsAwarded", "==", false)
	return r.first(ctx, q, referredUserID)
}

// Create adds a redemption with an auto-generated ID.
func (r *firestoreRedemptionRepository) Create(ctx context.Context, redemption *models.ReferralRedemption) (string, error) {
	docRef := r.client.Collection(redemptionsCollection).NewDoc()
	redemption.ID = docRef.ID

	if _, err := docRef.Create(ctx, redemption); err != nil {
		return "", fmt.Errorf("failed to create redemption for user '%s': %w", redemption.ReferredUserID, err)
	}
	return docRef.ID, nil
}

// ClaimAward performs the false -> true transition of creditsAwarded inside a
// transaction so concurrent settlements award at most once.
func (r *firestoreRedemptionRepository) ClaimAward(ctx context.Context, redemptionID, awardedAt string) (bool, error) {
	ref := r.client.Collection(redemptionsCollection).Doc(redemptionID)
	claimed := false

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		claimed = false
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return fmt.Errorf("redemption '%s' not found: %w", redemptionID, ErrNotFound)
			}
			return err
		}
		var redemption models.ReferralRedemption
		if err := snap.DataTo(&redemption); err != nil {
			return fmt.Errorf("failed to decode redemption '%s': %w", redemptionID, err)
		}
		if redemption.CreditsAwarded {
			return nil
		}
		claimed = true
		return tx.Update(ref, []firestore.Update{
			{Path: "creditsAwarded", Value: true},
			{Path: "status", Value: models.RedemptionStatusCompleted},
			{Path: "creditsAwardedAt", Value: awardedAt},
			{Path: "subscriptionStartedAt", Value: awardedAt},
		})
	})
	if err != nil {
		return false, fmt.Errorf("failed to claim award for redemption '%s': %w", redemptionID, err)
	}
	return claimed, nil
}

func (r *firestoreRedemptionRepository) first(ctx context.Context, q firestore.Query, referredUserID string) (*models.ReferralRedemption, error) {
	iter := q.Limit(1).Documents(ctx)
	defer iter.Stop()

	docSnap, err := iter.Next()
	if err == iterator.Done {
		return nil, fmt.Errorf("redemption for user '%s' not found: %w", referredUserID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query redemptions for user '%s': %w", referredUserID, err)
	}

	var redemption models.ReferralRedemption
	if err := docSnap.DataTo(&redemption); err != nil {
		return nil, fmt.Errorf("failed to decode redemption '%s': %w", docSnap.Ref.ID, err)
	}
	redemption.ID = docSnap.Ref.ID
	return &redemption, nil
}
