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

const referralsCollection = "referrals"

// firestoreReferralRepository implements ReferralRepository using Firestore.
type firestoreReferralRepository struct {
	client *firestore.Client
}

// NewFirestoreReferralRepository creates a new instance of firestoreReferralRepository.
func NewFirestoreReferralRepository(client *firestore.Client) ReferralRepository {
	if client == nil {
		panic("Firestore client is not initialized for ReferralRepository")
	}
	return &firestoreReferralRepository{client: client}
}

func (r *firestoreReferralRepository) GetByReferrerID(ctx context.Context, referrerID string) (*models.Referral, error) {
	if referrerID == "" {
		return nil, errors.New("referrerID cannot be empty for GetByReferrerID operation")
	}
	return r.findOne(ctx, "referrerId", referrerID)
}

func (r *firestoreReferralRepository) GetByCode(ctx context.Context, code string) (*models.Referral, error) {
	if code == "" {
		return nil, errors.New("code cannot be empty for GetByCode operation")
	}
	return r.findOne(ctx, "referralCode", code)
}

// Create adds a referral aggregate with an auto-generated ID.
func (r *firestoreReferralRepository) Create(ctx context.Context, referral *models.Referral) (string, error) {
	docRef := r.client.Collection(referralsCollection).NewDoc()
	referral.ID = docRef.ID

	if _, err := docRef.Create(ctx, referral); err != nil {
		return "", fmt.Errorf("failed to create referral for referrer '%s': %w", referral.ReferrerID, err)
	}
	return docRef.ID, nil
}

// IncrementTotalReferrals bumps totalReferrals by one with a server-side increment.
func (r *firestoreReferralRepository) IncrementTotalReferrals(ctx context.Context, referralID string) error {
	_, err := r.client.Collection(referralsCollection).Doc(referralID).Update(ctx, []firestore.Update{
		{Path: "totalReferrals", Value: firestore.Increment(1)},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("referral '%s' not found: %w", referralID, ErrNotFound)
		}
		return fmt.Errorf("failed to increment totalReferrals on referral '%s': %w", referralID, err)
	}
	return nil
}

// RecordSuccessfulReferral bumps successfulReferrals by one and
// totalCreditsEarned by creditsEarned on the referrer's aggregate.
func (r *firestoreReferralRepository) RecordSuccessfulReferral(ctx context.Context, referrerID string, creditsEarned int64) error {
	referral, err := r.GetByReferrerID(ctx, referrerID)
	if err != nil {
		return err
	}
	_, err = r.client.Collection(referralsCollection).Doc(referral.ID).Update(ctx, []firestore.Update{
		{Path: "successfulReferrals", Value: firestore.Increment(1)},
		{Path: "totalCreditsEarned", Value: firestore.Increment(creditsEarned)},
	})
	if err != nil {
		return fmt.Errorf("failed to record successful referral for referrer '%s': %w", referrerID, err)
	}
	return nil
}

func (r *firestoreReferralRepository) findOne(ctx context.Context, field, value string) (*models.Referral, error) {
	iter := r.client.Collection(referralsCollection).Where(field, "==", value).Limit(1).Documents(ctx)
	defer iter.Stop()

	docSnap, err := iter.Next()
	if err == iterator.Done {
		return nil, fmt.Errorf("referral with %s '%s' not found: %w", field, value, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query referral by %s: %w", field, err)
	}

	var referral models.Referral
	if err := docSnap.DataTo(&referral); err != nil {
		return nil, fmt.Errorf("failed to decode referral '%s': %w", docSnap.Ref.ID, err)
	}
	referral.ID = docSnap.Ref.ID
	return &referral, nil
}
