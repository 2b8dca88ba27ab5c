package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"jamai-backend-go/internal/models"
)

const usersCollection = "users"

var (
	// ErrNotFound is returned when a document or query match does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrAlreadyExists is returned when a create collides with an existing document.
	ErrAlreadyExists = errors.New("document already exists")
	// ErrPreconditionFailed is returned when a conditional write does not apply.
	ErrPreconditionFailed = errors.New("precondition failed")
)

// firestoreUserRepository implements the UserRepository interface using Firestore.
type firestoreUserRepository struct {
	client *firestore.Client
}

// NewFirestoreUserRepository creates a new instance of firestoreUserRepository.
func NewFirestoreUserRepository(client *firestore.Client) UserRepository {
	if client == nil {
		panic("Firestore client is not initialized for UserRepository")
	}
	return &firestoreUserRepository{client: client}
}

// GetByID retrieves a user document from Firestore by its ID (Firebase Auth UID).
func (r *firestoreUserRepository) GetByID(ctx context.Context, userID string) (*models.User, error) {
	if userID == "" {
		return nil, errors.New("userID cannot be empty for GetByID operation")
	}
	docSnap, err := r.client.Collection(usersCollection).Doc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("user with ID '%s' not found: %w", userID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user with ID '%s': %w", userID, err)
	}
	return decodeUser(docSnap)
}

// ApplyPlan writes the plan fields with MergeAll; fields outside the map are
// left untouched and a missing profile is created.
func (r *firestoreUserRepository) ApplyPlan(ctx context.Context, userID string, fields PlanFields) error {
	if userID == "" {
		return errors.New("userID cannot be empty for ApplyPlan operation")
	}
	data := map[string]interface{}{
		"plan":         fields.Plan,
		"planId":       fields.Plan,
		"creditsTotal": fields.CreditsTotal,
		"updatedAt":    fields.UpdatedAt,
	}
	if fields.ResetUsage {
		data["creditsUsed"] = 0
	}
	if fields.StripeCustomerID != "" {
		data["stripeCustomerId"] = fields.StripeCustomerID
	}

	_, err := r.client.Collection(usersCollection).Doc(userID).Set(ctx, data, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to apply plan '%s' to user '%s': %w", fields.Plan, userID, err)
	}
	return nil
}

// AddCredits runs a read-modify-write on the user's credits balance inside a
// single-document transaction.
func (r *firestoreUserRepository) AddCredits(ctx context.Context, userID string, amount int64) (int64, error) {
	ref := r.client.Collection(usersCollection).Doc(userID)
	var balance int64

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return fmt.Errorf("user with ID '%s' not found: %w", userID, ErrNotFound)
			}
			return err
		}
		user, err := decodeUser(snap)
		if err != nil {
			return err
		}
		balance = user.CreditBalance() + amount
		return tx.Set(ref, map[string]interface{}{
			"credits":   balance,
			"updatedAt": time.Now().UTC(),
		}, firestore.MergeAll)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to add %d credits to user '%s': %w", amount, userID, err)
	}
	return balance, nil
}

// ConsumeCredits increments creditsUsed when the remaining allotment covers amount.
func (r *firestoreUserRepository) ConsumeCredits(ctx context.Context, userID string, amount int64) (*models.User, error) {
	ref := r.client.Collection(usersCollection).Doc(userID)
	var updated *models.User

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return fmt.Errorf("user with ID '%s' not found: %w", userID, ErrNotFound)
			}
			return err
		}
		user, err := decodeUser(snap)
		if err != nil {
			return err
		}
		if user.AvailableCredits() < amount {
			return fmt.Errorf("%w: user '%s' has %d credits left, %d requested", ErrPreconditionFailed, userID, user.AvailableCredits(), amount)
		}
		user.CreditsUsed += amount
		user.UpdatedAt = time.Now().UTC()
		updated = user
		return tx.Update(ref, []firestore.Update{
			{Path: "creditsUsed", Value: firestore.Increment(amount)},
			{Path: "updatedAt", Value: user.UpdatedAt},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to consume credits for user '%s': %w", userID, err)
	}
	return updated, nil
}

func decodeUser(docSnap *firestore.DocumentSnapshot) (*models.User, error) {
	var user models.User
	if err := docSnap.DataTo(&user); err != nil {
		return nil, fmt.Errorf("failed to decode user data for ID '%s': %w", docSnap.Ref.ID, err)
	}
	user.ID = docSnap.Ref.ID
	return &user, nil
}
