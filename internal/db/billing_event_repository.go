package db

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"

	"jamai-backend-go/internal/models"
)

const billingEventsCollection = "billing_events"

// firestoreBillingEventRepository implements BillingEventRepository using Firestore.
type firestoreBillingEventRepository struct {
	client *firestore.Client
}

// NewFirestoreBillingEventRepository creates a new instance of firestoreBillingEventRepository.
func NewFirestoreBillingEventRepository(client *firestore.Client) BillingEventRepository {
	if client == nil {
		panic("Firestore client is not initialized for BillingEventRepository")
	}
	return &firestoreBillingEventRepository{client: client}
}

// Create stores the entry under the Stripe event ID so a redelivered event
// overwrites its own entry instead of adding a second one.
// ProcessedAt is set by Firestore via the serverTimestamp tag.
func (r *firestoreBillingEventRepository) Create(ctx context.Context, event models.BillingEvent) error {
	docRef := r.client.Collection(billingEventsCollection).NewDoc()
	if event.EventID != "" {
		docRef = r.client.Collection(billingEventsCollection).Doc(event.EventID)
	}
	event.ID = docRef.ID

	if _, err := docRef.Set(ctx, event); err != nil {
		return fmt.Errorf("failed to store billing event '%s': %w", event.EventID, err)
	}
	return nil
}
