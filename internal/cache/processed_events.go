package cache

import (
	"context"
	"time"
)

const processedEventPrefix = "stripe:event:"

// ProcessedEvents records Stripe event IDs that were fully applied so that a
// redelivery of the same event can be acknowledged without re-applying it.
type ProcessedEvents struct {
	cache Cache
	ttl   time.Duration
}

// NewProcessedEvents keeps markers in c for ttl.
func NewProcessedEvents(c Cache, ttl time.Duration) *ProcessedEvents {
	return &ProcessedEvents{cache: c, ttl: ttl}
}

// IsProcessed reports whether eventID was marked and has not expired.
func (p *ProcessedEvents) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	val, err := p.cache.Get(ctx, processedEventPrefix+eventID)
	if err != nil {
		return false, err
	}
	return val != "", nil
}

// MarkProcessed stores the marker for eventID.
func (p *ProcessedEvents) MarkProcessed(ctx context.Context, eventID string) error {
	return p.cache.Set(ctx, processedEventPrefix+eventID, time.Now().UTC().Format(time.RFC3339), p.ttl)
}
