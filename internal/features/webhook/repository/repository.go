package repository

import "context"

// EventStore is the dedup gate shared by all webhook handlers. Providers
// redeliver aggressively; a unique (provider, event_id) insert decides
// exactly once who processes a delivery.
type EventStore interface {
	// InsertEvent records a delivery. Returns false when the event was
	// already recorded, meaning a previous delivery won the insert.
	InsertEvent(ctx context.Context, provider, eventID string) (bool, error)
	// DeleteEvent releases a recorded delivery after its processing failed,
	// so the provider's next redelivery gets another attempt.
	DeleteEvent(ctx context.Context, provider, eventID string) error
}
