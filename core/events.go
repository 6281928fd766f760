package core

import (
	"context"
	"time"
)

// Event types emitted once a mutation has been committed.
const (
	EventStructureDefined   = "fee_structure.defined"
	EventStructureCorrected = "fee_structure.corrected"
	EventFeesGenerated      = "fees.generated"
	EventPaymentRecorded    = "fee.payment_recorded"
	EventFeesMarkedOverdue  = "fees.overdue_marked"
	EventExpenseRecorded    = "expense.recorded"
)

type (
	// Event signals that a ledger mutation completed.
	Event struct {
		Type       string      `json:"type"`
		Key        string      `json:"key"` // id of the affected record; used for partitioning
		ActorID    string      `json:"actor_id,omitempty"`
		OccurredAt time.Time   `json:"occurred_at"`
		Data       interface{} `json:"data,omitempty"`
	}

	// EventPublisher delivers events to interested parties.
	// Delivery is best effort: callers log publish errors and never undo the mutation.
	EventPublisher interface {
		Publish(ctx context.Context, events ...Event) error
	}

	// Cache is a byte-oriented key/value cache with expiry.
	Cache interface {
		// Get returns ok=false on cache miss.
		Get(ctx context.Context, key string) (val []byte, ok bool, err error)
		Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
		Delete(ctx context.Context, keys ...string) error
	}
)

func NewEvent(typ, key, actorID string, data interface{}) Event {
	return Event{
		Type:       typ,
		Key:        key,
		ActorID:    actorID,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

// Notify publishes events, logging delivery failures instead of returning them.
func Notify(ctx context.Context, publisher EventPublisher, logger Logger, events ...Event) {
	if publisher == nil || len(events) == 0 {
		return
	}
	if err := publisher.Publish(ctx, events...); err != nil {
		logger.Error("publishing events: "+err.Error(), err, map[string]interface{}{"type": events[0].Type, "count": len(events)})
	}
}
