package ieventrepo

import (
	"context"

	"github.com/modu-commerce/order-core/internal/service/models/orderevent"
)

// IEventRepository is the append-only persistence port for the audit trail.
// There is no update or delete: events are facts.
type IEventRepository interface {
	// Append persists the events in order and returns them with their
	// assigned insertion ids.
	Append(ctx context.Context, events []orderevent.Event) ([]orderevent.Event, error)

	// ListTimeline returns every event for an order — order-sourced and
	// claim-sourced alike — sorted by (createdAt, id).
	ListTimeline(ctx context.Context, orderID string) ([]orderevent.Event, error)
}
