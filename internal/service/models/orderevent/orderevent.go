package orderevent

import (
	"sort"
	"time"
)

// EventType names what happened. One event is appended per logical change, so
// a single command may produce several.
type EventType string

const (
	TypeOrderPlaced     EventType = "order.placed"
	TypeOrderConfirmed  EventType = "order.confirmed"
	TypeOrderShipped    EventType = "order.shipped"
	TypeOrderDelivered  EventType = "order.delivered"
	TypeOrderCompleted  EventType = "order.completed"
	TypeOrderCancelled  EventType = "order.cancelled"
	TypeItemsCancelled  EventType = "order.items_cancelled"
	TypeItemsRefunded   EventType = "order.items_refunded"
	TypeClaimRequested  EventType = "claim.requested"
	TypeClaimApproved   EventType = "claim.approved"
	TypeClaimInProgress EventType = "claim.in_progress"
	TypeClaimCompleted  EventType = "claim.completed"
	TypeClaimRejected   EventType = "claim.rejected"
	TypeClaimCancelled  EventType = "claim.cancelled"
	TypeMileageRefunded EventType = "mileage.refunded"
	TypeMileageSpent    EventType = "mileage.spent"
)

// Source is the aggregate a status change originated from.
type Source string

const (
	SourceOrder Source = "ORDER"
	SourceClaim Source = "CLAIM"
)

// ActorType identifies who triggered the change.
type ActorType string

const (
	ActorSystem ActorType = "SYSTEM"
	ActorAdmin  ActorType = "ADMIN"
	ActorBuyer  ActorType = "BUYER"
)

// Event is one append-only audit record of a status change on an order or one
// of its claims. ID is zero until the persistence layer assigns it. Once
// persisted an event is never mutated or deleted.
type Event struct {
	ID             int64             `json:"id"`
	OrderID        string            `json:"orderId"`
	EventType      EventType         `json:"eventType"`
	EventSource    Source            `json:"eventSource"`
	SourceID       string            `json:"sourceId,omitempty"`
	PreviousStatus string            `json:"previousStatus,omitempty"`
	CurrentStatus  string            `json:"currentStatus,omitempty"`
	ActorType      ActorType         `json:"actorType"`
	ActorID        string            `json:"actorId,omitempty"`
	Description    string            `json:"description,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
}

// SortTimeline orders events by (createdAt, id). Events written in one unit of
// work legitimately share a timestamp; the insertion id breaks the tie, so the
// causal order of a batch survives the sort.
func SortTimeline(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].CreatedAt.Equal(events[j].CreatedAt) {
			return events[i].CreatedAt.Before(events[j].CreatedAt)
		}
		return events[i].ID < events[j].ID
	})
}
