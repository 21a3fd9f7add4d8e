package orderevent_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/modu-commerce/order-core/internal/service/models/orderevent"
)

func TestSortTimelineOrdersByCreatedAtThenID(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Minute)

	events := []orderevent.Event{
		{ID: 4, OrderID: "order-1", EventType: orderevent.TypeClaimApproved, CreatedAt: t1},
		{ID: 1, OrderID: "order-1", EventType: orderevent.TypeOrderConfirmed, CreatedAt: t0},
		// Batch write: same timestamp, id breaks the tie.
		{ID: 3, OrderID: "order-1", EventType: orderevent.TypeClaimRequested, CreatedAt: t1},
		{ID: 5, OrderID: "order-1", EventType: orderevent.TypeClaimCompleted, CreatedAt: t1},
	}

	orderevent.SortTimeline(events)

	got := make([]orderevent.EventType, 0, len(events))
	for _, e := range events {
		got = append(got, e.EventType)
	}

	assert.Equal(t, []orderevent.EventType{
		orderevent.TypeOrderConfirmed,
		orderevent.TypeClaimRequested,
		orderevent.TypeClaimApproved,
		orderevent.TypeClaimCompleted,
	}, got)
}
