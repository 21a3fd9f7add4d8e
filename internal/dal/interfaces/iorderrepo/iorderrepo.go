package iorderrepo

import (
	"context"

	"github.com/modu-commerce/order-core/internal/service/models/order"
)

// IOrderRepository is the persistence port for the order aggregate.
type IOrderRepository interface {
	// GetByID loads an order with its items. Returns order.ErrNotFound for an
	// unknown id.
	GetByID(ctx context.Context, id string) (*order.Order, error)

	// Insert persists a new order and its items.
	Insert(ctx context.Context, o *order.Order) error

	// Update persists the order and its items with an optimistic version
	// check; a stale version fails with repoerrs.ErrConcurrentModification.
	// On success the aggregate's Version is incremented.
	Update(ctx context.Context, o *order.Order) error
}
