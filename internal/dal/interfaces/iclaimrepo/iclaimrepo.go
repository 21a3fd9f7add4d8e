package iclaimrepo

import (
	"context"

	"github.com/modu-commerce/order-core/internal/service/models/claim"
)

// IClaimRepository is the persistence port for the claim aggregate.
type IClaimRepository interface {
	// GetByID loads a claim. Returns claim.ErrNotFound for an unknown id.
	GetByID(ctx context.Context, id string) (*claim.Claim, error)

	// ListByOrderID returns all claims, open and terminal, against an order.
	ListByOrderID(ctx context.Context, orderID string) ([]claim.Claim, error)

	// Insert persists a new claim.
	Insert(ctx context.Context, c *claim.Claim) error

	// Update persists the claim with an optimistic version check; a stale
	// version fails with repoerrs.ErrConcurrentModification. On success the
	// claim's Version is incremented.
	Update(ctx context.Context, c *claim.Claim) error
}
