package imileagerepo

import (
	"context"

	"github.com/modu-commerce/order-core/internal/service/models/mileage"
)

// IMileageRepository is the persistence port for the mileage ledger.
type IMileageRepository interface {
	// ListLotsByBuyerID returns all of a buyer's lots, including exhausted,
	// expired and inactive ones; historical refund computation needs them.
	ListLotsByBuyerID(ctx context.Context, buyerID string) ([]*mileage.Lot, error)

	// GetSpendByOrderID returns the ORDER spend transaction for an order, or
	// (nil, nil) when the order spent no mileage.
	GetSpendByOrderID(ctx context.Context, orderID string) (*mileage.Transaction, error)

	// InsertLot persists a newly issued lot.
	InsertLot(ctx context.Context, lot *mileage.Lot) error

	// UpdateLots persists usedAmount changes on the given lots with
	// per-lot optimistic version checks.
	UpdateLots(ctx context.Context, lots []*mileage.Lot) error

	// InsertTransaction appends an immutable ledger transaction.
	InsertTransaction(ctx context.Context, tx *mileage.Transaction) error
}
