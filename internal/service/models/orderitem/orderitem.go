package orderitem

import (
	"errors"
	"fmt"
	"time"

	"github.com/modu-commerce/order-core/internal/service/models/money"
)

var (
	ErrInvalidQuantity          = errors.New("ordered quantity must be at least 1")
	ErrExceedsClaimableQuantity = errors.New("quantity exceeds claimable remainder")
)

// Status is the per-item status within an order.
type Status string

const (
	StatusActive           Status = "ACTIVE"
	StatusPartiallyClaimed Status = "PARTIALLY_CLAIMED"
	StatusFullyCancelled   Status = "FULLY_CANCELLED"
	StatusFullyRefunded    Status = "FULLY_REFUNDED"
)

// ProductSnapshot captures the product as it was sold. Catalog changes after
// order time never alter historical orders.
type ProductSnapshot struct {
	Name          string      `json:"name"`
	ImageURL      string      `json:"imageUrl"`
	Option        string      `json:"option"`
	BrandName     string      `json:"brandName"`
	SellerName    string      `json:"sellerName"`
	OriginalPrice money.Money `json:"originalPrice"`
}

// OrderItem is an item within an order. OrderedQuantity and TotalPrice are
// fixed at creation; only the claimed-quantity counters move afterwards, and
// only through ApplyCancellation/ApplyRefund.
type OrderItem struct {
	ID                string          `json:"id"`
	OrderID           string          `json:"orderId"`
	ProductID         string          `json:"productId"`
	ProductStockID    string          `json:"productStockId"`
	OrderedQuantity   int             `json:"orderedQuantity"`
	CancelledQuantity int             `json:"cancelledQuantity"`
	RefundedQuantity  int             `json:"refundedQuantity"`
	UnitPrice         money.Money     `json:"unitPrice"`
	TotalPrice        money.Money     `json:"totalPrice"`
	Status            Status          `json:"status"`
	Snapshot          ProductSnapshot `json:"snapshot"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// New creates an order item. TotalPrice is computed once as
// unitPrice * orderedQuantity and never recomputed.
func New(
	id, productID, productStockID string,
	orderedQuantity int,
	unitPrice money.Money,
	snapshot ProductSnapshot,
	now time.Time,
) (OrderItem, error) {
	if orderedQuantity < 1 {
		return OrderItem{}, fmt.Errorf("%w: got %d", ErrInvalidQuantity, orderedQuantity)
	}

	totalPrice, err := unitPrice.MulQuantity(orderedQuantity)
	if err != nil {
		return OrderItem{}, fmt.Errorf("failed to compute item total price: %w", err)
	}

	return OrderItem{
		ID:              id,
		ProductID:       productID,
		ProductStockID:  productStockID,
		OrderedQuantity: orderedQuantity,
		UnitPrice:       unitPrice,
		TotalPrice:      totalPrice,
		Status:          StatusActive,
		Snapshot:        snapshot,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// ClaimableQuantity is the remainder open to new claims.
func (i *OrderItem) ClaimableQuantity() int {
	return i.OrderedQuantity - i.CancelledQuantity - i.RefundedQuantity
}

// ApplyCancellation increases CancelledQuantity by delta, keeping
// cancelled + refunded <= ordered.
func (i *OrderItem) ApplyCancellation(delta int, now time.Time) error {
	if err := i.checkDelta(delta); err != nil {
		return err
	}

	i.CancelledQuantity += delta
	i.refreshStatus(now)

	return nil
}

// ApplyRefund increases RefundedQuantity by delta, keeping
// cancelled + refunded <= ordered.
func (i *OrderItem) ApplyRefund(delta int, now time.Time) error {
	if err := i.checkDelta(delta); err != nil {
		return err
	}

	i.RefundedQuantity += delta
	i.refreshStatus(now)

	return nil
}

func (i *OrderItem) checkDelta(delta int) error {
	if delta < 1 {
		return fmt.Errorf("%w: delta %d", ErrInvalidQuantity, delta)
	}
	if delta > i.ClaimableQuantity() {
		return fmt.Errorf("%w: item %s has %d claimable, requested %d",
			ErrExceedsClaimableQuantity, i.ID, i.ClaimableQuantity(), delta)
	}

	return nil
}

func (i *OrderItem) refreshStatus(now time.Time) {
	switch {
	case i.CancelledQuantity == i.OrderedQuantity:
		i.Status = StatusFullyCancelled
	case i.RefundedQuantity == i.OrderedQuantity:
		i.Status = StatusFullyRefunded
	case i.CancelledQuantity+i.RefundedQuantity > 0:
		i.Status = StatusPartiallyClaimed
	}
	i.UpdatedAt = now
}
