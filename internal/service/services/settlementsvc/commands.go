package settlementsvc

import (
	"github.com/modu-commerce/order-core/internal/service/models/claim"
	"github.com/modu-commerce/order-core/internal/service/models/money"
	"github.com/modu-commerce/order-core/internal/service/models/order"
	"github.com/modu-commerce/order-core/internal/service/models/orderevent"
	"github.com/modu-commerce/order-core/internal/service/models/orderitem"
)

// Actor identifies who issued a command; it ends up on every event the
// command appends.
type Actor struct {
	Type orderevent.ActorType
	ID   string
}

// PlaceOrderItem is one line of a new order.
type PlaceOrderItem struct {
	ProductID      string
	ProductStockID string
	Quantity       int
	UnitPrice      money.Money
	Snapshot       orderitem.ProductSnapshot
}

// PlaceOrderCommand creates a pending order from a completed checkout,
// optionally spending mileage against it.
type PlaceOrderCommand struct {
	CheckoutID     string
	PaymentID      string
	SellerID       string
	BuyerID        string
	Items          []PlaceOrderItem
	Discounts      []order.Discount
	ShippingFee    money.Money
	Shipping       *order.ShippingInfo
	MileageToSpend money.Money
	Actor          Actor
}

// ConfirmOrderCommand moves an order PENDING -> CONFIRMED.
type ConfirmOrderCommand struct {
	OrderID string
	Actor   Actor
}

// ShipOrderCommand moves an order CONFIRMED -> SHIPPED.
type ShipOrderCommand struct {
	OrderID string
	Actor   Actor
}

// DeliverOrderCommand moves an order SHIPPED -> DELIVERED.
type DeliverOrderCommand struct {
	OrderID string
	Actor   Actor
}

// CompleteOrderCommand moves an order DELIVERED -> COMPLETED.
type CompleteOrderCommand struct {
	OrderID string
	Actor   Actor
}

// RequestClaimCommand opens a claim against an order.
type RequestClaimCommand struct {
	OrderID string
	Items   []claim.ItemRequest
	Type    claim.Type
	Reason  string
	Actor   Actor
}

// ApproveClaimCommand approves a requested claim, possibly for a reduced
// amount.
type ApproveClaimCommand struct {
	ClaimID        string
	ApprovedAmount money.Money
	Actor          Actor
}

// StartClaimProgressCommand starts the physical leg of a return or exchange.
type StartClaimProgressCommand struct {
	ClaimID string
	Actor   Actor
}

// CompleteClaimCommand settles an approved (or in-progress) claim: order item
// counters, mileage refund, order re-evaluation and events, atomically.
type CompleteClaimCommand struct {
	ClaimID string
	Actor   Actor
}

// RejectClaimCommand rejects a requested claim with a reason.
type RejectClaimCommand struct {
	ClaimID string
	Reason  string
	Actor   Actor
}

// CancelClaimCommand is the buyer withdrawing a claim before processing.
type CancelClaimCommand struct {
	ClaimID string
	Reason  string
	Actor   Actor
}
