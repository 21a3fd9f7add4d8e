package order

import (
	"errors"
	"fmt"
	"time"

	"github.com/modu-commerce/order-core/internal/service/models/money"
	"github.com/modu-commerce/order-core/internal/service/models/orderitem"
)

var (
	ErrNotFound                = errors.New("order not found")
	ErrEmptyItems              = errors.New("order must contain at least one item")
	ErrInvalidStateTransition  = errors.New("invalid order state transition")
	ErrAmountInvariantViolated = errors.New("order amount invariant violated")
	ErrItemNotFound            = errors.New("order item not found")
)

// Status is the order lifecycle status.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusShipped   Status = "SHIPPED"
	StatusDelivered Status = "DELIVERED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// allowedTransitions is the single source of truth for the order state machine.
// CANCELLED is reachable only before shipment.
var allowedTransitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusShipped, StatusCancelled},
	StatusShipped:   {StatusDelivered},
	StatusDelivered: {StatusCompleted},
}

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransitionTo reports whether s -> target is a legal transition.
func (s Status) CanTransitionTo(target Status) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == target {
			return true
		}
	}

	return false
}

// Transition describes a completed status change, carrying exactly what the
// caller needs to append one order event. The aggregate never writes events.
type Transition struct {
	From Status
	To   Status
}

// Discount is a single discount applied to the order.
type Discount struct {
	Code   string      `json:"code"`
	Name   string      `json:"name"`
	Amount money.Money `json:"amount"`
}

// ShippingInfo is the optional delivery destination of an order.
type ShippingInfo struct {
	ReceiverName  string `json:"receiverName"`
	ReceiverPhone string `json:"receiverPhone"`
	ZipCode       string `json:"zipCode"`
	Address       string `json:"address"`
	AddressDetail string `json:"addressDetail"`
	Memo          string `json:"memo"`
}

// Order is the aggregate root of the order lifecycle. Status changes only
// through the transition methods; quantity counters only through the item
// mutation methods. Version backs optimistic locking and is incremented by the
// persistence layer on successful save.
type Order struct {
	ID              string                `json:"id"`
	Number          string                `json:"number"`
	CheckoutID      string                `json:"checkoutId"`
	PaymentID       string                `json:"paymentId"`
	SellerID        string                `json:"sellerId"`
	BuyerID         string                `json:"buyerId"`
	Status          Status                `json:"status"`
	Items           []orderitem.OrderItem `json:"items"`
	Shipping        *ShippingInfo         `json:"shipping,omitempty"`
	TotalItemAmount money.Money           `json:"totalItemAmount"`
	DiscountAmount  money.Money           `json:"discountAmount"`
	Discounts       []Discount            `json:"discounts,omitempty"`
	ShippingFee     money.Money           `json:"shippingFee"`
	TotalAmount     money.Money           `json:"totalAmount"`
	Version         int64                 `json:"version"`
	OrderedAt       time.Time             `json:"orderedAt"`
	ConfirmedAt     *time.Time            `json:"confirmedAt,omitempty"`
	ShippedAt       *time.Time            `json:"shippedAt,omitempty"`
	DeliveredAt     *time.Time            `json:"deliveredAt,omitempty"`
	CompletedAt     *time.Time            `json:"completedAt,omitempty"`
	CancelledAt     *time.Time            `json:"cancelledAt,omitempty"`
	CreatedAt       time.Time             `json:"createdAt"`
	UpdatedAt       time.Time             `json:"updatedAt"`
}

// New creates a pending order from checkout data. The total amount is derived
// as totalItemAmount - discountAmount + shippingFee and must not be negative.
func New(
	id, number, checkoutID, paymentID, sellerID, buyerID string,
	items []orderitem.OrderItem,
	discounts []Discount,
	shippingFee money.Money,
	shipping *ShippingInfo,
	now time.Time,
) (*Order, error) {
	if len(items) == 0 {
		return nil, ErrEmptyItems
	}

	var totalItemAmount money.Money
	var err error
	for i := range items {
		items[i].OrderID = id
		totalItemAmount, err = totalItemAmount.Add(items[i].TotalPrice)
		if err != nil {
			return nil, fmt.Errorf("failed to sum item amounts: %w", err)
		}
	}

	var discountAmount money.Money
	for _, d := range discounts {
		discountAmount, err = discountAmount.Add(d.Amount)
		if err != nil {
			return nil, fmt.Errorf("failed to sum discounts: %w", err)
		}
	}

	afterDiscount, err := totalItemAmount.Sub(discountAmount)
	if err != nil {
		return nil, fmt.Errorf("%w: discount %d exceeds item amount %d",
			ErrAmountInvariantViolated, discountAmount, totalItemAmount)
	}

	totalAmount, err := afterDiscount.Add(shippingFee)
	if err != nil {
		return nil, fmt.Errorf("failed to compute total amount: %w", err)
	}

	return &Order{
		ID:              id,
		Number:          number,
		CheckoutID:      checkoutID,
		PaymentID:       paymentID,
		SellerID:        sellerID,
		BuyerID:         buyerID,
		Status:          StatusPending,
		Items:           items,
		Shipping:        shipping,
		TotalItemAmount: totalItemAmount,
		DiscountAmount:  discountAmount,
		Discounts:       discounts,
		ShippingFee:     shippingFee,
		TotalAmount:     totalAmount,
		OrderedAt:       now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// Confirm moves PENDING -> CONFIRMED.
func (o *Order) Confirm(now time.Time) (Transition, error) {
	t, err := o.transition(StatusConfirmed, now)
	if err != nil {
		return Transition{}, err
	}
	o.ConfirmedAt = &now

	return t, nil
}

// Ship moves CONFIRMED -> SHIPPED.
func (o *Order) Ship(now time.Time) (Transition, error) {
	t, err := o.transition(StatusShipped, now)
	if err != nil {
		return Transition{}, err
	}
	o.ShippedAt = &now

	return t, nil
}

// Deliver moves SHIPPED -> DELIVERED.
func (o *Order) Deliver(now time.Time) (Transition, error) {
	t, err := o.transition(StatusDelivered, now)
	if err != nil {
		return Transition{}, err
	}
	o.DeliveredAt = &now

	return t, nil
}

// Complete moves DELIVERED -> COMPLETED.
func (o *Order) Complete(now time.Time) (Transition, error) {
	t, err := o.transition(StatusCompleted, now)
	if err != nil {
		return Transition{}, err
	}
	o.CompletedAt = &now

	return t, nil
}

// Cancel moves PENDING|CONFIRMED -> CANCELLED.
func (o *Order) Cancel(now time.Time) (Transition, error) {
	t, err := o.transition(StatusCancelled, now)
	if err != nil {
		return Transition{}, err
	}
	o.CancelledAt = &now

	return t, nil
}

func (o *Order) transition(target Status, now time.Time) (Transition, error) {
	if !o.Status.CanTransitionTo(target) {
		return Transition{}, fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, o.Status, target)
	}

	t := Transition{From: o.Status, To: target}
	o.Status = target
	o.UpdatedAt = now

	return t, nil
}

// Item returns a pointer to the item with the given id for mutation through
// the aggregate.
func (o *Order) Item(itemID string) (*orderitem.OrderItem, error) {
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			return &o.Items[i], nil
		}
	}

	return nil, fmt.Errorf("%w: %s in order %s", ErrItemNotFound, itemID, o.ID)
}

// AllowsClaims reports whether new claims may be opened against the order.
// Cancelled orders never accept claims; completed orders are past the
// cooling-off window.
func (o *Order) AllowsClaims() bool {
	return o.Status != StatusCancelled && o.Status != StatusCompleted
}

// FullyClaimed reports whether every unit of every item has been cancelled or
// refunded.
func (o *Order) FullyClaimed() bool {
	for i := range o.Items {
		if o.Items[i].ClaimableQuantity() > 0 {
			return false
		}
	}

	return true
}

// CheckAmountInvariant verifies totalAmount = totalItemAmount - discountAmount
// + shippingFee. Used by tests and by the coordinator after every transition.
func (o *Order) CheckAmountInvariant() error {
	afterDiscount, err := o.TotalItemAmount.Sub(o.DiscountAmount)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAmountInvariantViolated, err)
	}

	want, err := afterDiscount.Add(o.ShippingFee)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAmountInvariantViolated, err)
	}

	if o.TotalAmount != want {
		return fmt.Errorf("%w: total %d, expected %d", ErrAmountInvariantViolated, o.TotalAmount, want)
	}

	return nil
}
