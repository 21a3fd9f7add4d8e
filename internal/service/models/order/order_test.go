package order_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modu-commerce/order-core/internal/service/models/money"
	"github.com/modu-commerce/order-core/internal/service/models/order"
	"github.com/modu-commerce/order-core/internal/service/models/orderitem"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestOrder(t *testing.T) *order.Order {
	t.Helper()

	item, err := orderitem.New(
		"item-1", "product-1", "stock-1", 2, money.MustNew(10000),
		orderitem.ProductSnapshot{Name: "Wool Scarf", BrandName: "Hanok", OriginalPrice: money.MustNew(12000)},
		testNow,
	)
	require.NoError(t, err)

	o, err := order.New(
		"order-1", "ORD-20250301-0001", "checkout-1", "payment-1", "seller-1", "buyer-1",
		[]orderitem.OrderItem{item},
		[]order.Discount{{Code: "WELCOME", Name: "welcome coupon", Amount: money.MustNew(1000)}},
		money.MustNew(2500),
		nil,
		testNow,
	)
	require.NoError(t, err)

	return o
}

func TestNewComputesAmounts(t *testing.T) {
	o := newTestOrder(t)

	assert.Equal(t, order.StatusPending, o.Status)
	assert.Equal(t, money.MustNew(20000), o.TotalItemAmount)
	assert.Equal(t, money.MustNew(1000), o.DiscountAmount)
	assert.Equal(t, money.MustNew(2500), o.ShippingFee)
	assert.Equal(t, money.MustNew(21500), o.TotalAmount)
	require.NoError(t, o.CheckAmountInvariant())
}

func TestNewRejectsEmptyItems(t *testing.T) {
	_, err := order.New(
		"order-1", "ORD-1", "checkout-1", "payment-1", "seller-1", "buyer-1",
		nil, nil, money.MustNew(0), nil, testNow,
	)
	assert.ErrorIs(t, err, order.ErrEmptyItems)
}

func TestNewRejectsDiscountExceedingItems(t *testing.T) {
	item, err := orderitem.New("item-1", "p", "s", 1, money.MustNew(100), orderitem.ProductSnapshot{}, testNow)
	require.NoError(t, err)

	_, err = order.New(
		"order-1", "ORD-1", "checkout-1", "payment-1", "seller-1", "buyer-1",
		[]orderitem.OrderItem{item},
		[]order.Discount{{Code: "X", Amount: money.MustNew(200)}},
		money.MustNew(0), nil, testNow,
	)
	assert.ErrorIs(t, err, order.ErrAmountInvariantViolated)
}

func TestTransitionChain(t *testing.T) {
	o := newTestOrder(t)

	tr, err := o.Confirm(testNow)
	require.NoError(t, err)
	assert.Equal(t, order.Transition{From: order.StatusPending, To: order.StatusConfirmed}, tr)
	require.NotNil(t, o.ConfirmedAt)
	assert.Equal(t, testNow, *o.ConfirmedAt)

	_, err = o.Ship(testNow)
	require.NoError(t, err)
	_, err = o.Deliver(testNow)
	require.NoError(t, err)
	_, err = o.Complete(testNow)
	require.NoError(t, err)

	assert.Equal(t, order.StatusCompleted, o.Status)
	assert.True(t, o.Status.IsTerminal())
	require.NoError(t, o.CheckAmountInvariant())
}

func TestIllegalTransitions(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(o *order.Order)
		action  func(o *order.Order) error
	}{
		{
			name:    "ship before confirm",
			prepare: func(o *order.Order) {},
			action: func(o *order.Order) error {
				_, err := o.Ship(testNow)
				return err
			},
		},
		{
			name: "cancel after shipment",
			prepare: func(o *order.Order) {
				_, _ = o.Confirm(testNow)
				_, _ = o.Ship(testNow)
			},
			action: func(o *order.Order) error {
				_, err := o.Cancel(testNow)
				return err
			},
		},
		{
			name: "confirm a completed order",
			prepare: func(o *order.Order) {
				_, _ = o.Confirm(testNow)
				_, _ = o.Ship(testNow)
				_, _ = o.Deliver(testNow)
				_, _ = o.Complete(testNow)
			},
			action: func(o *order.Order) error {
				_, err := o.Confirm(testNow)
				return err
			},
		},
		{
			name: "deliver a cancelled order",
			prepare: func(o *order.Order) {
				_, _ = o.Cancel(testNow)
			},
			action: func(o *order.Order) error {
				_, err := o.Deliver(testNow)
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newTestOrder(t)
			tt.prepare(o)
			before := o.Status

			err := tt.action(o)
			assert.ErrorIs(t, err, order.ErrInvalidStateTransition)
			assert.Equal(t, before, o.Status, "failed transition must not mutate status")
		})
	}
}

func TestCancelFromPendingAndConfirmed(t *testing.T) {
	o := newTestOrder(t)
	_, err := o.Cancel(testNow)
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, o.Status)
	require.NotNil(t, o.CancelledAt)

	o = newTestOrder(t)
	_, err = o.Confirm(testNow)
	require.NoError(t, err)
	_, err = o.Cancel(testNow)
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, o.Status)
}

func TestItemQuantityMutation(t *testing.T) {
	o := newTestOrder(t)

	item, err := o.Item("item-1")
	require.NoError(t, err)
	assert.Equal(t, 2, item.ClaimableQuantity())

	require.NoError(t, item.ApplyCancellation(1, testNow))
	assert.Equal(t, 1, item.CancelledQuantity)
	assert.Equal(t, 1, item.ClaimableQuantity())
	assert.Equal(t, orderitem.StatusPartiallyClaimed, item.Status)

	require.NoError(t, item.ApplyRefund(1, testNow))
	assert.Equal(t, 0, item.ClaimableQuantity())

	err = item.ApplyCancellation(1, testNow)
	assert.ErrorIs(t, err, orderitem.ErrExceedsClaimableQuantity)
	assert.Equal(t, 1, item.CancelledQuantity, "failed mutation must not change counters")

	assert.True(t, o.FullyClaimed())
}

func TestFullyCancelledItemStatus(t *testing.T) {
	o := newTestOrder(t)
	item, err := o.Item("item-1")
	require.NoError(t, err)

	require.NoError(t, item.ApplyCancellation(2, testNow))
	assert.Equal(t, orderitem.StatusFullyCancelled, item.Status)
}

func TestItemNotFound(t *testing.T) {
	o := newTestOrder(t)
	_, err := o.Item("missing")
	assert.ErrorIs(t, err, order.ErrItemNotFound)
}

func TestAllowsClaims(t *testing.T) {
	o := newTestOrder(t)
	assert.True(t, o.AllowsClaims())

	_, err := o.Confirm(testNow)
	require.NoError(t, err)
	assert.True(t, o.AllowsClaims())

	_, err = o.Cancel(testNow)
	require.NoError(t, err)
	assert.False(t, o.AllowsClaims())
}
