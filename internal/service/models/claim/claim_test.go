package claim_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modu-commerce/order-core/internal/service/models/claim"
	"github.com/modu-commerce/order-core/internal/service/models/money"
	"github.com/modu-commerce/order-core/internal/service/models/order"
	"github.com/modu-commerce/order-core/internal/service/models/orderitem"
)

var testNow = time.Date(2025, 3, 2, 9, 30, 0, 0, time.UTC)

func newTestOrder(t *testing.T) *order.Order {
	t.Helper()

	item, err := orderitem.New(
		"item-1", "product-1", "stock-1", 2, money.MustNew(10000),
		orderitem.ProductSnapshot{Name: "Ceramic Mug"}, testNow,
	)
	require.NoError(t, err)

	o, err := order.New(
		"order-1", "ORD-20250302-0001", "checkout-1", "payment-1", "seller-1", "buyer-1",
		[]orderitem.OrderItem{item}, nil, money.MustNew(0), nil, testNow,
	)
	require.NoError(t, err)

	return o
}

func requestCancel(t *testing.T, o *order.Order, qty int, open []claim.Claim) *claim.Claim {
	t.Helper()

	c, err := claim.Request(
		"claim-1", o,
		[]claim.ItemRequest{{OrderItemID: "item-1", Quantity: qty}},
		claim.TypeCancel, "changed my mind", open, testNow,
	)
	require.NoError(t, err)

	return c
}

func TestRequestComputesAmountFromRecordedPrices(t *testing.T) {
	o := newTestOrder(t)
	c := requestCancel(t, o, 1, nil)

	assert.Equal(t, claim.StatusRequested, c.Status)
	assert.Equal(t, "order-1", c.OrderID)
	assert.Equal(t, "buyer-1", c.BuyerID)
	assert.Equal(t, money.MustNew(10000), c.RequestedAmount)
	require.Len(t, c.Items, 1)
	assert.Equal(t, money.MustNew(10000), c.Items[0].Amount)
}

func TestRequestValidation(t *testing.T) {
	t.Run("quantity above claimable remainder", func(t *testing.T) {
		o := newTestOrder(t)
		_, err := claim.Request(
			"claim-1", o,
			[]claim.ItemRequest{{OrderItemID: "item-1", Quantity: 3}},
			claim.TypeCancel, "too many", nil, testNow,
		)
		assert.ErrorIs(t, err, orderitem.ErrExceedsClaimableQuantity)
	})

	t.Run("open claim already covers item", func(t *testing.T) {
		o := newTestOrder(t)
		open := requestCancel(t, o, 1, nil)

		_, err := claim.Request(
			"claim-2", o,
			[]claim.ItemRequest{{OrderItemID: "item-1", Quantity: 1}},
			claim.TypeReturn, "defective", []claim.Claim{*open}, testNow,
		)
		assert.ErrorIs(t, err, claim.ErrOpenClaimExists)
	})

	t.Run("terminal claim does not block a new one", func(t *testing.T) {
		o := newTestOrder(t)
		rejected := requestCancel(t, o, 1, nil)
		_, err := rejected.Reject("out of stock excuse", testNow)
		require.NoError(t, err)

		_, err = claim.Request(
			"claim-2", o,
			[]claim.ItemRequest{{OrderItemID: "item-1", Quantity: 1}},
			claim.TypeCancel, "retry", []claim.Claim{*rejected}, testNow,
		)
		assert.NoError(t, err)
	})

	t.Run("order state disallows claims", func(t *testing.T) {
		o := newTestOrder(t)
		_, err := o.Cancel(testNow)
		require.NoError(t, err)

		_, err = claim.Request(
			"claim-1", o,
			[]claim.ItemRequest{{OrderItemID: "item-1", Quantity: 1}},
			claim.TypeCancel, "late", nil, testNow,
		)
		assert.ErrorIs(t, err, claim.ErrNotAllowedForOrderState)
	})

	t.Run("reason required", func(t *testing.T) {
		o := newTestOrder(t)
		_, err := claim.Request(
			"claim-1", o,
			[]claim.ItemRequest{{OrderItemID: "item-1", Quantity: 1}},
			claim.TypeCancel, "", nil, testNow,
		)
		assert.ErrorIs(t, err, claim.ErrReasonRequired)
	})

	t.Run("unknown type", func(t *testing.T) {
		o := newTestOrder(t)
		_, err := claim.Request(
			"claim-1", o,
			[]claim.ItemRequest{{OrderItemID: "item-1", Quantity: 1}},
			claim.Type("STORE_CREDIT"), "reason", nil, testNow,
		)
		assert.ErrorIs(t, err, claim.ErrUnknownType)
	})
}

func TestApprove(t *testing.T) {
	o := newTestOrder(t)
	c := requestCancel(t, o, 1, nil)

	tr, err := c.Approve(money.MustNew(9000), testNow)
	require.NoError(t, err)
	assert.Equal(t, claim.Transition{From: claim.StatusRequested, To: claim.StatusApproved}, tr)
	assert.Equal(t, money.MustNew(9000), c.ApprovedAmount)

	_, err = c.Approve(money.MustNew(9000), testNow)
	assert.ErrorIs(t, err, claim.ErrInvalidStateTransition)
}

func TestApproveCannotExceedRequested(t *testing.T) {
	o := newTestOrder(t)
	c := requestCancel(t, o, 1, nil)

	_, err := c.Approve(money.MustNew(10001), testNow)
	assert.ErrorIs(t, err, claim.ErrApprovedExceedsRequested)
	assert.Equal(t, claim.StatusRequested, c.Status)
}

func TestCompletePathsPerType(t *testing.T) {
	t.Run("cancel completes straight from approved", func(t *testing.T) {
		o := newTestOrder(t)
		c := requestCancel(t, o, 1, nil)
		_, err := c.Approve(c.RequestedAmount, testNow)
		require.NoError(t, err)

		_, err = c.Complete(testNow)
		require.NoError(t, err)
		assert.Equal(t, claim.StatusCompleted, c.Status)
		require.NotNil(t, c.CompletedAt)
	})

	t.Run("return requires the physical leg", func(t *testing.T) {
		o := newTestOrder(t)
		c, err := claim.Request(
			"claim-1", o,
			[]claim.ItemRequest{{OrderItemID: "item-1", Quantity: 1}},
			claim.TypeReturn, "defective", nil, testNow,
		)
		require.NoError(t, err)

		_, err = c.Approve(c.RequestedAmount, testNow)
		require.NoError(t, err)

		_, err = c.Complete(testNow)
		assert.ErrorIs(t, err, claim.ErrInvalidStateTransition)

		_, err = c.StartProgress(testNow)
		require.NoError(t, err)
		_, err = c.Complete(testNow)
		require.NoError(t, err)
		assert.Equal(t, claim.StatusCompleted, c.Status)
	})

	t.Run("cancel type has no progress state", func(t *testing.T) {
		o := newTestOrder(t)
		c := requestCancel(t, o, 1, nil)
		_, err := c.Approve(c.RequestedAmount, testNow)
		require.NoError(t, err)

		_, err = c.StartProgress(testNow)
		assert.ErrorIs(t, err, claim.ErrInvalidStateTransition)
	})
}

func TestRejectAndWithdraw(t *testing.T) {
	o := newTestOrder(t)
	c := requestCancel(t, o, 1, nil)

	_, err := c.Reject("", testNow)
	assert.ErrorIs(t, err, claim.ErrReasonRequired)

	tr, err := c.Reject("not eligible", testNow)
	require.NoError(t, err)
	assert.Equal(t, claim.StatusRejected, tr.To)
	assert.True(t, c.Status.IsTerminal())

	o2 := newTestOrder(t)
	c2 := requestCancel(t, o2, 1, nil)
	_, err = c2.Approve(c2.RequestedAmount, testNow)
	require.NoError(t, err)
	_, err = c2.Cancel("buyer withdrew", testNow)
	require.NoError(t, err)
	assert.Equal(t, claim.StatusCancelled, c2.Status)

	// Withdrawal is no longer possible once processing started.
	o3 := newTestOrder(t)
	c3, err := claim.Request(
		"claim-3", o3,
		[]claim.ItemRequest{{OrderItemID: "item-1", Quantity: 1}},
		claim.TypeReturn, "defective", nil, testNow,
	)
	require.NoError(t, err)
	_, err = c3.Approve(c3.RequestedAmount, testNow)
	require.NoError(t, err)
	_, err = c3.StartProgress(testNow)
	require.NoError(t, err)
	_, err = c3.Cancel("too late", testNow)
	assert.ErrorIs(t, err, claim.ErrInvalidStateTransition)
}

func TestTypeSemantics(t *testing.T) {
	refunds := map[claim.Type]bool{
		claim.TypeCancel:        true,
		claim.TypeReturn:        true,
		claim.TypePartialRefund: true,
		claim.TypeExchange:      false,
	}

	for typ, wantRefund := range refunds {
		c := &claim.Claim{Type: typ}
		assert.Equal(t, wantRefund, c.RefundsMoney(), "type %s", typ)
	}

	assert.True(t, (&claim.Claim{Type: claim.TypeCancel}).AppliesCancellation())
	assert.False(t, (&claim.Claim{Type: claim.TypeReturn}).AppliesCancellation())
}
