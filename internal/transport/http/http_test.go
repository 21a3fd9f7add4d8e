package httptransport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modu-commerce/order-core/internal/dal/interfaces/repoerrs"
	"github.com/modu-commerce/order-core/internal/service/models/claim"
	"github.com/modu-commerce/order-core/internal/service/models/money"
	"github.com/modu-commerce/order-core/internal/service/models/order"
	"github.com/modu-commerce/order-core/internal/service/models/orderevent"
	"github.com/modu-commerce/order-core/internal/service/services/settlementsvc"
)

// stubService cancels out the coordinator: every method returns the canned
// result or error.
type stubService struct {
	order  *order.Order
	claim  *claim.Claim
	events []orderevent.Event
	err    error

	lastPlace   settlementsvc.PlaceOrderCommand
	lastRequest settlementsvc.RequestClaimCommand
}

func (s *stubService) PlaceOrder(_ context.Context, cmd settlementsvc.PlaceOrderCommand) (*order.Order, error) {
	s.lastPlace = cmd
	return s.order, s.err
}

func (s *stubService) ConfirmOrder(_ context.Context, _ settlementsvc.ConfirmOrderCommand) (*order.Order, error) {
	return s.order, s.err
}

func (s *stubService) ShipOrder(_ context.Context, _ settlementsvc.ShipOrderCommand) (*order.Order, error) {
	return s.order, s.err
}

func (s *stubService) DeliverOrder(_ context.Context, _ settlementsvc.DeliverOrderCommand) (*order.Order, error) {
	return s.order, s.err
}

func (s *stubService) CompleteOrder(_ context.Context, _ settlementsvc.CompleteOrderCommand) (*order.Order, error) {
	return s.order, s.err
}

func (s *stubService) RequestClaim(_ context.Context, cmd settlementsvc.RequestClaimCommand) (*claim.Claim, error) {
	s.lastRequest = cmd
	return s.claim, s.err
}

func (s *stubService) ApproveClaim(_ context.Context, _ settlementsvc.ApproveClaimCommand) (*claim.Claim, error) {
	return s.claim, s.err
}

func (s *stubService) StartClaimProgress(_ context.Context, _ settlementsvc.StartClaimProgressCommand) (*claim.Claim, error) {
	return s.claim, s.err
}

func (s *stubService) CompleteClaim(_ context.Context, _ settlementsvc.CompleteClaimCommand) (*claim.Claim, error) {
	return s.claim, s.err
}

func (s *stubService) RejectClaim(_ context.Context, _ settlementsvc.RejectClaimCommand) (*claim.Claim, error) {
	return s.claim, s.err
}

func (s *stubService) CancelClaim(_ context.Context, _ settlementsvc.CancelClaimCommand) (*claim.Claim, error) {
	return s.claim, s.err
}

func (s *stubService) GetTimeline(_ context.Context, _ string) ([]orderevent.Event, error) {
	return s.events, s.err
}

func (s *stubService) GetMileageBalance(_ context.Context, _ string) (money.Money, error) {
	return 1500, s.err
}

func newTestTransport(stub *stubService) *HTTPTransport {
	h := NewHTTPTransport(stub)
	h.RegisterRoutes()
	return h
}

func doRequest(h *HTTPTransport, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func TestPlaceOrderRoute(t *testing.T) {
	stub := &stubService{order: &order.Order{ID: "order-1", Status: order.StatusPending}}
	h := newTestTransport(stub)

	body := `{
		"checkoutId": "checkout-1",
		"buyerId": "buyer-1",
		"mileageToSpend": 500,
		"items": [{"productId": "product-1", "quantity": 2, "unitPrice": 10000}],
		"actor": {"type": "BUYER", "id": "buyer-1"}
	}`
	rec := doRequest(h, http.MethodPost, "/api/orders", body)

	require.Equal(t, http.StatusCreated, rec.Code)

	var got order.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "order-1", got.ID)

	assert.Equal(t, money.Money(500), stub.lastPlace.MileageToSpend)
	require.Len(t, stub.lastPlace.Items, 1)
	assert.Equal(t, money.Money(10000), stub.lastPlace.Items[0].UnitPrice)
	assert.Equal(t, orderevent.ActorBuyer, stub.lastPlace.Actor.Type)
}

func TestPlaceOrderRoute_BadBody(t *testing.T) {
	h := newTestTransport(&stubService{})

	rec := doRequest(h, http.MethodPost, "/api/orders", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlaceOrderRoute_NegativeMileage(t *testing.T) {
	h := newTestTransport(&stubService{})

	rec := doRequest(h, http.MethodPost, "/api/orders", `{"mileageToSpend": -1, "items": []}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"unknown order", fmt.Errorf("load: %w", order.ErrNotFound), http.StatusNotFound},
		{"unknown claim", claim.ErrNotFound, http.StatusNotFound},
		{"illegal order transition", order.ErrInvalidStateTransition, http.StatusConflict},
		{"illegal claim transition", claim.ErrInvalidStateTransition, http.StatusConflict},
		{"open claim on item", claim.ErrOpenClaimExists, http.StatusConflict},
		{"order refuses claims", claim.ErrNotAllowedForOrderState, http.StatusConflict},
		{"stale version", repoerrs.ErrConcurrentModification, http.StatusConflict},
		{"approved exceeds requested", claim.ErrApprovedExceedsRequested, http.StatusUnprocessableEntity},
		{"missing reason", claim.ErrReasonRequired, http.StatusBadRequest},
		{"unexpected", fmt.Errorf("connection reset"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestTransport(&stubService{err: tt.err})

			rec := doRequest(h, http.MethodPost, "/api/orders/order-1/confirm", "")
			assert.Equal(t, tt.wantStatus, rec.Code)

			var resp errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestClaimRoutes(t *testing.T) {
	stub := &stubService{claim: &claim.Claim{ID: "claim-1", Status: claim.StatusRequested}}
	h := newTestTransport(stub)

	t.Run("request claim", func(t *testing.T) {
		body := `{
			"orderId": "order-1",
			"type": "RETURN",
			"reason": "wrong size",
			"items": [{"orderItemId": "item-1", "quantity": 1}]
		}`
		rec := doRequest(h, http.MethodPost, "/api/claims", body)

		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, claim.TypeReturn, stub.lastRequest.Type)
		require.Len(t, stub.lastRequest.Items, 1)
		assert.Equal(t, "item-1", stub.lastRequest.Items[0].OrderItemID)
	})

	t.Run("approve claim", func(t *testing.T) {
		rec := doRequest(h, http.MethodPost, "/api/claims/claim-1/approve", `{"approvedAmount": 10000}`)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("complete claim without body", func(t *testing.T) {
		rec := doRequest(h, http.MethodPost, "/api/claims/claim-1/complete", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("reject claim", func(t *testing.T) {
		rec := doRequest(h, http.MethodPost, "/api/claims/claim-1/reject", `{"reason": "outside window"}`)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestTimelineRoute(t *testing.T) {
	stub := &stubService{events: []orderevent.Event{
		{ID: 1, OrderID: "order-1", EventType: orderevent.TypeOrderPlaced},
		{ID: 2, OrderID: "order-1", EventType: orderevent.TypeOrderConfirmed},
	}}
	h := newTestTransport(stub)

	rec := doRequest(h, http.MethodGet, "/api/orders/order-1/timeline", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp timelineResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "order-1", resp.OrderID)
	require.Len(t, resp.Events, 2)
	assert.Equal(t, orderevent.TypeOrderPlaced, resp.Events[0].EventType)
}

func TestMileageBalanceRoute(t *testing.T) {
	h := newTestTransport(&stubService{})

	rec := doRequest(h, http.MethodGet, "/api/buyers/buyer-1/mileage", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp mileageBalanceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "buyer-1", resp.BuyerID)
	assert.Equal(t, int64(1500), resp.Balance)
}
