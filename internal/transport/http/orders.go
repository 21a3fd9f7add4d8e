package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/modu-commerce/order-core/internal/service/models/money"
	"github.com/modu-commerce/order-core/internal/service/models/order"
	"github.com/modu-commerce/order-core/internal/service/models/orderevent"
	"github.com/modu-commerce/order-core/internal/service/models/orderitem"
	"github.com/modu-commerce/order-core/internal/service/services/settlementsvc"
)

type actorBody struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

func (a actorBody) toActor() settlementsvc.Actor {
	actorType := orderevent.ActorType(a.Type)
	if actorType == "" {
		actorType = orderevent.ActorBuyer
	}

	return settlementsvc.Actor{Type: actorType, ID: a.ID}
}

type placeOrderItemBody struct {
	ProductID      string                    `json:"productId"`
	ProductStockID string                    `json:"productStockId"`
	Quantity       int                       `json:"quantity"`
	UnitPrice      int64                     `json:"unitPrice"`
	Snapshot       orderitem.ProductSnapshot `json:"snapshot"`
}

type placeOrderBody struct {
	CheckoutID     string               `json:"checkoutId"`
	PaymentID      string               `json:"paymentId"`
	SellerID       string               `json:"sellerId"`
	BuyerID        string               `json:"buyerId"`
	Items          []placeOrderItemBody `json:"items"`
	Discounts      []order.Discount     `json:"discounts"`
	ShippingFee    int64                `json:"shippingFee"`
	Shipping       *order.ShippingInfo  `json:"shipping"`
	MileageToSpend int64                `json:"mileageToSpend"`
	Actor          actorBody            `json:"actor"`
}

func (h *HTTPTransport) placeOrder(w http.ResponseWriter, r *http.Request) {
	var body placeOrderBody
	if !decodeBody(w, r, &body) {
		return
	}

	cmd := settlementsvc.PlaceOrderCommand{
		CheckoutID:  body.CheckoutID,
		PaymentID:   body.PaymentID,
		SellerID:    body.SellerID,
		BuyerID:     body.BuyerID,
		Discounts:   body.Discounts,
		ShippingFee: money.Money(body.ShippingFee),
		Shipping:    body.Shipping,
		Actor:       body.Actor.toActor(),
	}

	spend, err := money.New(body.MileageToSpend)
	if err != nil {
		respondError(w, err)
		return
	}
	cmd.MileageToSpend = spend

	for _, item := range body.Items {
		unitPrice, err := money.New(item.UnitPrice)
		if err != nil {
			respondError(w, err)
			return
		}

		cmd.Items = append(cmd.Items, settlementsvc.PlaceOrderItem{
			ProductID:      item.ProductID,
			ProductStockID: item.ProductStockID,
			Quantity:       item.Quantity,
			UnitPrice:      unitPrice,
			Snapshot:       item.Snapshot,
		})
	}

	o, err := h.service.PlaceOrder(r.Context(), cmd)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, o)
}

type transitionBody struct {
	Actor actorBody `json:"actor"`
}

func (h *HTTPTransport) confirmOrder(w http.ResponseWriter, r *http.Request) {
	h.transitionOrder(w, r, func(orderID string, actor settlementsvc.Actor) (*order.Order, error) {
		return h.service.ConfirmOrder(r.Context(), settlementsvc.ConfirmOrderCommand{OrderID: orderID, Actor: actor})
	})
}

func (h *HTTPTransport) shipOrder(w http.ResponseWriter, r *http.Request) {
	h.transitionOrder(w, r, func(orderID string, actor settlementsvc.Actor) (*order.Order, error) {
		return h.service.ShipOrder(r.Context(), settlementsvc.ShipOrderCommand{OrderID: orderID, Actor: actor})
	})
}

func (h *HTTPTransport) deliverOrder(w http.ResponseWriter, r *http.Request) {
	h.transitionOrder(w, r, func(orderID string, actor settlementsvc.Actor) (*order.Order, error) {
		return h.service.DeliverOrder(r.Context(), settlementsvc.DeliverOrderCommand{OrderID: orderID, Actor: actor})
	})
}

func (h *HTTPTransport) completeOrder(w http.ResponseWriter, r *http.Request) {
	h.transitionOrder(w, r, func(orderID string, actor settlementsvc.Actor) (*order.Order, error) {
		return h.service.CompleteOrder(r.Context(), settlementsvc.CompleteOrderCommand{OrderID: orderID, Actor: actor})
	})
}

func (h *HTTPTransport) transitionOrder(
	w http.ResponseWriter,
	r *http.Request,
	apply func(orderID string, actor settlementsvc.Actor) (*order.Order, error),
) {
	var body transitionBody
	if r.ContentLength > 0 && !decodeBody(w, r, &body) {
		return
	}

	o, err := apply(chi.URLParam(r, "id"), body.Actor.toActor())
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, o)
}

type timelineResponse struct {
	OrderID string             `json:"orderId"`
	Events  []orderevent.Event `json:"events"`
}

func (h *HTTPTransport) getTimeline(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	events, err := h.service.GetTimeline(r.Context(), orderID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, timelineResponse{OrderID: orderID, Events: events})
}

type mileageBalanceResponse struct {
	BuyerID string `json:"buyerId"`
	Balance int64  `json:"balance"`
}

func (h *HTTPTransport) getMileageBalance(w http.ResponseWriter, r *http.Request) {
	buyerID := chi.URLParam(r, "id")

	balance, err := h.service.GetMileageBalance(r.Context(), buyerID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, mileageBalanceResponse{BuyerID: buyerID, Balance: balance.Int64()})
}
