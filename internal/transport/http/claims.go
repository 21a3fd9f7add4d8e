package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/modu-commerce/order-core/internal/service/models/claim"
	"github.com/modu-commerce/order-core/internal/service/models/money"
	"github.com/modu-commerce/order-core/internal/service/services/settlementsvc"
)

type claimItemBody struct {
	OrderItemID string `json:"orderItemId"`
	Quantity    int    `json:"quantity"`
}

type requestClaimBody struct {
	OrderID string          `json:"orderId"`
	Type    string          `json:"type"`
	Reason  string          `json:"reason"`
	Items   []claimItemBody `json:"items"`
	Actor   actorBody       `json:"actor"`
}

func (h *HTTPTransport) requestClaim(w http.ResponseWriter, r *http.Request) {
	var body requestClaimBody
	if !decodeBody(w, r, &body) {
		return
	}

	cmd := settlementsvc.RequestClaimCommand{
		OrderID: body.OrderID,
		Type:    claim.Type(body.Type),
		Reason:  body.Reason,
		Actor:   body.Actor.toActor(),
	}
	for _, item := range body.Items {
		cmd.Items = append(cmd.Items, claim.ItemRequest{
			OrderItemID: item.OrderItemID,
			Quantity:    item.Quantity,
		})
	}

	c, err := h.service.RequestClaim(r.Context(), cmd)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, c)
}

type approveClaimBody struct {
	ApprovedAmount int64     `json:"approvedAmount"`
	Actor          actorBody `json:"actor"`
}

func (h *HTTPTransport) approveClaim(w http.ResponseWriter, r *http.Request) {
	var body approveClaimBody
	if !decodeBody(w, r, &body) {
		return
	}

	approved, err := money.New(body.ApprovedAmount)
	if err != nil {
		respondError(w, err)
		return
	}

	c, err := h.service.ApproveClaim(r.Context(), settlementsvc.ApproveClaimCommand{
		ClaimID:        chi.URLParam(r, "id"),
		ApprovedAmount: approved,
		Actor:          body.Actor.toActor(),
	})
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, c)
}

func (h *HTTPTransport) startClaimProgress(w http.ResponseWriter, r *http.Request) {
	var body transitionBody
	if r.ContentLength > 0 && !decodeBody(w, r, &body) {
		return
	}

	c, err := h.service.StartClaimProgress(r.Context(), settlementsvc.StartClaimProgressCommand{
		ClaimID: chi.URLParam(r, "id"),
		Actor:   body.Actor.toActor(),
	})
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, c)
}

func (h *HTTPTransport) completeClaim(w http.ResponseWriter, r *http.Request) {
	var body transitionBody
	if r.ContentLength > 0 && !decodeBody(w, r, &body) {
		return
	}

	c, err := h.service.CompleteClaim(r.Context(), settlementsvc.CompleteClaimCommand{
		ClaimID: chi.URLParam(r, "id"),
		Actor:   body.Actor.toActor(),
	})
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, c)
}

type resolveClaimBody struct {
	Reason string    `json:"reason"`
	Actor  actorBody `json:"actor"`
}

func (h *HTTPTransport) rejectClaim(w http.ResponseWriter, r *http.Request) {
	var body resolveClaimBody
	if !decodeBody(w, r, &body) {
		return
	}

	c, err := h.service.RejectClaim(r.Context(), settlementsvc.RejectClaimCommand{
		ClaimID: chi.URLParam(r, "id"),
		Reason:  body.Reason,
		Actor:   body.Actor.toActor(),
	})
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, c)
}

func (h *HTTPTransport) cancelClaim(w http.ResponseWriter, r *http.Request) {
	var body resolveClaimBody
	if !decodeBody(w, r, &body) {
		return
	}

	c, err := h.service.CancelClaim(r.Context(), settlementsvc.CancelClaimCommand{
		ClaimID: chi.URLParam(r, "id"),
		Reason:  body.Reason,
		Actor:   body.Actor.toActor(),
	})
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, c)
}
