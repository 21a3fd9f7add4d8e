package httptransport

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/modu-commerce/order-core/internal/dal/interfaces/repoerrs"
	"github.com/modu-commerce/order-core/internal/service/models/claim"
	"github.com/modu-commerce/order-core/internal/service/models/mileage"
	"github.com/modu-commerce/order-core/internal/service/models/money"
	"github.com/modu-commerce/order-core/internal/service/models/order"
	"github.com/modu-commerce/order-core/internal/service/models/orderitem"
)

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// respondError maps domain errors onto the HTTP status taxonomy: unknown ids
// are 404, state conflicts 409, business-rule rejections 422, malformed input
// 400, everything else 500.
func respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, claim.ErrNotFound),
		errors.Is(err, order.ErrItemNotFound),
		errors.Is(err, mileage.ErrLotNotFound):
		status = http.StatusNotFound

	case errors.Is(err, order.ErrInvalidStateTransition),
		errors.Is(err, claim.ErrInvalidStateTransition),
		errors.Is(err, claim.ErrOpenClaimExists),
		errors.Is(err, claim.ErrNotAllowedForOrderState),
		errors.Is(err, repoerrs.ErrConcurrentModification):
		status = http.StatusConflict

	case errors.Is(err, orderitem.ErrExceedsClaimableQuantity),
		errors.Is(err, claim.ErrApprovedExceedsRequested),
		errors.Is(err, mileage.ErrInsufficientMileage),
		errors.Is(err, mileage.ErrExpiredLotRefund),
		errors.Is(err, order.ErrAmountInvariantViolated):
		status = http.StatusUnprocessableEntity

	case errors.Is(err, order.ErrEmptyItems),
		errors.Is(err, claim.ErrEmptyItems),
		errors.Is(err, claim.ErrReasonRequired),
		errors.Is(err, claim.ErrUnknownType),
		errors.Is(err, orderitem.ErrInvalidQuantity),
		errors.Is(err, mileage.ErrNothingSpent),
		errors.Is(err, money.ErrNegativeAmount):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		slog.Error("Request failed", "error", err)
	}

	respondJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}

	return true
}
