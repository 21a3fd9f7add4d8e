package claim

import (
	"errors"
	"fmt"
	"time"

	"github.com/modu-commerce/order-core/internal/service/models/money"
	"github.com/modu-commerce/order-core/internal/service/models/order"
	"github.com/modu-commerce/order-core/internal/service/models/orderitem"
)

var (
	ErrNotFound                 = errors.New("claim not found")
	ErrEmptyItems               = errors.New("claim must cover at least one item")
	ErrInvalidStateTransition   = errors.New("invalid claim state transition")
	ErrNotAllowedForOrderState  = errors.New("order state does not allow claims")
	ErrOpenClaimExists          = errors.New("item already has an open claim")
	ErrApprovedExceedsRequested = errors.New("approved amount exceeds requested amount")
	ErrReasonRequired           = errors.New("claim reason is required")
	ErrUnknownType              = errors.New("unknown claim type")
)

// Type is the kind of post-order adjustment requested by the buyer.
type Type string

const (
	TypeCancel        Type = "CANCEL"
	TypeReturn        Type = "RETURN"
	TypeExchange      Type = "EXCHANGE"
	TypePartialRefund Type = "PARTIAL_REFUND"
)

// Status is the claim lifecycle status.
type Status string

const (
	StatusRequested  Status = "REQUESTED"
	StatusApproved   Status = "APPROVED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusRejected   Status = "REJECTED"
	StatusCancelled  Status = "CANCELLED"
)

// IsTerminal reports whether the claim can no longer change.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusRejected || s == StatusCancelled
}

// Transition describes a completed claim status change for event appending.
type Transition struct {
	From Status
	To   Status
}

// Item is one order item covered by the claim, priced from the order's
// recorded unit prices at request time, never from the current catalog.
type Item struct {
	OrderItemID string      `json:"orderItemId"`
	Quantity    int         `json:"quantity"`
	Amount      money.Money `json:"amount"`
}

// ItemRequest is the buyer's per-item input when opening a claim.
type ItemRequest struct {
	OrderItemID string
	Quantity    int
}

// Claim is a post-order request against one order. It references the order by
// id only; the coordinator resolves the order through its repository.
type Claim struct {
	ID              string      `json:"id"`
	OrderID         string      `json:"orderId"`
	BuyerID         string      `json:"buyerId"`
	Type            Type        `json:"type"`
	Status          Status      `json:"status"`
	Items           []Item      `json:"items"`
	RequestedAmount money.Money `json:"requestedAmount"`
	ApprovedAmount  money.Money `json:"approvedAmount"`
	Reason          string      `json:"reason"`
	ResolutionNote  string      `json:"resolutionNote,omitempty"`
	Version         int64       `json:"version"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
	CompletedAt     *time.Time  `json:"completedAt,omitempty"`
}

// Request opens a claim against an order. It enforces the one-open-claim-per-
// item rule against the supplied open claims and the claimable remainder of
// each requested item.
func Request(
	id string,
	ord *order.Order,
	requests []ItemRequest,
	claimType Type,
	reason string,
	openClaims []Claim,
	now time.Time,
) (*Claim, error) {
	switch claimType {
	case TypeCancel, TypeReturn, TypeExchange, TypePartialRefund:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, claimType)
	}

	if reason == "" {
		return nil, ErrReasonRequired
	}

	if len(requests) == 0 {
		return nil, ErrEmptyItems
	}

	if !ord.AllowsClaims() {
		return nil, fmt.Errorf("%w: order %s is %s", ErrNotAllowedForOrderState, ord.ID, ord.Status)
	}

	claimed := openItemIDs(openClaims)

	items := make([]Item, 0, len(requests))
	var requestedAmount money.Money
	for _, req := range requests {
		if claimed[req.OrderItemID] {
			return nil, fmt.Errorf("%w: item %s", ErrOpenClaimExists, req.OrderItemID)
		}

		ordItem, err := ord.Item(req.OrderItemID)
		if err != nil {
			return nil, err
		}

		if req.Quantity < 1 {
			return nil, fmt.Errorf("%w: item %s quantity %d", orderitem.ErrInvalidQuantity, req.OrderItemID, req.Quantity)
		}
		if req.Quantity > ordItem.ClaimableQuantity() {
			return nil, fmt.Errorf("%w: item %s has %d claimable, requested %d",
				orderitem.ErrExceedsClaimableQuantity, req.OrderItemID, ordItem.ClaimableQuantity(), req.Quantity)
		}

		amount, err := ordItem.UnitPrice.MulQuantity(req.Quantity)
		if err != nil {
			return nil, fmt.Errorf("failed to compute claim item amount: %w", err)
		}

		requestedAmount, err = requestedAmount.Add(amount)
		if err != nil {
			return nil, fmt.Errorf("failed to sum claim amount: %w", err)
		}

		items = append(items, Item{
			OrderItemID: req.OrderItemID,
			Quantity:    req.Quantity,
			Amount:      amount,
		})
	}

	return &Claim{
		ID:              id,
		OrderID:         ord.ID,
		BuyerID:         ord.BuyerID,
		Type:            claimType,
		Status:          StatusRequested,
		Items:           items,
		RequestedAmount: requestedAmount,
		Reason:          reason,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// openItemIDs collects the order item ids covered by non-terminal claims.
func openItemIDs(claims []Claim) map[string]bool {
	ids := make(map[string]bool)
	for _, c := range claims {
		if c.Status.IsTerminal() {
			continue
		}
		for _, item := range c.Items {
			ids[item.OrderItemID] = true
		}
	}

	return ids
}

// Approve moves REQUESTED -> APPROVED. The approved amount may be reduced
// during review but never exceeds the requested amount.
func (c *Claim) Approve(approvedAmount money.Money, now time.Time) (Transition, error) {
	if c.Status != StatusRequested {
		return Transition{}, fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, c.Status, StatusApproved)
	}
	if approvedAmount > c.RequestedAmount {
		return Transition{}, fmt.Errorf("%w: approved %d, requested %d",
			ErrApprovedExceedsRequested, approvedAmount, c.RequestedAmount)
	}

	t := Transition{From: c.Status, To: StatusApproved}
	c.Status = StatusApproved
	c.ApprovedAmount = approvedAmount
	c.UpdatedAt = now

	return t, nil
}

// StartProgress moves APPROVED -> IN_PROGRESS for claim types with a physical
// leg (RETURN, EXCHANGE).
func (c *Claim) StartProgress(now time.Time) (Transition, error) {
	if c.Status != StatusApproved || !c.requiresPhysicalLeg() {
		return Transition{}, fmt.Errorf("%w: %s %s -> %s", ErrInvalidStateTransition, c.Type, c.Status, StatusInProgress)
	}

	t := Transition{From: c.Status, To: StatusInProgress}
	c.Status = StatusInProgress
	c.UpdatedAt = now

	return t, nil
}

// Complete moves the claim to COMPLETED: from IN_PROGRESS for RETURN and
// EXCHANGE, directly from APPROVED for CANCEL and PARTIAL_REFUND.
func (c *Claim) Complete(now time.Time) (Transition, error) {
	allowedFrom := StatusApproved
	if c.requiresPhysicalLeg() {
		allowedFrom = StatusInProgress
	}

	if c.Status != allowedFrom {
		return Transition{}, fmt.Errorf("%w: %s %s -> %s", ErrInvalidStateTransition, c.Type, c.Status, StatusCompleted)
	}

	t := Transition{From: c.Status, To: StatusCompleted}
	c.Status = StatusCompleted
	c.CompletedAt = &now
	c.UpdatedAt = now

	return t, nil
}

// Reject moves REQUESTED -> REJECTED. No financial side effects.
func (c *Claim) Reject(reason string, now time.Time) (Transition, error) {
	if reason == "" {
		return Transition{}, ErrReasonRequired
	}
	if c.Status != StatusRequested {
		return Transition{}, fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, c.Status, StatusRejected)
	}

	t := Transition{From: c.Status, To: StatusRejected}
	c.Status = StatusRejected
	c.ResolutionNote = reason
	c.UpdatedAt = now

	return t, nil
}

// Cancel is the buyer withdrawing the claim before processing starts:
// REQUESTED|APPROVED -> CANCELLED. No financial side effects.
func (c *Claim) Cancel(reason string, now time.Time) (Transition, error) {
	if reason == "" {
		return Transition{}, ErrReasonRequired
	}
	if c.Status != StatusRequested && c.Status != StatusApproved {
		return Transition{}, fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, c.Status, StatusCancelled)
	}

	t := Transition{From: c.Status, To: StatusCancelled}
	c.Status = StatusCancelled
	c.ResolutionNote = reason
	c.UpdatedAt = now

	return t, nil
}

func (c *Claim) requiresPhysicalLeg() bool {
	return c.Type == TypeReturn || c.Type == TypeExchange
}

// RefundsMoney reports whether completing the claim moves money back to the
// buyer. Exchanges swap goods without a monetary leg.
func (c *Claim) RefundsMoney() bool {
	return c.Type != TypeExchange
}

// AppliesCancellation reports whether the completed claim counts against
// cancelledQuantity (as opposed to refundedQuantity). Exchanges touch neither
// counter: the unit stays sold, only the stock moves.
func (c *Claim) AppliesCancellation() bool {
	return c.Type == TypeCancel
}
