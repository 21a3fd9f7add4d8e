package mileage

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/modu-commerce/order-core/internal/service/models/money"
)

var (
	ErrLotNotFound         = errors.New("mileage lot not found")
	ErrInsufficientMileage = errors.New("insufficient mileage balance")
	ErrExpiredLotRefund    = errors.New("refund would revive an expired mileage lot")
	ErrNothingSpent        = errors.New("transaction has no spendable total")
)

// IssueType classifies a mileage transaction by what triggered it.
type IssueType string

const (
	IssueTypeOrder  IssueType = "ORDER"
	IssueTypeClaim  IssueType = "CLAIM"
	IssueTypeRefund IssueType = "REFUND"
)

// RefundPolicy selects how refunds treat lots that expired after the spend.
type RefundPolicy string

const (
	// PolicyReviveExpired restores usedAmount on expired lots. The points stay
	// unusable for new spending (the lot is still past its expiration) but the
	// books balance and the round-trip law holds.
	PolicyReviveExpired RefundPolicy = "REVIVE_EXPIRED"

	// PolicyStrict refuses to touch expired lots; the whole refund fails.
	PolicyStrict RefundPolicy = "STRICT"
)

// Lot is a single issuance of mileage to a buyer. A lot that is exhausted,
// expired or deactivated is unusable for new spending but stays visible for
// historical refund computation.
type Lot struct {
	ID           string      `json:"id"`
	BuyerID      string      `json:"buyerId"`
	IssuedAmount money.Money `json:"issuedAmount"`
	UsedAmount   money.Money `json:"usedAmount"`
	IssuedAt     time.Time   `json:"issuedAt"`
	ExpiresAt    time.Time   `json:"expiresAt"`
	Active       bool        `json:"active"`
	Version      int64       `json:"version"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

// Remaining is the spendable balance left on the lot.
func (l *Lot) Remaining() money.Money {
	return l.IssuedAmount - l.UsedAmount
}

// Usable reports whether the lot can cover new spending at the given time.
func (l *Lot) Usable(now time.Time) bool {
	return l.Active && now.Before(l.ExpiresAt) && l.Remaining() > 0
}

// Allocation records how much of a transaction landed on one lot. Order
// matters: refunds reverse allocations against the same lots in the same
// order.
type Allocation struct {
	LotID  string      `json:"lotId"`
	Amount money.Money `json:"amount"`
}

// Transaction is the immutable record of a spend or refund tied to an order
// or claim.
type Transaction struct {
	ID          string       `json:"id"`
	BuyerID     string       `json:"buyerId"`
	IssueType   IssueType    `json:"issueType"`
	TargetID    string       `json:"targetId"`
	Allocations []Allocation `json:"allocations"`
	TotalAmount money.Money  `json:"totalAmount"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// Balance sums the remaining amounts of the buyer's usable lots.
func Balance(lots []*Lot, now time.Time) money.Money {
	var total money.Money
	for _, lot := range lots {
		if lot.Usable(now) {
			total += lot.Remaining()
		}
	}

	return total
}

// Spend allocates amount across the buyer's lots, earliest expiration first
// (ties broken by issue time), greedily draining each lot's remaining balance.
// Touched lots get their UsedAmount incremented in place; the returned
// transaction records the per-lot allocation needed for exact reversal later.
func Spend(
	lots []*Lot,
	buyerID string,
	amount money.Money,
	targetID string,
	txID string,
	now time.Time,
) (*Transaction, error) {
	if amount.IsZero() {
		return nil, fmt.Errorf("%w: spend of 0 for %s", ErrNothingSpent, targetID)
	}

	candidates := make([]*Lot, 0, len(lots))
	var available money.Money
	for _, lot := range lots {
		if lot.Usable(now) {
			candidates = append(candidates, lot)
			available += lot.Remaining()
		}
	}

	if available < amount {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientMileage, available, amount)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if !candidates[i].ExpiresAt.Equal(candidates[j].ExpiresAt) {
			return candidates[i].ExpiresAt.Before(candidates[j].ExpiresAt)
		}
		return candidates[i].IssuedAt.Before(candidates[j].IssuedAt)
	})

	remaining := amount
	allocations := make([]Allocation, 0, len(candidates))
	for _, lot := range candidates {
		if remaining.IsZero() {
			break
		}

		take := lot.Remaining()
		if take > remaining {
			take = remaining
		}

		lot.UsedAmount += take
		lot.UpdatedAt = now
		remaining -= take

		allocations = append(allocations, Allocation{LotID: lot.ID, Amount: take})
	}

	return &Transaction{
		ID:          txID,
		BuyerID:     buyerID,
		IssueType:   IssueTypeOrder,
		TargetID:    targetID,
		Allocations: allocations,
		TotalAmount: amount,
		CreatedAt:   now,
	}, nil
}

// RefundForClaim reverses a spend proportionally to a monetary refund:
//
//	refundMileage = floor(original.TotalAmount * refundAmount / orderAmount)
//
// The division floors — buyers are rounded down, never credited beyond the
// proportion. Reversal walks the original allocations in order, decrementing
// each lot's UsedAmount by at most what that allocation consumed. Expired lots
// are handled per policy. Whatever cannot be put back on the recorded lots is
// issued as a fresh bonus lot so the buyer is never short-changed.
func RefundForClaim(
	lotsByID map[string]*Lot,
	original *Transaction,
	refundAmount, orderAmount money.Money,
	policy RefundPolicy,
	txID, bonusLotID, claimID string,
	now time.Time,
) (*Transaction, *Lot, error) {
	if original.TotalAmount.IsZero() {
		return nil, nil, fmt.Errorf("%w: transaction %s", ErrNothingSpent, original.ID)
	}

	refundMileage, err := original.TotalAmount.Ratio(refundAmount, orderAmount)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to compute refund proportion: %w", err)
	}
	if refundMileage.IsZero() {
		return nil, nil, nil
	}

	// Plan the reversal first so a policy failure leaves every lot untouched.
	remaining := refundMileage
	type reversal struct {
		lot  *Lot
		give money.Money
	}
	plan := make([]reversal, 0, len(original.Allocations))
	for _, alloc := range original.Allocations {
		if remaining.IsZero() {
			break
		}

		lot, ok := lotsByID[alloc.LotID]
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s referenced by transaction %s", ErrLotNotFound, alloc.LotID, original.ID)
		}

		give := alloc.Amount
		if give > remaining {
			give = remaining
		}
		// Never put back more than the lot currently has used; an earlier
		// partial refund may already have reversed part of this allocation.
		if give > lot.UsedAmount {
			give = lot.UsedAmount
		}
		if give.IsZero() {
			continue
		}

		if !now.Before(lot.ExpiresAt) && policy == PolicyStrict {
			return nil, nil, fmt.Errorf("%w: lot %s expired %s", ErrExpiredLotRefund, lot.ID, lot.ExpiresAt.Format(time.RFC3339))
		}

		plan = append(plan, reversal{lot: lot, give: give})
		remaining -= give
	}

	allocations := make([]Allocation, 0, len(plan)+1)
	for _, rev := range plan {
		rev.lot.UsedAmount -= rev.give
		rev.lot.UpdatedAt = now
		allocations = append(allocations, Allocation{LotID: rev.lot.ID, Amount: rev.give})
	}

	var bonus *Lot
	if remaining > 0 {
		bonus = &Lot{
			ID:           bonusLotID,
			BuyerID:      original.BuyerID,
			IssuedAmount: remaining,
			IssuedAt:     now,
			ExpiresAt:    now.AddDate(1, 0, 0),
			Active:       true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		allocations = append(allocations, Allocation{LotID: bonus.ID, Amount: remaining})
	}

	return &Transaction{
		ID:          txID,
		BuyerID:     original.BuyerID,
		IssueType:   IssueTypeRefund,
		TargetID:    claimID,
		Allocations: allocations,
		TotalAmount: refundMileage,
		CreatedAt:   now,
	}, bonus, nil
}
