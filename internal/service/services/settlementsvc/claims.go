package settlementsvc

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/modu-commerce/order-core/internal/service/models/claim"
	"github.com/modu-commerce/order-core/internal/service/models/mileage"
	"github.com/modu-commerce/order-core/internal/service/models/order"
	"github.com/modu-commerce/order-core/internal/service/models/orderevent"
)

// RequestClaim opens a claim against an order, enforcing the one-open-claim-
// per-item rule against the order's existing claims.
func (s *SettlementService) RequestClaim(ctx context.Context, cmd RequestClaimCommand) (*claim.Claim, error) {
	ctx, span := otel.Tracer("settlementsvc").Start(ctx, "SettlementService.RequestClaim")
	defer span.End()

	now := s.clk.Now()

	claimID, err := s.idGen.NewID()
	if err != nil {
		return nil, err
	}

	var c *claim.Claim
	err = s.inTx(ctx, func(work UnitOfWork) error {
		o, err := work.Orders().GetByID(ctx, cmd.OrderID)
		if err != nil {
			return err
		}

		existing, err := work.Claims().ListByOrderID(ctx, cmd.OrderID)
		if err != nil {
			return err
		}

		c, err = claim.Request(claimID, o, cmd.Items, cmd.Type, cmd.Reason, existing, now)
		if err != nil {
			return err
		}

		if err := work.Claims().Insert(ctx, c); err != nil {
			return err
		}

		event := claimEvent(c, orderevent.TypeClaimRequested, "", string(c.Status), cmd.Actor, now)
		event.Description = fmt.Sprintf("%s claim for %d item(s)", c.Type, len(c.Items))
		if _, err := work.Events().Append(ctx, []orderevent.Event{event}); err != nil {
			return err
		}

		return enqueueEffects(ctx, work.Outbox(), now, []Effect{
			{RoutingKey: string(orderevent.TypeClaimRequested), Payload: c},
		})
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Claim requested",
		"claim_id", c.ID, "order_id", c.OrderID, "type", c.Type, "requested_amount", c.RequestedAmount)

	return c, nil
}

// ApproveClaim moves a claim REQUESTED -> APPROVED, fixing the amount that a
// later completion will settle.
func (s *SettlementService) ApproveClaim(ctx context.Context, cmd ApproveClaimCommand) (*claim.Claim, error) {
	return s.transitionClaim(ctx, "SettlementService.ApproveClaim", cmd.ClaimID, cmd.Actor,
		orderevent.TypeClaimApproved,
		func(c *claim.Claim, now time.Time) (claim.Transition, error) {
			return c.Approve(cmd.ApprovedAmount, now)
		})
}

// StartClaimProgress moves a claim APPROVED -> IN_PROGRESS; only returns and
// exchanges have this physical leg.
func (s *SettlementService) StartClaimProgress(ctx context.Context, cmd StartClaimProgressCommand) (*claim.Claim, error) {
	return s.transitionClaim(ctx, "SettlementService.StartClaimProgress", cmd.ClaimID, cmd.Actor,
		orderevent.TypeClaimInProgress,
		func(c *claim.Claim, now time.Time) (claim.Transition, error) { return c.StartProgress(now) })
}

// RejectClaim moves a claim REQUESTED -> REJECTED. No financial side effects.
func (s *SettlementService) RejectClaim(ctx context.Context, cmd RejectClaimCommand) (*claim.Claim, error) {
	return s.transitionClaim(ctx, "SettlementService.RejectClaim", cmd.ClaimID, cmd.Actor,
		orderevent.TypeClaimRejected,
		func(c *claim.Claim, now time.Time) (claim.Transition, error) { return c.Reject(cmd.Reason, now) })
}

// CancelClaim withdraws a claim before processing starts. No financial side
// effects; the covered items become claimable again.
func (s *SettlementService) CancelClaim(ctx context.Context, cmd CancelClaimCommand) (*claim.Claim, error) {
	return s.transitionClaim(ctx, "SettlementService.CancelClaim", cmd.ClaimID, cmd.Actor,
		orderevent.TypeClaimCancelled,
		func(c *claim.Claim, now time.Time) (claim.Transition, error) { return c.Cancel(cmd.Reason, now) })
}

func (s *SettlementService) transitionClaim(
	ctx context.Context,
	spanName, claimID string,
	actor Actor,
	eventType orderevent.EventType,
	apply func(c *claim.Claim, now time.Time) (claim.Transition, error),
) (*claim.Claim, error) {
	ctx, span := otel.Tracer("settlementsvc").Start(ctx, spanName)
	defer span.End()

	now := s.clk.Now()

	var c *claim.Claim
	err := s.inTx(ctx, func(work UnitOfWork) error {
		var err error
		c, err = work.Claims().GetByID(ctx, claimID)
		if err != nil {
			return err
		}

		tr, err := apply(c, now)
		if err != nil {
			return err
		}

		if err := work.Claims().Update(ctx, c); err != nil {
			return err
		}

		event := claimEvent(c, eventType, string(tr.From), string(tr.To), actor, now)
		if _, err := work.Events().Append(ctx, []orderevent.Event{event}); err != nil {
			return err
		}

		return enqueueEffects(ctx, work.Outbox(), now, []Effect{
			{RoutingKey: string(eventType), Payload: c},
		})
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Claim transitioned", "claim_id", c.ID, "order_id", c.OrderID, "status", c.Status)

	return c, nil
}

// CompleteClaim settles an approved or in-progress claim in one transaction:
// the claim reaches COMPLETED, item counters move, mileage spent on the order
// is refunded proportionally, and the order is cancelled when nothing
// claimable remains and cancellation is still legal.
func (s *SettlementService) CompleteClaim(ctx context.Context, cmd CompleteClaimCommand) (*claim.Claim, error) {
	ctx, span := otel.Tracer("settlementsvc").Start(ctx, "SettlementService.CompleteClaim")
	defer span.End()

	now := s.clk.Now()

	var c *claim.Claim
	err := s.inTx(ctx, func(work UnitOfWork) error {
		var err error
		c, err = work.Claims().GetByID(ctx, cmd.ClaimID)
		if err != nil {
			return err
		}

		o, err := work.Orders().GetByID(ctx, c.OrderID)
		if err != nil {
			return err
		}

		tr, err := c.Complete(now)
		if err != nil {
			return err
		}

		events := []orderevent.Event{
			claimEvent(c, orderevent.TypeClaimCompleted, string(tr.From), string(tr.To), cmd.Actor, now),
		}
		effects := []Effect{
			{RoutingKey: string(orderevent.TypeClaimCompleted), Payload: c},
		}

		itemEvents, err := applyClaimToItems(c, o, now)
		if err != nil {
			return err
		}
		events = append(events, itemEvents...)

		if c.RefundsMoney() && !c.ApprovedAmount.IsZero() {
			refundEvent, refunded, err := s.refundMileage(ctx, work, c, o, now)
			if err != nil {
				return err
			}
			if refunded {
				events = append(events, refundEvent)
			}
		}

		if o.FullyClaimed() && o.Status.CanTransitionTo(order.StatusCancelled) {
			orderTr, err := o.Cancel(now)
			if err != nil {
				return err
			}

			events = append(events, orderTransitionEvent(o.ID, orderTr, Actor{Type: orderevent.ActorSystem}, now))
			effects = append(effects, Effect{RoutingKey: string(orderevent.TypeOrderCancelled), Payload: o})
		}

		if err := work.Orders().Update(ctx, o); err != nil {
			return err
		}
		if err := work.Claims().Update(ctx, c); err != nil {
			return err
		}

		if _, err := work.Events().Append(ctx, events); err != nil {
			return err
		}

		return enqueueEffects(ctx, work.Outbox(), now, effects)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Claim completed",
		"claim_id", c.ID, "order_id", c.OrderID, "type", c.Type, "approved_amount", c.ApprovedAmount)

	return c, nil
}

// applyClaimToItems moves the order items' quantity counters for a completed
// claim. Cancellations and refunds use their respective counters; exchanges
// move stock, not sold units, and touch neither.
func applyClaimToItems(c *claim.Claim, o *order.Order, now time.Time) ([]orderevent.Event, error) {
	if c.Type == claim.TypeExchange {
		return nil, nil
	}

	eventType := orderevent.TypeItemsRefunded
	if c.AppliesCancellation() {
		eventType = orderevent.TypeItemsCancelled
	}

	events := make([]orderevent.Event, 0, len(c.Items))
	for _, claimItem := range c.Items {
		item, err := o.Item(claimItem.OrderItemID)
		if err != nil {
			return nil, err
		}

		if c.AppliesCancellation() {
			err = item.ApplyCancellation(claimItem.Quantity, now)
		} else {
			err = item.ApplyRefund(claimItem.Quantity, now)
		}
		if err != nil {
			return nil, err
		}

		events = append(events, orderevent.Event{
			OrderID:     o.ID,
			EventType:   eventType,
			EventSource: orderevent.SourceClaim,
			SourceID:    c.ID,
			ActorType:   orderevent.ActorSystem,
			Description: fmt.Sprintf("%d unit(s) of item %s", claimItem.Quantity, claimItem.OrderItemID),
			Metadata: map[string]string{
				"order_item_id": claimItem.OrderItemID,
				"quantity":      fmt.Sprintf("%d", claimItem.Quantity),
				"item_status":   string(item.Status),
			},
			CreatedAt: now,
		})
	}

	return events, nil
}

// refundMileage reverses the order's original mileage spend in proportion to
// the approved refund amount. Returns refunded=false when the order spent no
// mileage or the proportion floors to zero.
func (s *SettlementService) refundMileage(
	ctx context.Context,
	work UnitOfWork,
	c *claim.Claim,
	o *order.Order,
	now time.Time,
) (orderevent.Event, bool, error) {
	spend, err := work.Mileage().GetSpendByOrderID(ctx, o.ID)
	if err != nil {
		return orderevent.Event{}, false, err
	}
	if spend == nil {
		return orderevent.Event{}, false, nil
	}

	lots, err := work.Mileage().ListLotsByBuyerID(ctx, c.BuyerID)
	if err != nil {
		return orderevent.Event{}, false, err
	}

	lotsByID := make(map[string]*mileage.Lot, len(lots))
	for _, lot := range lots {
		lotsByID[lot.ID] = lot
	}

	txID, err := s.idGen.NewID()
	if err != nil {
		return orderevent.Event{}, false, err
	}
	bonusLotID, err := s.idGen.NewID()
	if err != nil {
		return orderevent.Event{}, false, err
	}

	tx, bonus, err := mileage.RefundForClaim(
		lotsByID, spend, c.ApprovedAmount, o.TotalAmount, s.refundPolicy, txID, bonusLotID, c.ID, now,
	)
	if err != nil {
		return orderevent.Event{}, false, err
	}
	if tx == nil {
		return orderevent.Event{}, false, nil
	}

	touched := make([]*mileage.Lot, 0, len(tx.Allocations))
	for _, alloc := range tx.Allocations {
		if bonus != nil && alloc.LotID == bonus.ID {
			continue
		}
		touched = append(touched, lotsByID[alloc.LotID])
	}

	if err := work.Mileage().UpdateLots(ctx, touched); err != nil {
		return orderevent.Event{}, false, err
	}
	if bonus != nil {
		if err := work.Mileage().InsertLot(ctx, bonus); err != nil {
			return orderevent.Event{}, false, err
		}
	}
	if err := work.Mileage().InsertTransaction(ctx, tx); err != nil {
		return orderevent.Event{}, false, err
	}

	return orderevent.Event{
		OrderID:     o.ID,
		EventType:   orderevent.TypeMileageRefunded,
		EventSource: orderevent.SourceClaim,
		SourceID:    c.ID,
		ActorType:   orderevent.ActorSystem,
		Description: fmt.Sprintf("refunded %d mileage for claim %s", tx.TotalAmount, c.ID),
		Metadata:    map[string]string{"transaction_id": tx.ID},
		CreatedAt:   now,
	}, true, nil
}

// claimEvent builds an audit event for a claim status change. Claim events
// carry the owning order id so a single query reconstructs the full timeline.
func claimEvent(
	c *claim.Claim,
	eventType orderevent.EventType,
	previous, current string,
	actor Actor,
	now time.Time,
) orderevent.Event {
	return orderevent.Event{
		OrderID:        c.OrderID,
		EventType:      eventType,
		EventSource:    orderevent.SourceClaim,
		SourceID:       c.ID,
		PreviousStatus: previous,
		CurrentStatus:  current,
		ActorType:      actor.Type,
		ActorID:        actor.ID,
		CreatedAt:      now,
	}
}
