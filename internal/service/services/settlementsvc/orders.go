package settlementsvc

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/modu-commerce/order-core/internal/service/models/mileage"
	"github.com/modu-commerce/order-core/internal/service/models/money"
	"github.com/modu-commerce/order-core/internal/service/models/order"
	"github.com/modu-commerce/order-core/internal/service/models/orderevent"
	"github.com/modu-commerce/order-core/internal/service/models/orderitem"
)

// inTx runs fn inside a fresh unit of work, committing on success and rolling
// back on any error.
func (s *SettlementService) inTx(ctx context.Context, fn func(work UnitOfWork) error) error {
	work := s.newUOW()

	if err := work.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin unit of work: %w", err)
	}

	if err := fn(work); err != nil {
		if rbErr := work.Rollback(ctx); rbErr != nil {
			slog.Error("Failed to roll back unit of work", "error", rbErr)
		}

		return err
	}

	if err := work.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit unit of work: %w", err)
	}

	return nil
}

// PlaceOrder creates a pending order from checkout data and, when requested,
// spends buyer mileage against it.
func (s *SettlementService) PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (*order.Order, error) {
	ctx, span := otel.Tracer("settlementsvc").Start(ctx, "SettlementService.PlaceOrder")
	defer span.End()

	now := s.clk.Now()

	orderID, err := s.idGen.NewID()
	if err != nil {
		return nil, err
	}

	items := make([]orderitem.OrderItem, 0, len(cmd.Items))
	for _, line := range cmd.Items {
		itemID, err := s.idGen.NewID()
		if err != nil {
			return nil, err
		}

		item, err := orderitem.New(
			itemID, line.ProductID, line.ProductStockID,
			line.Quantity, line.UnitPrice, line.Snapshot, now,
		)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	o, err := order.New(
		orderID, orderNumber(orderID, now),
		cmd.CheckoutID, cmd.PaymentID, cmd.SellerID, cmd.BuyerID,
		items, cmd.Discounts, cmd.ShippingFee, cmd.Shipping, now,
	)
	if err != nil {
		return nil, err
	}

	err = s.inTx(ctx, func(work UnitOfWork) error {
		events := []orderevent.Event{{
			OrderID:       o.ID,
			EventType:     orderevent.TypeOrderPlaced,
			EventSource:   orderevent.SourceOrder,
			CurrentStatus: string(o.Status),
			ActorType:     cmd.Actor.Type,
			ActorID:       cmd.Actor.ID,
			Description:   "order placed from checkout " + cmd.CheckoutID,
			CreatedAt:     now,
		}}

		if !cmd.MileageToSpend.IsZero() {
			spendEvent, err := s.spendMileage(ctx, work, o, cmd.MileageToSpend, now)
			if err != nil {
				return err
			}
			events = append(events, spendEvent)
		}

		if err := work.Orders().Insert(ctx, o); err != nil {
			return err
		}

		if _, err := work.Events().Append(ctx, events); err != nil {
			return err
		}

		return enqueueEffects(ctx, work.Outbox(), now, []Effect{
			{RoutingKey: "order.placed", Payload: o},
		})
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Order placed", "order_id", o.ID, "order_number", o.Number, "buyer_id", o.BuyerID)

	return o, nil
}

// spendMileage allocates the buyer's lots against the new order and records
// the ledger transaction; called inside PlaceOrder's unit of work.
func (s *SettlementService) spendMileage(
	ctx context.Context,
	work UnitOfWork,
	o *order.Order,
	amount money.Money,
	now time.Time,
) (orderevent.Event, error) {
	lots, err := work.Mileage().ListLotsByBuyerID(ctx, o.BuyerID)
	if err != nil {
		return orderevent.Event{}, err
	}

	txID, err := s.idGen.NewID()
	if err != nil {
		return orderevent.Event{}, err
	}

	tx, err := mileage.Spend(lots, o.BuyerID, amount, o.ID, txID, now)
	if err != nil {
		return orderevent.Event{}, err
	}

	touched := make([]*mileage.Lot, 0, len(tx.Allocations))
	for _, alloc := range tx.Allocations {
		for _, lot := range lots {
			if lot.ID == alloc.LotID {
				touched = append(touched, lot)
				break
			}
		}
	}

	if err := work.Mileage().UpdateLots(ctx, touched); err != nil {
		return orderevent.Event{}, err
	}
	if err := work.Mileage().InsertTransaction(ctx, tx); err != nil {
		return orderevent.Event{}, err
	}

	return orderevent.Event{
		OrderID:     o.ID,
		EventType:   orderevent.TypeMileageSpent,
		EventSource: orderevent.SourceOrder,
		ActorType:   orderevent.ActorSystem,
		Description: fmt.Sprintf("spent %d mileage across %d lots", tx.TotalAmount, len(tx.Allocations)),
		Metadata:    map[string]string{"transaction_id": tx.ID},
		CreatedAt:   now,
	}, nil
}

// ConfirmOrder moves an order PENDING -> CONFIRMED and appends one event.
func (s *SettlementService) ConfirmOrder(ctx context.Context, cmd ConfirmOrderCommand) (*order.Order, error) {
	return s.transitionOrder(ctx, "SettlementService.ConfirmOrder", cmd.OrderID, cmd.Actor,
		func(o *order.Order, now time.Time) (order.Transition, error) { return o.Confirm(now) })
}

// ShipOrder moves an order CONFIRMED -> SHIPPED and appends one event.
func (s *SettlementService) ShipOrder(ctx context.Context, cmd ShipOrderCommand) (*order.Order, error) {
	return s.transitionOrder(ctx, "SettlementService.ShipOrder", cmd.OrderID, cmd.Actor,
		func(o *order.Order, now time.Time) (order.Transition, error) { return o.Ship(now) })
}

// DeliverOrder moves an order SHIPPED -> DELIVERED and appends one event.
func (s *SettlementService) DeliverOrder(ctx context.Context, cmd DeliverOrderCommand) (*order.Order, error) {
	return s.transitionOrder(ctx, "SettlementService.DeliverOrder", cmd.OrderID, cmd.Actor,
		func(o *order.Order, now time.Time) (order.Transition, error) { return o.Deliver(now) })
}

// CompleteOrder moves an order DELIVERED -> COMPLETED and appends one event.
func (s *SettlementService) CompleteOrder(ctx context.Context, cmd CompleteOrderCommand) (*order.Order, error) {
	return s.transitionOrder(ctx, "SettlementService.CompleteOrder", cmd.OrderID, cmd.Actor,
		func(o *order.Order, now time.Time) (order.Transition, error) { return o.Complete(now) })
}

func (s *SettlementService) transitionOrder(
	ctx context.Context,
	spanName, orderID string,
	actor Actor,
	apply func(o *order.Order, now time.Time) (order.Transition, error),
) (*order.Order, error) {
	ctx, span := otel.Tracer("settlementsvc").Start(ctx, spanName)
	defer span.End()

	now := s.clk.Now()

	var o *order.Order
	err := s.inTx(ctx, func(work UnitOfWork) error {
		var err error
		o, err = work.Orders().GetByID(ctx, orderID)
		if err != nil {
			return err
		}

		tr, err := apply(o, now)
		if err != nil {
			return err
		}

		if err := work.Orders().Update(ctx, o); err != nil {
			return err
		}

		event := orderTransitionEvent(o.ID, tr, actor, now)
		if _, err := work.Events().Append(ctx, []orderevent.Event{event}); err != nil {
			return err
		}

		return enqueueEffects(ctx, work.Outbox(), now, []Effect{
			{RoutingKey: string(event.EventType), Payload: o},
		})
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Order transitioned", "order_id", o.ID, "status", o.Status)

	return o, nil
}

// orderTransitionEvent builds the single audit event for an order status
// change.
func orderTransitionEvent(orderID string, tr order.Transition, actor Actor, now time.Time) orderevent.Event {
	eventTypes := map[order.Status]orderevent.EventType{
		order.StatusConfirmed: orderevent.TypeOrderConfirmed,
		order.StatusShipped:   orderevent.TypeOrderShipped,
		order.StatusDelivered: orderevent.TypeOrderDelivered,
		order.StatusCompleted: orderevent.TypeOrderCompleted,
		order.StatusCancelled: orderevent.TypeOrderCancelled,
	}

	return orderevent.Event{
		OrderID:        orderID,
		EventType:      eventTypes[tr.To],
		EventSource:    orderevent.SourceOrder,
		PreviousStatus: string(tr.From),
		CurrentStatus:  string(tr.To),
		ActorType:      actor.Type,
		ActorID:        actor.ID,
		CreatedAt:      now,
	}
}

// GetTimeline reconstructs what happened to an order and when. This is the
// only sanctioned way to read history; current-state fields discard
// intermediate transitions.
func (s *SettlementService) GetTimeline(ctx context.Context, orderID string) ([]orderevent.Event, error) {
	ctx, span := otel.Tracer("settlementsvc").Start(ctx, "SettlementService.GetTimeline")
	defer span.End()

	work := s.newUOW()

	events, err := work.Events().ListTimeline(ctx, orderID)
	if err != nil {
		return nil, err
	}

	orderevent.SortTimeline(events)

	return events, nil
}

// GetMileageBalance returns the buyer's spendable mileage balance.
func (s *SettlementService) GetMileageBalance(ctx context.Context, buyerID string) (money.Money, error) {
	ctx, span := otel.Tracer("settlementsvc").Start(ctx, "SettlementService.GetMileageBalance")
	defer span.End()

	work := s.newUOW()

	lots, err := work.Mileage().ListLotsByBuyerID(ctx, buyerID)
	if err != nil {
		return 0, err
	}

	return mileage.Balance(lots, s.clk.Now()), nil
}

// orderNumber derives the human-readable order number from the order id and
// the order date.
func orderNumber(orderID string, now time.Time) string {
	suffix := strings.ReplaceAll(orderID, "-", "")
	if len(suffix) > 8 {
		suffix = suffix[len(suffix)-8:]
	}

	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), strings.ToUpper(suffix))
}
