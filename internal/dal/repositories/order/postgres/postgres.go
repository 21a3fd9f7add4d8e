package postgresrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/modu-commerce/order-core/internal/dal/interfaces/repoerrs"
	"github.com/modu-commerce/order-core/internal/dal/postgres"
	"github.com/modu-commerce/order-core/internal/service/models/money"
	"github.com/modu-commerce/order-core/internal/service/models/order"
	"github.com/modu-commerce/order-core/internal/service/models/orderitem"
)

var orderColumns = []string{
	"id",
	"number",
	"checkout_id",
	"payment_id",
	"seller_id",
	"buyer_id",
	"status",
	"shipping",
	"total_item_amount",
	"discount_amount",
	"discounts",
	"shipping_fee",
	"total_amount",
	"version",
	"ordered_at",
	"confirmed_at",
	"shipped_at",
	"delivered_at",
	"completed_at",
	"cancelled_at",
	"created_at",
	"updated_at",
}

var itemColumns = []string{
	"id",
	"order_id",
	"product_id",
	"product_stock_id",
	"ordered_quantity",
	"cancelled_quantity",
	"refunded_quantity",
	"unit_price",
	"total_price",
	"status",
	"snapshot",
	"created_at",
	"updated_at",
}

// OrderDal represents the order data access layer model. Shipping and
// discounts are stored as jsonb.
type OrderDal struct {
	Id              string `db:"id"`
	Number          string `db:"number"`
	CheckoutId      string `db:"checkout_id"`
	PaymentId       string `db:"payment_id"`
	SellerId        string `db:"seller_id"`
	BuyerId         string `db:"buyer_id"`
	Status          string `db:"status"`
	Shipping        []byte `db:"shipping"`
	TotalItemAmount int64  `db:"total_item_amount"`
	DiscountAmount  int64  `db:"discount_amount"`
	Discounts       []byte `db:"discounts"`
	ShippingFee     int64  `db:"shipping_fee"`
	TotalAmount     int64  `db:"total_amount"`
	Version         int64  `db:"version"`
	OrderedAt       pgtype.Timestamptz
	ConfirmedAt     pgtype.Timestamptz
	ShippedAt       pgtype.Timestamptz
	DeliveredAt     pgtype.Timestamptz
	CompletedAt     pgtype.Timestamptz
	CancelledAt     pgtype.Timestamptz
	CreatedAt       pgtype.Timestamptz
	UpdatedAt       pgtype.Timestamptz
}

// ToModel converts OrderDal to the service layer Order model. Items are
// attached separately.
func (d *OrderDal) ToModel() (*order.Order, error) {
	o := &order.Order{
		ID:              d.Id,
		Number:          d.Number,
		CheckoutID:      d.CheckoutId,
		PaymentID:       d.PaymentId,
		SellerID:        d.SellerId,
		BuyerID:         d.BuyerId,
		Status:          order.Status(d.Status),
		TotalItemAmount: money.Money(d.TotalItemAmount),
		DiscountAmount:  money.Money(d.DiscountAmount),
		ShippingFee:     money.Money(d.ShippingFee),
		TotalAmount:     money.Money(d.TotalAmount),
		Version:         d.Version,
		OrderedAt:       d.OrderedAt.Time,
		ConfirmedAt:     optionalTime(d.ConfirmedAt),
		ShippedAt:       optionalTime(d.ShippedAt),
		DeliveredAt:     optionalTime(d.DeliveredAt),
		CompletedAt:     optionalTime(d.CompletedAt),
		CancelledAt:     optionalTime(d.CancelledAt),
		CreatedAt:       d.CreatedAt.Time,
		UpdatedAt:       d.UpdatedAt.Time,
	}

	if len(d.Shipping) > 0 {
		var shipping order.ShippingInfo
		if err := json.Unmarshal(d.Shipping, &shipping); err != nil {
			return nil, fmt.Errorf("failed to unmarshal shipping info: %w", err)
		}
		o.Shipping = &shipping
	}

	if len(d.Discounts) > 0 {
		if err := json.Unmarshal(d.Discounts, &o.Discounts); err != nil {
			return nil, fmt.Errorf("failed to unmarshal discounts: %w", err)
		}
	}

	return o, nil
}

// OrderDalFromModel converts the service layer Order model to OrderDal.
func OrderDalFromModel(o *order.Order) (*OrderDal, error) {
	d := &OrderDal{
		Id:              o.ID,
		Number:          o.Number,
		CheckoutId:      o.CheckoutID,
		PaymentId:       o.PaymentID,
		SellerId:        o.SellerID,
		BuyerId:         o.BuyerID,
		Status:          string(o.Status),
		TotalItemAmount: o.TotalItemAmount.Int64(),
		DiscountAmount:  o.DiscountAmount.Int64(),
		ShippingFee:     o.ShippingFee.Int64(),
		TotalAmount:     o.TotalAmount.Int64(),
		Version:         o.Version,
		OrderedAt:       pgtype.Timestamptz{Time: o.OrderedAt, Valid: true},
		ConfirmedAt:     timestamptz(o.ConfirmedAt),
		ShippedAt:       timestamptz(o.ShippedAt),
		DeliveredAt:     timestamptz(o.DeliveredAt),
		CompletedAt:     timestamptz(o.CompletedAt),
		CancelledAt:     timestamptz(o.CancelledAt),
		CreatedAt:       pgtype.Timestamptz{Time: o.CreatedAt, Valid: true},
		UpdatedAt:       pgtype.Timestamptz{Time: o.UpdatedAt, Valid: true},
	}

	if o.Shipping != nil {
		shipping, err := json.Marshal(o.Shipping)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal shipping info: %w", err)
		}
		d.Shipping = shipping
	}

	if len(o.Discounts) > 0 {
		discounts, err := json.Marshal(o.Discounts)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal discounts: %w", err)
		}
		d.Discounts = discounts
	}

	return d, nil
}

// OrderItemDal represents the order item data access layer model. The product
// snapshot is stored as jsonb.
type OrderItemDal struct {
	Id                string `db:"id"`
	OrderId           string `db:"order_id"`
	ProductId         string `db:"product_id"`
	ProductStockId    string `db:"product_stock_id"`
	OrderedQuantity   int    `db:"ordered_quantity"`
	CancelledQuantity int    `db:"cancelled_quantity"`
	RefundedQuantity  int    `db:"refunded_quantity"`
	UnitPrice         int64  `db:"unit_price"`
	TotalPrice        int64  `db:"total_price"`
	Status            string `db:"status"`
	Snapshot          []byte `db:"snapshot"`
	CreatedAt         pgtype.Timestamptz
	UpdatedAt         pgtype.Timestamptz
}

// ToModel converts OrderItemDal to the service layer OrderItem model.
func (d *OrderItemDal) ToModel() (orderitem.OrderItem, error) {
	item := orderitem.OrderItem{
		ID:                d.Id,
		OrderID:           d.OrderId,
		ProductID:         d.ProductId,
		ProductStockID:    d.ProductStockId,
		OrderedQuantity:   d.OrderedQuantity,
		CancelledQuantity: d.CancelledQuantity,
		RefundedQuantity:  d.RefundedQuantity,
		UnitPrice:         money.Money(d.UnitPrice),
		TotalPrice:        money.Money(d.TotalPrice),
		Status:            orderitem.Status(d.Status),
		CreatedAt:         d.CreatedAt.Time,
		UpdatedAt:         d.UpdatedAt.Time,
	}

	if len(d.Snapshot) > 0 {
		if err := json.Unmarshal(d.Snapshot, &item.Snapshot); err != nil {
			return orderitem.OrderItem{}, fmt.Errorf("failed to unmarshal product snapshot: %w", err)
		}
	}

	return item, nil
}

// OrderItemDalFromModel converts the service layer OrderItem model to
// OrderItemDal.
func OrderItemDalFromModel(item *orderitem.OrderItem) (*OrderItemDal, error) {
	snapshot, err := json.Marshal(item.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal product snapshot: %w", err)
	}

	return &OrderItemDal{
		Id:                item.ID,
		OrderId:           item.OrderID,
		ProductId:         item.ProductID,
		ProductStockId:    item.ProductStockID,
		OrderedQuantity:   item.OrderedQuantity,
		CancelledQuantity: item.CancelledQuantity,
		RefundedQuantity:  item.RefundedQuantity,
		UnitPrice:         item.UnitPrice.Int64(),
		TotalPrice:        item.TotalPrice.Int64(),
		Status:            string(item.Status),
		Snapshot:          snapshot,
		CreatedAt:         pgtype.Timestamptz{Time: item.CreatedAt, Valid: true},
		UpdatedAt:         pgtype.Timestamptz{Time: item.UpdatedAt, Valid: true},
	}, nil
}

// PostgresOrderRepository persists the order aggregate: the orders row plus
// its order_items rows, loaded and saved together.
type PostgresOrderRepository struct {
	conn postgres.GenericConn
	sb   sq.StatementBuilderType
}

// NewPostgresOrderRepository creates a new Postgres order repository.
func NewPostgresOrderRepository(conn postgres.GenericConn) *PostgresOrderRepository {
	return &PostgresOrderRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// GetByID loads an order with its items.
func (r *PostgresOrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	sql, args, err := r.sb.
		Select(orderColumns...).
		From("orders").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build order query: %w", err)
	}

	var d OrderDal
	err = r.conn.QueryRow(ctx, sql, args...).Scan(
		&d.Id, &d.Number, &d.CheckoutId, &d.PaymentId, &d.SellerId, &d.BuyerId,
		&d.Status, &d.Shipping, &d.TotalItemAmount, &d.DiscountAmount,
		&d.Discounts, &d.ShippingFee, &d.TotalAmount, &d.Version,
		&d.OrderedAt, &d.ConfirmedAt, &d.ShippedAt, &d.DeliveredAt,
		&d.CompletedAt, &d.CancelledAt, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", order.ErrNotFound, id)
		}

		return nil, fmt.Errorf("failed to query order: %w", err)
	}

	o, err := d.ToModel()
	if err != nil {
		return nil, err
	}

	o.Items, err = r.listItems(ctx, id)
	if err != nil {
		return nil, err
	}

	return o, nil
}

func (r *PostgresOrderRepository) listItems(ctx context.Context, orderID string) ([]orderitem.OrderItem, error) {
	sql, args, err := r.sb.
		Select(itemColumns...).
		From("order_items").
		Where(sq.Eq{"order_id": orderID}).
		OrderBy("created_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build order items query: %w", err)
	}

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var items []orderitem.OrderItem
	for rows.Next() {
		var d OrderItemDal
		err := rows.Scan(
			&d.Id, &d.OrderId, &d.ProductId, &d.ProductStockId,
			&d.OrderedQuantity, &d.CancelledQuantity, &d.RefundedQuantity,
			&d.UnitPrice, &d.TotalPrice, &d.Status, &d.Snapshot,
			&d.CreatedAt, &d.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}

		item, err := d.ToModel()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return items, nil
}

// Insert persists a new order and its items.
func (r *PostgresOrderRepository) Insert(ctx context.Context, o *order.Order) error {
	d, err := OrderDalFromModel(o)
	if err != nil {
		return err
	}

	sql, args, err := r.sb.
		Insert("orders").
		Columns(orderColumns...).
		Values(
			d.Id, d.Number, d.CheckoutId, d.PaymentId, d.SellerId, d.BuyerId,
			d.Status, d.Shipping, d.TotalItemAmount, d.DiscountAmount,
			d.Discounts, d.ShippingFee, d.TotalAmount, d.Version,
			d.OrderedAt, d.ConfirmedAt, d.ShippedAt, d.DeliveredAt,
			d.CompletedAt, d.CancelledAt, d.CreatedAt, d.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build order insert: %w", err)
	}

	if _, err := r.conn.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range o.Items {
		if err := r.insertItem(ctx, &o.Items[i]); err != nil {
			return err
		}
	}

	return nil
}

func (r *PostgresOrderRepository) insertItem(ctx context.Context, item *orderitem.OrderItem) error {
	d, err := OrderItemDalFromModel(item)
	if err != nil {
		return err
	}

	sql, args, err := r.sb.
		Insert("order_items").
		Columns(itemColumns...).
		Values(
			d.Id, d.OrderId, d.ProductId, d.ProductStockId,
			d.OrderedQuantity, d.CancelledQuantity, d.RefundedQuantity,
			d.UnitPrice, d.TotalPrice, d.Status, d.Snapshot,
			d.CreatedAt, d.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build order item insert: %w", err)
	}

	if _, err := r.conn.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("failed to insert order item: %w", err)
	}

	return nil
}

// Update persists the order and its items with an optimistic version check.
// The WHERE clause matches the loaded version; zero affected rows means a
// concurrent writer got there first.
func (r *PostgresOrderRepository) Update(ctx context.Context, o *order.Order) error {
	d, err := OrderDalFromModel(o)
	if err != nil {
		return err
	}

	sql, args, err := r.sb.
		Update("orders").
		Set("status", d.Status).
		Set("version", d.Version+1).
		Set("confirmed_at", d.ConfirmedAt).
		Set("shipped_at", d.ShippedAt).
		Set("delivered_at", d.DeliveredAt).
		Set("completed_at", d.CompletedAt).
		Set("cancelled_at", d.CancelledAt).
		Set("updated_at", d.UpdatedAt).
		Where(sq.Eq{"id": d.Id, "version": d.Version}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build order update: %w", err)
	}

	tag, err := r.conn.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: order %s version %d", repoerrs.ErrConcurrentModification, d.Id, d.Version)
	}

	o.Version++

	for i := range o.Items {
		if err := r.updateItem(ctx, &o.Items[i]); err != nil {
			return err
		}
	}

	return nil
}

func (r *PostgresOrderRepository) updateItem(ctx context.Context, item *orderitem.OrderItem) error {
	sql, args, err := r.sb.
		Update("order_items").
		Set("cancelled_quantity", item.CancelledQuantity).
		Set("refunded_quantity", item.RefundedQuantity).
		Set("status", string(item.Status)).
		Set("updated_at", pgtype.Timestamptz{Time: item.UpdatedAt, Valid: true}).
		Where(sq.Eq{"id": item.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build order item update: %w", err)
	}

	if _, err := r.conn.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("failed to update order item: %w", err)
	}

	return nil
}

func optionalTime(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time

	return &t
}

func timestamptz(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}

	return pgtype.Timestamptz{Time: *t, Valid: true}
}
