package postgresrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/modu-commerce/order-core/internal/dal/interfaces/repoerrs"
	"github.com/modu-commerce/order-core/internal/dal/postgres"
	"github.com/modu-commerce/order-core/internal/service/models/mileage"
	"github.com/modu-commerce/order-core/internal/service/models/money"
)

var lotColumns = []string{
	"id",
	"buyer_id",
	"issued_amount",
	"used_amount",
	"issued_at",
	"expires_at",
	"active",
	"version",
	"created_at",
	"updated_at",
}

var transactionColumns = []string{
	"id",
	"buyer_id",
	"issue_type",
	"target_id",
	"allocations",
	"total_amount",
	"created_at",
}

// LotDal represents the mileage lot data access layer model.
type LotDal struct {
	Id           string `db:"id"`
	BuyerId      string `db:"buyer_id"`
	IssuedAmount int64  `db:"issued_amount"`
	UsedAmount   int64  `db:"used_amount"`
	IssuedAt     pgtype.Timestamptz
	ExpiresAt    pgtype.Timestamptz
	Active       bool  `db:"active"`
	Version      int64 `db:"version"`
	CreatedAt    pgtype.Timestamptz
	UpdatedAt    pgtype.Timestamptz
}

// ToModel converts LotDal to the service layer Lot model.
func (d *LotDal) ToModel() *mileage.Lot {
	return &mileage.Lot{
		ID:           d.Id,
		BuyerID:      d.BuyerId,
		IssuedAmount: money.Money(d.IssuedAmount),
		UsedAmount:   money.Money(d.UsedAmount),
		IssuedAt:     d.IssuedAt.Time,
		ExpiresAt:    d.ExpiresAt.Time,
		Active:       d.Active,
		Version:      d.Version,
		CreatedAt:    d.CreatedAt.Time,
		UpdatedAt:    d.UpdatedAt.Time,
	}
}

// LotDalFromModel converts the service layer Lot model to LotDal.
func LotDalFromModel(l *mileage.Lot) *LotDal {
	return &LotDal{
		Id:           l.ID,
		BuyerId:      l.BuyerID,
		IssuedAmount: l.IssuedAmount.Int64(),
		UsedAmount:   l.UsedAmount.Int64(),
		IssuedAt:     pgtype.Timestamptz{Time: l.IssuedAt, Valid: true},
		ExpiresAt:    pgtype.Timestamptz{Time: l.ExpiresAt, Valid: true},
		Active:       l.Active,
		Version:      l.Version,
		CreatedAt:    pgtype.Timestamptz{Time: l.CreatedAt, Valid: true},
		UpdatedAt:    pgtype.Timestamptz{Time: l.UpdatedAt, Valid: true},
	}
}

// PostgresMileageRepository persists the mileage ledger: lots and immutable
// transactions. Allocations live as jsonb on the transaction row; refunds
// replay them in recorded order.
type PostgresMileageRepository struct {
	conn postgres.GenericConn
	sb   sq.StatementBuilderType
}

// NewPostgresMileageRepository creates a new Postgres mileage repository.
func NewPostgresMileageRepository(conn postgres.GenericConn) *PostgresMileageRepository {
	return &PostgresMileageRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// ListLotsByBuyerID returns all of a buyer's lots, usable or not, earliest
// expiration first.
func (r *PostgresMileageRepository) ListLotsByBuyerID(ctx context.Context, buyerID string) ([]*mileage.Lot, error) {
	sql, args, err := r.sb.
		Select(lotColumns...).
		From("mileage_lots").
		Where(sq.Eq{"buyer_id": buyerID}).
		OrderBy("expires_at ASC", "issued_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build lots query: %w", err)
	}

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query mileage lots: %w", err)
	}
	defer rows.Close()

	var lots []*mileage.Lot
	for rows.Next() {
		var d LotDal
		err := rows.Scan(
			&d.Id, &d.BuyerId, &d.IssuedAmount, &d.UsedAmount,
			&d.IssuedAt, &d.ExpiresAt, &d.Active, &d.Version,
			&d.CreatedAt, &d.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mileage lot: %w", err)
		}
		lots = append(lots, d.ToModel())
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return lots, nil
}

// GetSpendByOrderID returns the ORDER spend transaction for an order, or
// (nil, nil) when the order spent no mileage.
func (r *PostgresMileageRepository) GetSpendByOrderID(ctx context.Context, orderID string) (*mileage.Transaction, error) {
	sql, args, err := r.sb.
		Select(transactionColumns...).
		From("mileage_transactions").
		Where(sq.Eq{"issue_type": string(mileage.IssueTypeOrder), "target_id": orderID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build spend query: %w", err)
	}

	var d struct {
		Id          string
		BuyerId     string
		IssueType   string
		TargetId    string
		Allocations []byte
		TotalAmount int64
		CreatedAt   pgtype.Timestamptz
	}
	err = r.conn.QueryRow(ctx, sql, args...).Scan(
		&d.Id, &d.BuyerId, &d.IssueType, &d.TargetId,
		&d.Allocations, &d.TotalAmount, &d.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to query spend transaction: %w", err)
	}

	tx := &mileage.Transaction{
		ID:          d.Id,
		BuyerID:     d.BuyerId,
		IssueType:   mileage.IssueType(d.IssueType),
		TargetID:    d.TargetId,
		TotalAmount: money.Money(d.TotalAmount),
		CreatedAt:   d.CreatedAt.Time,
	}
	if err := json.Unmarshal(d.Allocations, &tx.Allocations); err != nil {
		return nil, fmt.Errorf("failed to unmarshal allocations: %w", err)
	}

	return tx, nil
}

// InsertLot persists a newly issued lot.
func (r *PostgresMileageRepository) InsertLot(ctx context.Context, lot *mileage.Lot) error {
	d := LotDalFromModel(lot)

	sql, args, err := r.sb.
		Insert("mileage_lots").
		Columns(lotColumns...).
		Values(
			d.Id, d.BuyerId, d.IssuedAmount, d.UsedAmount,
			d.IssuedAt, d.ExpiresAt, d.Active, d.Version,
			d.CreatedAt, d.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build lot insert: %w", err)
	}

	if _, err := r.conn.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("failed to insert mileage lot: %w", err)
	}

	return nil
}

// UpdateLots persists usedAmount changes with a per-lot optimistic version
// check.
func (r *PostgresMileageRepository) UpdateLots(ctx context.Context, lots []*mileage.Lot) error {
	for _, lot := range lots {
		sql, args, err := r.sb.
			Update("mileage_lots").
			Set("used_amount", lot.UsedAmount.Int64()).
			Set("active", lot.Active).
			Set("version", lot.Version+1).
			Set("updated_at", pgtype.Timestamptz{Time: lot.UpdatedAt, Valid: true}).
			Where(sq.Eq{"id": lot.ID, "version": lot.Version}).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build lot update: %w", err)
		}

		tag, err := r.conn.Exec(ctx, sql, args...)
		if err != nil {
			return fmt.Errorf("failed to update mileage lot: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: lot %s version %d", repoerrs.ErrConcurrentModification, lot.ID, lot.Version)
		}

		lot.Version++
	}

	return nil
}

// InsertTransaction appends an immutable ledger transaction.
func (r *PostgresMileageRepository) InsertTransaction(ctx context.Context, tx *mileage.Transaction) error {
	allocations, err := json.Marshal(tx.Allocations)
	if err != nil {
		return fmt.Errorf("failed to marshal allocations: %w", err)
	}

	sql, args, err := r.sb.
		Insert("mileage_transactions").
		Columns(transactionColumns...).
		Values(
			tx.ID, tx.BuyerID, string(tx.IssueType), tx.TargetID,
			allocations, tx.TotalAmount.Int64(),
			pgtype.Timestamptz{Time: tx.CreatedAt, Valid: true},
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build transaction insert: %w", err)
	}

	if _, err := r.conn.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("failed to insert mileage transaction: %w", err)
	}

	return nil
}
