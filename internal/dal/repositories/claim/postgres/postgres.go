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
	"github.com/modu-commerce/order-core/internal/service/models/claim"
	"github.com/modu-commerce/order-core/internal/service/models/money"
)

var claimColumns = []string{
	"id",
	"order_id",
	"buyer_id",
	"type",
	"status",
	"items",
	"requested_amount",
	"approved_amount",
	"reason",
	"resolution_note",
	"version",
	"created_at",
	"updated_at",
	"completed_at",
}

// ClaimDal represents the claim data access layer model. Items are stored as
// jsonb; a claim covers a handful of lines and is always read whole.
type ClaimDal struct {
	Id              string `db:"id"`
	OrderId         string `db:"order_id"`
	BuyerId         string `db:"buyer_id"`
	Type            string `db:"type"`
	Status          string `db:"status"`
	Items           []byte `db:"items"`
	RequestedAmount int64  `db:"requested_amount"`
	ApprovedAmount  int64  `db:"approved_amount"`
	Reason          string `db:"reason"`
	ResolutionNote  string `db:"resolution_note"`
	Version         int64  `db:"version"`
	CreatedAt       pgtype.Timestamptz
	UpdatedAt       pgtype.Timestamptz
	CompletedAt     pgtype.Timestamptz
}

// ToModel converts ClaimDal to the service layer Claim model.
func (d *ClaimDal) ToModel() (*claim.Claim, error) {
	c := &claim.Claim{
		ID:              d.Id,
		OrderID:         d.OrderId,
		BuyerID:         d.BuyerId,
		Type:            claim.Type(d.Type),
		Status:          claim.Status(d.Status),
		RequestedAmount: money.Money(d.RequestedAmount),
		ApprovedAmount:  money.Money(d.ApprovedAmount),
		Reason:          d.Reason,
		ResolutionNote:  d.ResolutionNote,
		Version:         d.Version,
		CreatedAt:       d.CreatedAt.Time,
		UpdatedAt:       d.UpdatedAt.Time,
	}

	if d.CompletedAt.Valid {
		t := d.CompletedAt.Time
		c.CompletedAt = &t
	}

	if len(d.Items) > 0 {
		if err := json.Unmarshal(d.Items, &c.Items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal claim items: %w", err)
		}
	}

	return c, nil
}

// ClaimDalFromModel converts the service layer Claim model to ClaimDal.
func ClaimDalFromModel(c *claim.Claim) (*ClaimDal, error) {
	items, err := json.Marshal(c.Items)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal claim items: %w", err)
	}

	d := &ClaimDal{
		Id:              c.ID,
		OrderId:         c.OrderID,
		BuyerId:         c.BuyerID,
		Type:            string(c.Type),
		Status:          string(c.Status),
		Items:           items,
		RequestedAmount: c.RequestedAmount.Int64(),
		ApprovedAmount:  c.ApprovedAmount.Int64(),
		Reason:          c.Reason,
		ResolutionNote:  c.ResolutionNote,
		Version:         c.Version,
		CreatedAt:       pgtype.Timestamptz{Time: c.CreatedAt, Valid: true},
		UpdatedAt:       pgtype.Timestamptz{Time: c.UpdatedAt, Valid: true},
	}

	if c.CompletedAt != nil {
		d.CompletedAt = pgtype.Timestamptz{Time: *c.CompletedAt, Valid: true}
	}

	return d, nil
}

// PostgresClaimRepository persists the claim aggregate.
type PostgresClaimRepository struct {
	conn postgres.GenericConn
	sb   sq.StatementBuilderType
}

// NewPostgresClaimRepository creates a new Postgres claim repository.
func NewPostgresClaimRepository(conn postgres.GenericConn) *PostgresClaimRepository {
	return &PostgresClaimRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// GetByID loads a claim.
func (r *PostgresClaimRepository) GetByID(ctx context.Context, id string) (*claim.Claim, error) {
	sql, args, err := r.sb.
		Select(claimColumns...).
		From("claims").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build claim query: %w", err)
	}

	d, err := r.scanOne(r.conn.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", claim.ErrNotFound, id)
		}

		return nil, fmt.Errorf("failed to query claim: %w", err)
	}

	return d.ToModel()
}

// ListByOrderID returns all claims against an order, oldest first.
func (r *PostgresClaimRepository) ListByOrderID(ctx context.Context, orderID string) ([]claim.Claim, error) {
	sql, args, err := r.sb.
		Select(claimColumns...).
		From("claims").
		Where(sq.Eq{"order_id": orderID}).
		OrderBy("created_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build claims query: %w", err)
	}

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query claims: %w", err)
	}
	defer rows.Close()

	var claims []claim.Claim
	for rows.Next() {
		d, err := r.scanOne(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan claim: %w", err)
		}

		c, err := d.ToModel()
		if err != nil {
			return nil, err
		}
		claims = append(claims, *c)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return claims, nil
}

func (r *PostgresClaimRepository) scanOne(row pgx.Row) (*ClaimDal, error) {
	var d ClaimDal
	err := row.Scan(
		&d.Id, &d.OrderId, &d.BuyerId, &d.Type, &d.Status, &d.Items,
		&d.RequestedAmount, &d.ApprovedAmount, &d.Reason, &d.ResolutionNote,
		&d.Version, &d.CreatedAt, &d.UpdatedAt, &d.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	return &d, nil
}

// Insert persists a new claim.
func (r *PostgresClaimRepository) Insert(ctx context.Context, c *claim.Claim) error {
	d, err := ClaimDalFromModel(c)
	if err != nil {
		return err
	}

	sql, args, err := r.sb.
		Insert("claims").
		Columns(claimColumns...).
		Values(
			d.Id, d.OrderId, d.BuyerId, d.Type, d.Status, d.Items,
			d.RequestedAmount, d.ApprovedAmount, d.Reason, d.ResolutionNote,
			d.Version, d.CreatedAt, d.UpdatedAt, d.CompletedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build claim insert: %w", err)
	}

	if _, err := r.conn.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("failed to insert claim: %w", err)
	}

	return nil
}

// Update persists the claim with an optimistic version check.
func (r *PostgresClaimRepository) Update(ctx context.Context, c *claim.Claim) error {
	d, err := ClaimDalFromModel(c)
	if err != nil {
		return err
	}

	sql, args, err := r.sb.
		Update("claims").
		Set("status", d.Status).
		Set("approved_amount", d.ApprovedAmount).
		Set("resolution_note", d.ResolutionNote).
		Set("version", d.Version+1).
		Set("updated_at", d.UpdatedAt).
		Set("completed_at", d.CompletedAt).
		Where(sq.Eq{"id": d.Id, "version": d.Version}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build claim update: %w", err)
	}

	tag, err := r.conn.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("failed to update claim: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: claim %s version %d", repoerrs.ErrConcurrentModification, d.Id, d.Version)
	}

	c.Version++

	return nil
}
