package postgresrepo

import (
	"context"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/modu-commerce/order-core/internal/dal/postgres"
	"github.com/modu-commerce/order-core/internal/service/models/orderevent"
)

var eventColumns = []string{
	"id",
	"order_id",
	"event_type",
	"event_source",
	"source_id",
	"previous_status",
	"current_status",
	"actor_type",
	"actor_id",
	"description",
	"metadata",
	"created_at",
}

// PostgresEventRepository is the append-only store for the order audit trail.
// The id column is a bigserial; its monotonic assignment is what breaks
// created_at ties on the timeline.
type PostgresEventRepository struct {
	conn postgres.GenericConn
	sb   sq.StatementBuilderType
}

// NewPostgresEventRepository creates a new Postgres event repository.
func NewPostgresEventRepository(conn postgres.GenericConn) *PostgresEventRepository {
	return &PostgresEventRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Append persists the events in order and returns them with their assigned
// insertion ids.
func (r *PostgresEventRepository) Append(ctx context.Context, events []orderevent.Event) ([]orderevent.Event, error) {
	out := make([]orderevent.Event, 0, len(events))
	for _, e := range events {
		var metadata []byte
		if len(e.Metadata) > 0 {
			var err error
			metadata, err = json.Marshal(e.Metadata)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal event metadata: %w", err)
			}
		}

		sql, args, err := r.sb.
			Insert("order_events").
			Columns(
				"order_id", "event_type", "event_source", "source_id",
				"previous_status", "current_status", "actor_type", "actor_id",
				"description", "metadata", "created_at",
			).
			Values(
				e.OrderID, string(e.EventType), string(e.EventSource), e.SourceID,
				e.PreviousStatus, e.CurrentStatus, string(e.ActorType), e.ActorID,
				e.Description, metadata,
				pgtype.Timestamptz{Time: e.CreatedAt, Valid: true},
			).
			Suffix("RETURNING id").
			ToSql()
		if err != nil {
			return nil, fmt.Errorf("failed to build event insert: %w", err)
		}

		if err := r.conn.QueryRow(ctx, sql, args...).Scan(&e.ID); err != nil {
			return nil, fmt.Errorf("failed to insert order event: %w", err)
		}

		out = append(out, e)
	}

	return out, nil
}

// ListTimeline returns every event for an order, order-sourced and
// claim-sourced alike, sorted by (created_at, id).
func (r *PostgresEventRepository) ListTimeline(ctx context.Context, orderID string) ([]orderevent.Event, error) {
	sql, args, err := r.sb.
		Select(eventColumns...).
		From("order_events").
		Where(sq.Eq{"order_id": orderID}).
		OrderBy("created_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build timeline query: %w", err)
	}

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query timeline: %w", err)
	}
	defer rows.Close()

	var events []orderevent.Event
	for rows.Next() {
		var (
			e         orderevent.Event
			metadata  []byte
			createdAt pgtype.Timestamptz
		)
		err := rows.Scan(
			&e.ID, &e.OrderID, &e.EventType, &e.EventSource, &e.SourceID,
			&e.PreviousStatus, &e.CurrentStatus, &e.ActorType, &e.ActorID,
			&e.Description, &metadata, &createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order event: %w", err)
		}

		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal event metadata: %w", err)
			}
		}
		e.CreatedAt = createdAt.Time

		events = append(events, e)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return events, nil
}
