package settlementsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/modu-commerce/order-core/internal/dal/interfaces/iclaimrepo"
	"github.com/modu-commerce/order-core/internal/dal/interfaces/ieventrepo"
	"github.com/modu-commerce/order-core/internal/dal/interfaces/imileagerepo"
	"github.com/modu-commerce/order-core/internal/dal/interfaces/iorderrepo"
	"github.com/modu-commerce/order-core/internal/dal/interfaces/ioutboxrepo"
	"github.com/modu-commerce/order-core/internal/service/models/mileage"
	"github.com/modu-commerce/order-core/internal/service/models/outbox"
	"github.com/modu-commerce/order-core/pkg/clock"
	"github.com/modu-commerce/order-core/pkg/idgen"
)

// UnitOfWork is the transactional boundary the settlement coordinator works
// in. Every command loads, mutates and persists its aggregates plus the
// resulting events through one unit of work; Commit makes the whole command
// visible atomically.
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	Orders() iorderrepo.IOrderRepository
	Claims() iclaimrepo.IClaimRepository
	Mileage() imileagerepo.IMileageRepository
	Events() ieventrepo.IEventRepository
	Outbox() ioutboxrepo.IOutboxRepository
}

// SettlementService orchestrates cross-aggregate commands: validate claim,
// mutate order, settle mileage, append events — all-or-nothing per command.
type SettlementService struct {
	newUOW       func() UnitOfWork
	clk          clock.Clock
	idGen        idgen.Generator
	refundPolicy mileage.RefundPolicy
}

// option is a function that configures the SettlementService.
type option func(*SettlementService)

// MustNewSettlementService creates a new SettlementService.
func MustNewSettlementService(opts ...option) *SettlementService {
	s := &SettlementService{
		clk:          clock.System{},
		idGen:        idgen.UUID{},
		refundPolicy: mileage.PolicyReviveExpired,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.newUOW == nil {
		panic("settlementsvc: unit of work factory is required")
	}

	return s
}

// WithUnitOfWorkFactory sets the unit of work factory for the service.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithUnitOfWorkFactory(newUOW func() UnitOfWork) option {
	return func(s *SettlementService) {
		s.newUOW = newUOW
	}
}

// WithClock sets the time source for the service.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithClock(clk clock.Clock) option {
	return func(s *SettlementService) {
		s.clk = clk
	}
}

// WithIDGenerator sets the id generator for the service.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithIDGenerator(gen idgen.Generator) option {
	return func(s *SettlementService) {
		s.idGen = gen
	}
}

// WithRefundPolicy selects how mileage refunds treat expired lots.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithRefundPolicy(policy mileage.RefundPolicy) option {
	return func(s *SettlementService) {
		s.refundPolicy = policy
	}
}

// Effect is an outbound notification produced by a committed command. The
// coordinator persists effects to the outbox inside the command's
// transaction; the outbox worker delivers them to RabbitMQ afterwards.
type Effect struct {
	RoutingKey string
	Payload    any
}

// enqueueEffects writes notification effects to the outbox within the current
// unit of work.
func enqueueEffects(ctx context.Context, repo ioutboxrepo.IOutboxRepository, now time.Time, effects []Effect) error {
	exchange := viper.GetString("rabbitmq.notifications.exchange")
	maxRetries := viper.GetInt("rabbitmq.notifications.max_retries")
	if maxRetries == 0 {
		maxRetries = 5
	}

	for _, effect := range effects {
		payload, err := json.Marshal(effect.Payload)
		if err != nil {
			return fmt.Errorf("failed to marshal effect %s: %w", effect.RoutingKey, err)
		}

		msg := outbox.Message{
			ExchangeName: exchange,
			RoutingKey:   effect.RoutingKey,
			Payload:      payload,
			ContentType:  "application/json",
			MaxRetries:   maxRetries,
			CreatedAt:    now,
			UpdatedAt:    now,
			NextRetryAt:  now,
		}
		if err := repo.Insert(ctx, msg); err != nil {
			return fmt.Errorf("failed to enqueue effect %s: %w", effect.RoutingKey, err)
		}
	}

	return nil
}
