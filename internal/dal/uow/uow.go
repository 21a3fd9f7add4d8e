package uow

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/modu-commerce/order-core/internal/dal/interfaces/iclaimrepo"
	"github.com/modu-commerce/order-core/internal/dal/interfaces/ieventrepo"
	"github.com/modu-commerce/order-core/internal/dal/interfaces/imileagerepo"
	"github.com/modu-commerce/order-core/internal/dal/interfaces/iorderrepo"
	"github.com/modu-commerce/order-core/internal/dal/interfaces/ioutboxrepo"
	"github.com/modu-commerce/order-core/internal/dal/postgres"
	claimrepo "github.com/modu-commerce/order-core/internal/dal/repositories/claim/postgres"
	mileagerepo "github.com/modu-commerce/order-core/internal/dal/repositories/mileage/postgres"
	orderrepo "github.com/modu-commerce/order-core/internal/dal/repositories/order/postgres"
	eventrepo "github.com/modu-commerce/order-core/internal/dal/repositories/orderevent/postgres"
	outboxrepo "github.com/modu-commerce/order-core/internal/dal/repositories/outbox/postgres"
)

// unitOfWork carries one command's repositories. Before Begin they read from
// the pool; Begin rebinds them to a single transaction so everything a command
// writes commits or rolls back together.
type unitOfWork struct {
	client *postgres.Client
	tx     pgx.Tx

	orderRepo   iorderrepo.IOrderRepository
	claimRepo   iclaimrepo.IClaimRepository
	mileageRepo imileagerepo.IMileageRepository
	eventRepo   ieventrepo.IEventRepository
	outboxRepo  ioutboxrepo.IOutboxRepository
}

// NewUnitOfWork creates a unit of work over the Postgres client.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func NewUnitOfWork(client *postgres.Client) *unitOfWork {
	u := &unitOfWork{client: client}
	u.bind(client.Pool())

	return u
}

func (u *unitOfWork) bind(conn postgres.GenericConn) {
	u.orderRepo = orderrepo.NewPostgresOrderRepository(conn)
	u.claimRepo = claimrepo.NewPostgresClaimRepository(conn)
	u.mileageRepo = mileagerepo.NewPostgresMileageRepository(conn)
	u.eventRepo = eventrepo.NewPostgresEventRepository(conn)
	u.outboxRepo = outboxrepo.NewPostgresOutboxRepository(conn)
}

func (u *unitOfWork) Orders() iorderrepo.IOrderRepository {
	return u.orderRepo
}

func (u *unitOfWork) Claims() iclaimrepo.IClaimRepository {
	return u.claimRepo
}

func (u *unitOfWork) Mileage() imileagerepo.IMileageRepository {
	return u.mileageRepo
}

func (u *unitOfWork) Events() ieventrepo.IEventRepository {
	return u.eventRepo
}

func (u *unitOfWork) Outbox() ioutboxrepo.IOutboxRepository {
	return u.outboxRepo
}

func (u *unitOfWork) Begin(ctx context.Context) error {
	tx, err := u.client.Pool().Begin(ctx)
	if err != nil {
		return err
	}

	u.tx = tx
	u.bind(tx)

	return nil
}

func (u *unitOfWork) Commit(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}

	return u.tx.Commit(ctx)
}

func (u *unitOfWork) Rollback(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}

	return u.tx.Rollback(ctx)
}
