package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"gozon/internal/domain"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrReferenced is returned when a row cannot be deleted because other rows point at it.
	ErrReferenced = errors.New("record is referenced")
)

type OrderFilter struct {
	CustomerID  *int64
	PendingOnly bool
}

type ServiceFilter struct {
	CustomerID *int64
}

// OutboxEvent is a lifecycle event waiting to be published.
type OutboxEvent struct {
	ID        int64
	EventID   string
	Type      string
	Key       string
	Payload   []byte
	CreatedAt time.Time
}

// Queries is every keyed read and write the lifecycle engine performs.
// Both a store and an open transaction satisfy it.
type Queries interface {
	StaffExists(ctx context.Context, id int64) (bool, error)
	CustomerExists(ctx context.Context, id int64) (bool, error)
	DeleteStaff(ctx context.Context, id int64) error
	DeleteCustomer(ctx context.Context, id int64) error

	ProductPrice(ctx context.Context, id int64) (decimal.Decimal, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)

	InsertOrder(ctx context.Context, order *domain.Order) error
	GetOrderForUpdate(ctx context.Context, id int64) (*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, id int64, status domain.OrderStatus) error
	ListOrders(ctx context.Context, filter OrderFilter) ([]domain.OrderView, error)
	// FinishOrder moves the order to Finished if it is still Delivered.
	FinishOrder(ctx context.Context, id int64) (bool, error)
	// FinishOldestDeliveredOrder is the attribute match used for services without an order link.
	FinishOldestDeliveredOrder(ctx context.Context, customerID, productID int64) (bool, error)
	CountOrders(ctx context.Context, customerID int64, statuses ...domain.OrderStatus) (int64, error)
	SumOrderTotals(ctx context.Context, customerID int64, statuses ...domain.OrderStatus) (decimal.Decimal, error)

	InsertService(ctx context.Context, svc *domain.ActiveService) error
	GetServiceForUpdate(ctx context.Context, id int64) (*domain.ActiveService, error)
	UpdateService(ctx context.Context, id int64, patch domain.ServicePatch) error
	DeleteService(ctx context.Context, id int64) error
	ListServices(ctx context.Context, filter ServiceFilter) ([]domain.ServiceView, error)
	CountServicesEndingAfter(ctx context.Context, customerID int64, t time.Time) (int64, error)

	InsertOutbox(ctx context.Context, event OutboxEvent) error
	FetchPendingOutbox(ctx context.Context, limit int) ([]OutboxEvent, error)
	MarkOutboxProcessed(ctx context.Context, id int64) error
}

// Store is a Queries backend that can also run a function inside one transaction.
// If fn returns an error every write it made is rolled back.
type Store interface {
	Queries
	InTx(ctx context.Context, fn func(q Queries) error) error
}
