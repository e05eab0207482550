package repository

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gozon/internal/domain"
)

// openTestDB connects to GOZON_TEST_DATABASE_URL and resets the schema.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("GOZON_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("GOZON_TEST_DATABASE_URL not set")
	}
	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	_, err = db.ExecContext(ctx, `DROP TABLE IF EXISTS outbox, active_services, orders, products, customers, staff CASCADE`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `DROP SEQUENCE IF EXISTS actor_id_seq`)
	require.NoError(t, err)
	require.NoError(t, CreateTables(ctx, db))
	return db
}

func seedRow(t *testing.T, db *sql.DB, query string, args ...any) int64 {
	t.Helper()
	var id int64
	require.NoError(t, db.QueryRow(query, args...).Scan(&id))
	return id
}

func TestPostgresLifecycle(t *testing.T) {
	db := openTestDB(t)
	store := NewPostgresStore(db)
	ctx := context.Background()

	staffID := seedRow(t, db, `INSERT INTO staff (email) VALUES ('ops@gozon.local') RETURNING id`)
	custID := seedRow(t, db, `INSERT INTO customers (email) VALUES ('a@example.com') RETURNING id`)
	prodID := seedRow(t, db, `INSERT INTO products (name, price) VALUES ('VPS', 10.50) RETURNING id`)

	ok, err := store.StaffExists(ctx, staffID)
	require.NoError(t, err)
	assert.True(t, ok)

	price, err := store.ProductPrice(ctx, prodID)
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("10.50")))

	order := domain.Order{CustomerID: custID, ProductID: prodID, Status: domain.OrderStatusPending, TotalAmount: price}
	require.NoError(t, store.InTx(ctx, func(q Queries) error {
		if err := q.InsertOrder(ctx, &order); err != nil {
			return err
		}
		return q.InsertOutbox(ctx, OutboxEvent{EventID: "6f1c1f9e-3c9b-4c1e-8a55-111111111111", Type: "order.created", Key: "1", Payload: []byte(`{}`)})
	}))

	now := time.Now().Truncate(time.Second)
	svc := domain.NewActiveService(order, price, now)
	require.NoError(t, store.InTx(ctx, func(q Queries) error {
		locked, err := q.GetOrderForUpdate(ctx, order.ID)
		if err != nil {
			return err
		}
		if err := q.UpdateOrderStatus(ctx, locked.ID, domain.OrderStatusDelivered); err != nil {
			return err
		}
		return q.InsertService(ctx, &svc)
	}))

	views, err := store.ListServices(ctx, ServiceFilter{CustomerID: &custID})
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.NotNil(t, views[0].OrderID)
	assert.Equal(t, order.ID, *views[0].OrderID)
	assert.True(t, views[0].EndedAt.Equal(domain.AddServicePeriod(now)))

	status := "Suspended"
	require.NoError(t, store.UpdateService(ctx, svc.ID, domain.ServicePatch{Status: &status}))
	got, err := store.GetServiceForUpdate(ctx, svc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Suspended", got.Status)
	assert.True(t, got.RecurringPrice.Equal(price))

	active, err := store.CountServicesEndingAfter(ctx, custID, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), active)
	spent, err := store.SumOrderTotals(ctx, custID, domain.OrderStatusDelivered, domain.OrderStatusFinished)
	require.NoError(t, err)
	assert.True(t, spent.Equal(price))

	finished, err := store.FinishOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, finished)
	require.NoError(t, store.DeleteService(ctx, svc.ID))

	assert.ErrorIs(t, store.DeleteCustomer(ctx, custID), ErrReferenced)

	pending, err := store.FetchPendingOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.NoError(t, store.MarkOutboxProcessed(ctx, pending[0].ID))
	pending, err = store.FetchPendingOutbox(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestPostgresRollback(t *testing.T) {
	db := openTestDB(t)
	store := NewPostgresStore(db)
	ctx := context.Background()
	custID := seedRow(t, db, `INSERT INTO customers (email) VALUES ('a@example.com') RETURNING id`)
	prodID := seedRow(t, db, `INSERT INTO products (name, price) VALUES ('VPS', 1) RETURNING id`)

	err := store.InTx(ctx, func(q Queries) error {
		order := domain.Order{CustomerID: custID, ProductID: prodID, Status: domain.OrderStatusPending, TotalAmount: decimal.NewFromInt(1)}
		if err := q.InsertOrder(ctx, &order); err != nil {
			return err
		}
		_, err := q.GetServiceForUpdate(ctx, 12345)
		return err
	})
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := store.CountOrders(ctx, custID, domain.OrderStatusPending)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPostgresActorIDsAreDisjoint(t *testing.T) {
	db := openTestDB(t)
	store := NewPostgresStore(db)
	ctx := context.Background()

	staffID := seedRow(t, db, `INSERT INTO staff (email) VALUES ('ops@gozon.local') RETURNING id`)
	custID := seedRow(t, db, `INSERT INTO customers (email) VALUES ('a@example.com') RETURNING id`)
	assert.NotEqual(t, staffID, custID)

	isCustomer, err := store.CustomerExists(ctx, staffID)
	require.NoError(t, err)
	assert.False(t, isCustomer)
	isStaff, err := store.StaffExists(ctx, custID)
	require.NoError(t, err)
	assert.False(t, isStaff)

	// bootstrapping again keeps the sequence ahead of both tables
	require.NoError(t, CreateTables(ctx, db))
	next := seedRow(t, db, `INSERT INTO staff (email) VALUES ('ops2@gozon.local') RETURNING id`)
	assert.Greater(t, next, custID)
}
