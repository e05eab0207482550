package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gozon/internal/domain"
	"gozon/internal/events"
	"gozon/internal/repository"
)

type fixture struct {
	store    *repository.InMemoryStore
	svc      *Service
	now      time.Time
	operator domain.Actor
	customer domain.Actor
	product  domain.Product
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: repository.NewInMemoryStore(),
		now:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local),
	}
	clock := func() time.Time { return f.now }
	f.store.SetClock(clock)
	f.svc = New(f.store, WithClock(clock))

	staff := f.store.AddStaff(domain.Staff{Email: "ops@gozon.local"})
	cust := f.store.AddCustomer(domain.Customer{Email: "alice@example.com"})
	f.operator = domain.Actor{ID: staff.ID, Role: domain.RoleOperator}
	f.customer = domain.Actor{ID: cust.ID, Role: domain.RoleCustomer}
	f.product = f.store.AddProduct(domain.Product{
		Name:        "VPS Small",
		Description: "2 vCPU, 4 GB",
		Price:       decimal.RequireFromString("10.00"),
	})
	return f
}

func (f *fixture) order(t *testing.T) int64 {
	t.Helper()
	id, err := f.svc.CreateOrder(context.Background(), f.customer, CreateOrderInput{ProductID: f.product.ID})
	require.NoError(t, err)
	return id
}

func (f *fixture) deliver(t *testing.T) (int64, domain.ActiveService) {
	t.Helper()
	orderID := f.order(t)
	svc, err := f.svc.ValidateOrder(context.Background(), f.operator, orderID, "Delivered")
	require.NoError(t, err)
	require.NotNil(t, svc)
	return orderID, *svc
}

func TestCreateOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id := f.order(t)
	order, ok := f.store.Order(id)
	require.True(t, ok)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, f.customer.ID, order.CustomerID)
	assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("10.00")))
	assert.Equal(t, []string{events.EventOrderCreated}, f.store.OutboxTypes())

	_, err := f.svc.CreateOrder(ctx, f.customer, CreateOrderInput{})
	assert.True(t, domain.IsKind(err, domain.KindBadRequest))

	_, err = f.svc.CreateOrder(ctx, f.customer, CreateOrderInput{ProductID: 999})
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
}

func TestCreateOrderOnBehalfOfCustomer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other := f.store.AddCustomer(domain.Customer{Email: "bob@example.com"})
	id, err := f.svc.CreateOrder(ctx, f.operator, CreateOrderInput{ProductID: f.product.ID, CustomerID: &other.ID})
	require.NoError(t, err)
	order, _ := f.store.Order(id)
	assert.Equal(t, other.ID, order.CustomerID)

	// customers cannot order for somebody else
	id, err = f.svc.CreateOrder(ctx, f.customer, CreateOrderInput{ProductID: f.product.ID, CustomerID: &other.ID})
	require.NoError(t, err)
	order, _ = f.store.Order(id)
	assert.Equal(t, f.customer.ID, order.CustomerID)

	missing := int64(4242)
	_, err = f.svc.CreateOrder(ctx, f.operator, CreateOrderInput{ProductID: f.product.ID, CustomerID: &missing})
	assert.True(t, domain.IsKind(err, domain.KindNotFound))

	_, err = f.svc.CreateOrder(ctx, f.operator, CreateOrderInput{ProductID: f.product.ID})
	assert.True(t, domain.IsKind(err, domain.KindBadRequest))
}

func TestCollidingActorIDIsNotAnOperator(t *testing.T) {
	store := repository.NewInMemoryStore()
	svc := New(store)
	ctx := context.Background()

	store.AddStaff(domain.Staff{ID: 1, Email: "ops@gozon.local"})
	store.AddCustomer(domain.Customer{ID: 1, Email: "alice@example.com"})
	bob := store.AddCustomer(domain.Customer{ID: 2, Email: "bob@example.com"})
	product := store.AddProduct(domain.Product{ID: 10, Name: "VPS", Price: decimal.NewFromInt(5)})
	_, err := svc.CreateOrder(ctx, domain.Actor{ID: bob.ID, Role: domain.RoleCustomer}, CreateOrderInput{ProductID: product.ID})
	require.NoError(t, err)

	_, err = svc.Policy().Classify(ctx, 1)
	assert.True(t, domain.IsKind(err, domain.KindForbidden))
}

func TestValidateOrderDeliveredActivatesService(t *testing.T) {
	f := newFixture(t)

	orderID, svc := f.deliver(t)

	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local), svc.StartedAt)
	assert.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.Local), svc.EndedAt)
	assert.Equal(t, domain.ServiceStatusDelivered, svc.Status)
	require.NotNil(t, svc.OrderID)
	assert.Equal(t, orderID, *svc.OrderID)

	order, _ := f.store.Order(orderID)
	assert.Equal(t, domain.OrderStatusDelivered, order.Status)
	assert.Equal(t, []string{
		events.EventOrderCreated,
		events.EventOrderValidated,
		events.EventServiceActivated,
	}, f.store.OutboxTypes())
}

func TestValidateOrderTwiceIsRefused(t *testing.T) {
	f := newFixture(t)

	orderID, _ := f.deliver(t)
	_, err := f.svc.ValidateOrder(context.Background(), f.operator, orderID, "Delivered")

	assert.True(t, domain.IsKind(err, domain.KindConflict))
	assert.Len(t, f.store.Services(), 1)
}

func TestValidateOrderUsesCurrentCatalogPrice(t *testing.T) {
	f := newFixture(t)

	orderID := f.order(t)
	f.store.SetProductPrice(f.product.ID, decimal.RequireFromString("12.50"))
	svc, err := f.svc.ValidateOrder(context.Background(), f.operator, orderID, "Delivered")
	require.NoError(t, err)

	assert.True(t, svc.RecurringPrice.Equal(decimal.RequireFromString("12.50")))
	order, _ := f.store.Order(orderID)
	assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("10.00")))
}

func TestValidateOrderTransitions(t *testing.T) {
	tests := []struct {
		name    string
		steps   []string
		final   string
		wantErr domain.Kind
	}{
		{name: "pending to processing", final: "Processing"},
		{name: "processing to delivered", steps: []string{"Processing"}, final: "Delivered"},
		{name: "pending to cancelled", final: "Cancelled"},
		{name: "cancelled is terminal", steps: []string{"Cancelled"}, final: "Delivered", wantErr: domain.KindConflict},
		{name: "processing twice", steps: []string{"Processing"}, final: "Processing", wantErr: domain.KindConflict},
		{name: "finished is not settable", final: "Finished", wantErr: domain.KindBadRequest},
		{name: "pending is not settable", final: "Pending", wantErr: domain.KindBadRequest},
		{name: "unknown status", final: "Shipped", wantErr: domain.KindBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			orderID := f.order(t)
			for _, step := range tt.steps {
				_, err := f.svc.ValidateOrder(ctx, f.operator, orderID, step)
				require.NoError(t, err)
			}

			_, err := f.svc.ValidateOrder(ctx, f.operator, orderID, tt.final)
			if tt.wantErr != "" {
				assert.True(t, domain.IsKind(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			order, _ := f.store.Order(orderID)
			assert.Equal(t, domain.OrderStatus(tt.final), order.Status)
		})
	}
}

func TestValidateOrderNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ValidateOrder(context.Background(), f.operator, 777, "Delivered")
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
}

func TestValidateOrderRollsBackWhenActivationFails(t *testing.T) {
	f := newFixture(t)
	orderID := f.order(t)

	f.store.FailOn("InsertService", errors.New("disk full"))
	_, err := f.svc.ValidateOrder(context.Background(), f.operator, orderID, "Delivered")

	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindInternal))
	assert.Equal(t, "failed to activate service", domain.PublicMessage(err))
	order, _ := f.store.Order(orderID)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Empty(t, f.store.Services())
	assert.Equal(t, []string{events.EventOrderCreated}, f.store.OutboxTypes())
}

func TestTerminateFinishesLinkedOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	firstOrder, _ := f.deliver(t)
	f.now = f.now.Add(time.Hour)
	secondOrder, second := f.deliver(t)

	require.NoError(t, f.svc.Terminate(ctx, f.operator, second.ID))

	_, ok := f.store.Service(second.ID)
	assert.False(t, ok)
	o1, _ := f.store.Order(firstOrder)
	o2, _ := f.store.Order(secondOrder)
	assert.Equal(t, domain.OrderStatusDelivered, o1.Status)
	assert.Equal(t, domain.OrderStatusFinished, o2.Status)
}

func TestTerminateUnlinkedServiceFinishesOldestDeliveredOrder(t *testing.T) {
	f := newFixture(t)

	older := f.store.PutOrder(domain.Order{
		CustomerID: f.customer.ID, ProductID: f.product.ID,
		Status: domain.OrderStatusDelivered, CreatedAt: f.now.Add(-48 * time.Hour),
	})
	newer := f.store.PutOrder(domain.Order{
		CustomerID: f.customer.ID, ProductID: f.product.ID,
		Status: domain.OrderStatusDelivered, CreatedAt: f.now.Add(-24 * time.Hour),
	})
	svc := f.store.PutService(domain.ActiveService{
		CustomerID: f.customer.ID, ProductID: f.product.ID,
		Status: domain.ServiceStatusDelivered, StartedAt: f.now, EndedAt: domain.AddServicePeriod(f.now),
	})

	require.NoError(t, f.svc.Terminate(context.Background(), f.operator, svc.ID))

	o1, _ := f.store.Order(older.ID)
	o2, _ := f.store.Order(newer.ID)
	assert.Equal(t, domain.OrderStatusFinished, o1.Status)
	assert.Equal(t, domain.OrderStatusDelivered, o2.Status)
}

func TestTerminateWithoutMatchingOrderSucceeds(t *testing.T) {
	f := newFixture(t)
	svc := f.store.PutService(domain.ActiveService{
		CustomerID: f.customer.ID, ProductID: f.product.ID,
		Status: domain.ServiceStatusDelivered, StartedAt: f.now, EndedAt: domain.AddServicePeriod(f.now),
	})

	require.NoError(t, f.svc.Terminate(context.Background(), f.operator, svc.ID))
	assert.Empty(t, f.store.Services())
	assert.Equal(t, []string{events.EventServiceTerminated}, f.store.OutboxTypes())
}

func TestTerminateNotFound(t *testing.T) {
	f := newFixture(t)
	err := f.svc.Terminate(context.Background(), f.operator, 31337)
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
}

func TestTerminateRollsBackWhenArchiveFails(t *testing.T) {
	for _, method := range []string{"FinishOrder", "InsertOutbox"} {
		t.Run(method, func(t *testing.T) {
			f := newFixture(t)
			orderID, svc := f.deliver(t)
			outboxBefore := f.store.OutboxTypes()

			f.store.FailOn(method, errors.New("connection reset"))
			err := f.svc.Terminate(context.Background(), f.operator, svc.ID)

			assert.True(t, domain.IsKind(err, domain.KindInternal))
			_, ok := f.store.Service(svc.ID)
			assert.True(t, ok)
			order, _ := f.store.Order(orderID)
			assert.Equal(t, domain.OrderStatusDelivered, order.Status)
			assert.Equal(t, outboxBefore, f.store.OutboxTypes())
		})
	}
}

func TestTerminateUnlinkedRollsBackWhenArchiveFails(t *testing.T) {
	f := newFixture(t)
	order := f.store.PutOrder(domain.Order{
		CustomerID: f.customer.ID, ProductID: f.product.ID, Status: domain.OrderStatusDelivered,
	})
	svc := f.store.PutService(domain.ActiveService{
		CustomerID: f.customer.ID, ProductID: f.product.ID,
		Status: domain.ServiceStatusDelivered, StartedAt: f.now, EndedAt: domain.AddServicePeriod(f.now),
	})

	f.store.FailOn("FinishOldestDeliveredOrder", errors.New("connection reset"))
	err := f.svc.Terminate(context.Background(), f.operator, svc.ID)

	assert.True(t, domain.IsKind(err, domain.KindInternal))
	_, ok := f.store.Service(svc.ID)
	assert.True(t, ok)
	stored, _ := f.store.Order(order.ID)
	assert.Equal(t, domain.OrderStatusDelivered, stored.Status)
}

func TestRenewAndEditRollBackWhenEventFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, svc := f.deliver(t)
	f.store.FailOn("InsertOutbox", errors.New("connection reset"))

	_, err := f.svc.Renew(ctx, f.operator, svc.ID)
	assert.True(t, domain.IsKind(err, domain.KindInternal))

	status := "Suspended"
	err = f.svc.Edit(ctx, f.operator, svc.ID, domain.ServicePatch{Status: &status})
	assert.True(t, domain.IsKind(err, domain.KindInternal))

	stored, _ := f.store.Service(svc.ID)
	assert.Equal(t, svc.EndedAt, stored.EndedAt)
	assert.Equal(t, domain.ServiceStatusDelivered, stored.Status)
}

func TestRenew(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, svc := f.deliver(t)

	renewed, err := f.svc.Renew(ctx, f.operator, svc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AddServicePeriod(svc.EndedAt), renewed.EndedAt)

	// once expired, the new period starts now
	f.now = renewed.EndedAt.Add(72 * time.Hour)
	renewed, err = f.svc.Renew(ctx, f.operator, svc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AddServicePeriod(f.now), renewed.EndedAt)

	stored, _ := f.store.Service(svc.ID)
	assert.Equal(t, renewed.EndedAt, stored.EndedAt)
}

func TestEdit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, svc := f.deliver(t)

	err := f.svc.Edit(ctx, f.operator, svc.ID, domain.ServicePatch{})
	assert.True(t, domain.IsKind(err, domain.KindBadRequest))

	status := "Suspended"
	price := decimal.RequireFromString("7.25")
	require.NoError(t, f.svc.Edit(ctx, f.operator, svc.ID, domain.ServicePatch{Status: &status, RecurringPrice: &price}))

	stored, _ := f.store.Service(svc.ID)
	assert.Equal(t, "Suspended", stored.Status)
	assert.True(t, stored.RecurringPrice.Equal(price))
	assert.Equal(t, svc.EndedAt, stored.EndedAt)

	err = f.svc.Edit(ctx, f.operator, 999, domain.ServicePatch{Status: &status})
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
}

func TestListMineDerivesRuntimeState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := f.store.AddCustomer(domain.Customer{Email: "bob@example.com"})

	put := func(customerID int64, end time.Time) domain.ActiveService {
		return f.store.PutService(domain.ActiveService{
			CustomerID: customerID, ProductID: f.product.ID, Status: domain.ServiceStatusDelivered,
			StartedAt: f.now.AddDate(0, 0, -domain.ServicePeriodDays), EndedAt: end,
		})
	}
	tenDays := put(f.customer.ID, f.now.Add(10*24*time.Hour))
	nineAndHalf := put(f.customer.ID, f.now.Add(9*24*time.Hour+12*time.Hour))
	endsNow := put(f.customer.ID, f.now)
	put(other.ID, f.now.Add(24*time.Hour))

	views, err := f.svc.ListMine(ctx, f.customer)
	require.NoError(t, err)
	require.Len(t, views, 3)

	byID := map[int64]domain.ServiceView{}
	for _, v := range views {
		byID[v.ID] = v
	}
	assert.Equal(t, domain.RuntimeStatusActive, byID[tenDays.ID].RuntimeStatus)
	assert.Equal(t, 10, byID[tenDays.ID].DaysRemaining)
	assert.Equal(t, 9, byID[nineAndHalf.ID].DaysRemaining)
	assert.Equal(t, domain.RuntimeStatusExpired, byID[endsNow.ID].RuntimeStatus)
	assert.Equal(t, 0, byID[endsNow.ID].DaysRemaining)

	// soonest expiry first
	assert.Equal(t, endsNow.ID, views[0].ID)
	assert.Equal(t, "VPS Small", views[0].ProductName)
	assert.Equal(t, "2 vCPU, 4 GB", views[0].ProductDescription)

	all, err := f.svc.ListActive(ctx, f.operator)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stats, err := f.svc.Stats(ctx, f.customer)
	require.NoError(t, err)
	assert.Zero(t, stats.ActiveCount)
	assert.Zero(t, stats.PendingOrderCount)
	assert.True(t, stats.TotalSpent.IsZero())

	_, delivered := f.deliver(t)
	_, finishedSvc := f.deliver(t)
	require.NoError(t, f.svc.Terminate(ctx, f.operator, finishedSvc.ID))
	f.order(t)
	processing := f.order(t)
	_, err = f.svc.ValidateOrder(ctx, f.operator, processing, "Processing")
	require.NoError(t, err)
	cancelled := f.order(t)
	_, err = f.svc.ValidateOrder(ctx, f.operator, cancelled, "Cancelled")
	require.NoError(t, err)

	stats, err = f.svc.Stats(ctx, f.customer)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.ActiveCount)
	assert.Equal(t, int64(2), stats.PendingOrderCount)
	assert.True(t, stats.TotalSpent.Equal(decimal.RequireFromString("20.00")), "got %s", stats.TotalSpent)

	// a service ending exactly now no longer counts as active
	f.now = delivered.EndedAt
	stats, err = f.svc.Stats(ctx, f.customer)
	require.NoError(t, err)
	assert.Zero(t, stats.ActiveCount)
}

func TestDeleteStaff(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	colleague := f.store.AddStaff(domain.Staff{Email: "second@gozon.local"})

	err := f.svc.DeleteStaff(ctx, f.operator, f.operator.ID)
	assert.True(t, domain.IsKind(err, domain.KindBadRequest))

	require.NoError(t, f.svc.DeleteStaff(ctx, f.operator, colleague.ID))
	err = f.svc.DeleteStaff(ctx, f.operator, colleague.ID)
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
}

func TestDeleteCustomer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.order(t)
	err := f.svc.DeleteCustomer(ctx, f.operator, f.customer.ID)
	assert.True(t, domain.IsKind(err, domain.KindConflict))

	fresh := f.store.AddCustomer(domain.Customer{Email: "carol@example.com"})
	f.store.PutService(domain.ActiveService{CustomerID: fresh.ID, ProductID: f.product.ID, EndedAt: f.now})
	require.NoError(t, f.svc.DeleteCustomer(ctx, f.operator, fresh.ID))
	for _, svc := range f.store.Services() {
		assert.NotEqual(t, fresh.ID, svc.CustomerID)
	}
}

func TestOperatorOnlyOperationsRejectCustomers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orderID, svc := f.deliver(t)
	status := "Suspended"

	ops := map[string]func(domain.Actor) error{
		"list orders":  func(a domain.Actor) error { _, err := f.svc.ListOrders(ctx, a, false); return err },
		"list pending": func(a domain.Actor) error { _, err := f.svc.ListOrders(ctx, a, true); return err },
		"validate": func(a domain.Actor) error {
			_, err := f.svc.ValidateOrder(ctx, a, orderID, "Cancelled")
			return err
		},
		"list active": func(a domain.Actor) error { _, err := f.svc.ListActive(ctx, a); return err },
		"edit": func(a domain.Actor) error {
			return f.svc.Edit(ctx, a, svc.ID, domain.ServicePatch{Status: &status})
		},
		"renew":           func(a domain.Actor) error { _, err := f.svc.Renew(ctx, a, svc.ID); return err },
		"terminate":       func(a domain.Actor) error { return f.svc.Terminate(ctx, a, svc.ID) },
		"delete staff":    func(a domain.Actor) error { return f.svc.DeleteStaff(ctx, a, f.operator.ID) },
		"delete customer": func(a domain.Actor) error { return f.svc.DeleteCustomer(ctx, a, f.customer.ID) },
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			err := op(f.customer)
			assert.True(t, domain.IsKind(err, domain.KindForbidden), "got %v", err)
		})
	}

	_, stillThere := f.store.Service(svc.ID)
	assert.True(t, stillThere)
}

func TestSelfServiceIsScopedToCaller(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := f.store.AddCustomer(domain.Customer{Email: "bob@example.com"})
	bob := domain.Actor{ID: other.ID, Role: domain.RoleCustomer}

	f.deliver(t)
	orders, err := f.svc.ListMyOrders(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, orders)
	services, err := f.svc.ListMine(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, services)

	orders, err = f.svc.ListMyOrders(ctx, f.customer)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "alice@example.com", orders[0].CustomerEmail)
}
