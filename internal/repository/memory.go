package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"gozon/internal/domain"
)

type memState struct {
	staff     map[int64]domain.Staff
	customers map[int64]domain.Customer
	products  map[int64]domain.Product
	orders    map[int64]domain.Order
	services  map[int64]domain.ActiveService
	outbox    []memOutbox
	seq       int64
}

type memOutbox struct {
	OutboxEvent
	processed bool
}

func newMemState() *memState {
	return &memState{
		staff:     make(map[int64]domain.Staff),
		customers: make(map[int64]domain.Customer),
		products:  make(map[int64]domain.Product),
		orders:    make(map[int64]domain.Order),
		services:  make(map[int64]domain.ActiveService),
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.staff {
		c.staff[k] = v
	}
	for k, v := range s.customers {
		c.customers[k] = v
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.services {
		c.services[k] = v
	}
	c.outbox = append([]memOutbox(nil), s.outbox...)
	c.seq = s.seq
	return c
}

func (s *memState) nextID() int64 {
	s.seq++
	return s.seq
}

// InMemoryStore is a Store kept in process memory. Transactions run against a copy of the
// state which replaces the live state only when the function succeeds.
// It is safe for concurrent use.
type InMemoryStore struct {
	*memQueries

	mu       sync.Mutex
	state    *memState
	failures map[string]error
	now      func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	s := &InMemoryStore{
		state:    newMemState(),
		failures: make(map[string]error),
		now:      time.Now,
	}
	s.memQueries = &memQueries{store: s, locked: false}
	return s
}

// SetClock overrides the clock used for order creation timestamps.
func (s *InMemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// FailOn makes every later call of the named Queries method return err.
func (s *InMemoryStore) FailOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method] = err
}

func (s *InMemoryStore) InTx(ctx context.Context, fn func(q Queries) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	if err := fn(&memQueries{store: s, locked: true, state: snapshot}); err != nil {
		return err
	}
	s.state = snapshot
	return nil
}

func (s *InMemoryStore) AddStaff(st domain.Staff) domain.Staff {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.ID == 0 {
		st.ID = s.state.nextID()
	}
	s.state.staff[st.ID] = st
	return st
}

func (s *InMemoryStore) AddCustomer(c domain.Customer) domain.Customer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == 0 {
		c.ID = s.state.nextID()
	}
	s.state.customers[c.ID] = c
	return c
}

func (s *InMemoryStore) AddProduct(p domain.Product) domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.state.nextID()
	}
	s.state.products[p.ID] = p
	return p
}

func (s *InMemoryStore) SetProductPrice(id int64, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.state.products[id]
	p.Price = price
	s.state.products[id] = p
}

// PutService stores svc as-is, assigning an id when it has none.
func (s *InMemoryStore) PutService(svc domain.ActiveService) domain.ActiveService {
	s.mu.Lock()
	defer s.mu.Unlock()
	if svc.ID == 0 {
		svc.ID = s.state.nextID()
	}
	s.state.services[svc.ID] = svc
	return svc
}

// PutOrder stores o as-is, assigning an id when it has none.
func (s *InMemoryStore) PutOrder(o domain.Order) domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == 0 {
		o.ID = s.state.nextID()
	}
	s.state.orders[o.ID] = o
	return o
}

func (s *InMemoryStore) Order(id int64) (domain.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.state.orders[id]
	return o, ok
}

func (s *InMemoryStore) Service(id int64) (domain.ActiveService, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, ok := s.state.services[id]
	return svc, ok
}

func (s *InMemoryStore) Services() []domain.ActiveService {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ActiveService, 0, len(s.state.services))
	for _, svc := range s.state.services {
		out = append(out, svc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *InMemoryStore) OutboxTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.state.outbox))
	for _, e := range s.state.outbox {
		out = append(out, e.Type)
	}
	return out
}

// memQueries implements Queries. Inside InTx the store mutex is already held and state
// points at the transaction snapshot; outside it every call locks and uses the live state.
type memQueries struct {
	store  *InMemoryStore
	locked bool
	state  *memState
}

func (q *memQueries) begin(method string) (*memState, func(), error) {
	release := func() {}
	if !q.locked {
		q.store.mu.Lock()
		release = q.store.mu.Unlock
	}
	if err := q.store.failures[method]; err != nil {
		release()
		return nil, nil, err
	}
	st := q.state
	if st == nil {
		st = q.store.state
	}
	return st, release, nil
}

func (q *memQueries) StaffExists(ctx context.Context, id int64) (bool, error) {
	st, release, err := q.begin("StaffExists")
	if err != nil {
		return false, err
	}
	defer release()
	_, ok := st.staff[id]
	return ok, nil
}

func (q *memQueries) CustomerExists(ctx context.Context, id int64) (bool, error) {
	st, release, err := q.begin("CustomerExists")
	if err != nil {
		return false, err
	}
	defer release()
	_, ok := st.customers[id]
	return ok, nil
}

func (q *memQueries) DeleteStaff(ctx context.Context, id int64) error {
	st, release, err := q.begin("DeleteStaff")
	if err != nil {
		return err
	}
	defer release()
	if _, ok := st.staff[id]; !ok {
		return ErrNotFound
	}
	delete(st.staff, id)
	return nil
}

func (q *memQueries) DeleteCustomer(ctx context.Context, id int64) error {
	st, release, err := q.begin("DeleteCustomer")
	if err != nil {
		return err
	}
	defer release()
	if _, ok := st.customers[id]; !ok {
		return ErrNotFound
	}
	for _, o := range st.orders {
		if o.CustomerID == id {
			return ErrReferenced
		}
	}
	for sid, svc := range st.services {
		if svc.CustomerID == id {
			delete(st.services, sid)
		}
	}
	delete(st.customers, id)
	return nil
}

func (q *memQueries) ProductPrice(ctx context.Context, id int64) (decimal.Decimal, error) {
	st, release, err := q.begin("ProductPrice")
	if err != nil {
		return decimal.Zero, err
	}
	defer release()
	p, ok := st.products[id]
	if !ok {
		return decimal.Zero, ErrNotFound
	}
	return p.Price, nil
}

func (q *memQueries) ListProducts(ctx context.Context) ([]domain.Product, error) {
	st, release, err := q.begin("ListProducts")
	if err != nil {
		return nil, err
	}
	defer release()
	out := make([]domain.Product, 0, len(st.products))
	for _, p := range st.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (q *memQueries) InsertOrder(ctx context.Context, order *domain.Order) error {
	st, release, err := q.begin("InsertOrder")
	if err != nil {
		return err
	}
	defer release()
	order.ID = st.nextID()
	order.CreatedAt = q.store.now()
	st.orders[order.ID] = *order
	return nil
}

func (q *memQueries) GetOrderForUpdate(ctx context.Context, id int64) (*domain.Order, error) {
	st, release, err := q.begin("GetOrderForUpdate")
	if err != nil {
		return nil, err
	}
	defer release()
	o, ok := st.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &o, nil
}

func (q *memQueries) UpdateOrderStatus(ctx context.Context, id int64, status domain.OrderStatus) error {
	st, release, err := q.begin("UpdateOrderStatus")
	if err != nil {
		return err
	}
	defer release()
	o, ok := st.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.Status = status
	st.orders[id] = o
	return nil
}

func (q *memQueries) ListOrders(ctx context.Context, filter OrderFilter) ([]domain.OrderView, error) {
	st, release, err := q.begin("ListOrders")
	if err != nil {
		return nil, err
	}
	defer release()
	var out []domain.OrderView
	for _, o := range st.orders {
		if filter.CustomerID != nil && o.CustomerID != *filter.CustomerID {
			continue
		}
		if filter.PendingOnly && o.Status != domain.OrderStatusPending {
			continue
		}
		c, cok := st.customers[o.CustomerID]
		p, pok := st.products[o.ProductID]
		if !cok || !pok {
			continue
		}
		out = append(out, domain.OrderView{Order: o, CustomerEmail: c.Email, ProductName: p.Name})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if filter.PendingOnly {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.CreatedAt.After(b.CreatedAt)
		}
		if filter.PendingOnly {
			return a.ID < b.ID
		}
		return a.ID > b.ID
	})
	return out, nil
}

func (q *memQueries) FinishOrder(ctx context.Context, id int64) (bool, error) {
	st, release, err := q.begin("FinishOrder")
	if err != nil {
		return false, err
	}
	defer release()
	o, ok := st.orders[id]
	if !ok || o.Status != domain.OrderStatusDelivered {
		return false, nil
	}
	o.Status = domain.OrderStatusFinished
	st.orders[id] = o
	return true, nil
}

func (q *memQueries) FinishOldestDeliveredOrder(ctx context.Context, customerID, productID int64) (bool, error) {
	st, release, err := q.begin("FinishOldestDeliveredOrder")
	if err != nil {
		return false, err
	}
	defer release()
	var match *domain.Order
	for _, o := range st.orders {
		if o.CustomerID != customerID || o.ProductID != productID || o.Status != domain.OrderStatusDelivered {
			continue
		}
		if match == nil || o.CreatedAt.Before(match.CreatedAt) ||
			(o.CreatedAt.Equal(match.CreatedAt) && o.ID < match.ID) {
			o := o
			match = &o
		}
	}
	if match == nil {
		return false, nil
	}
	match.Status = domain.OrderStatusFinished
	st.orders[match.ID] = *match
	return true, nil
}

func (q *memQueries) CountOrders(ctx context.Context, customerID int64, statuses ...domain.OrderStatus) (int64, error) {
	st, release, err := q.begin("CountOrders")
	if err != nil {
		return 0, err
	}
	defer release()
	var n int64
	for _, o := range st.orders {
		if o.CustomerID == customerID && hasStatus(statuses, o.Status) {
			n++
		}
	}
	return n, nil
}

func (q *memQueries) SumOrderTotals(ctx context.Context, customerID int64, statuses ...domain.OrderStatus) (decimal.Decimal, error) {
	st, release, err := q.begin("SumOrderTotals")
	if err != nil {
		return decimal.Zero, err
	}
	defer release()
	total := decimal.Zero
	for _, o := range st.orders {
		if o.CustomerID == customerID && hasStatus(statuses, o.Status) {
			total = total.Add(o.TotalAmount)
		}
	}
	return total, nil
}

func hasStatus(statuses []domain.OrderStatus, s domain.OrderStatus) bool {
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}

func (q *memQueries) InsertService(ctx context.Context, svc *domain.ActiveService) error {
	st, release, err := q.begin("InsertService")
	if err != nil {
		return err
	}
	defer release()
	svc.ID = st.nextID()
	st.services[svc.ID] = *svc
	return nil
}

func (q *memQueries) GetServiceForUpdate(ctx context.Context, id int64) (*domain.ActiveService, error) {
	st, release, err := q.begin("GetServiceForUpdate")
	if err != nil {
		return nil, err
	}
	defer release()
	svc, ok := st.services[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &svc, nil
}

func (q *memQueries) UpdateService(ctx context.Context, id int64, patch domain.ServicePatch) error {
	st, release, err := q.begin("UpdateService")
	if err != nil {
		return err
	}
	defer release()
	svc, ok := st.services[id]
	if !ok {
		return ErrNotFound
	}
	if patch.Status != nil {
		svc.Status = *patch.Status
	}
	if patch.RecurringPrice != nil {
		svc.RecurringPrice = *patch.RecurringPrice
	}
	if patch.EndedAt != nil {
		svc.EndedAt = *patch.EndedAt
	}
	st.services[id] = svc
	return nil
}

func (q *memQueries) DeleteService(ctx context.Context, id int64) error {
	st, release, err := q.begin("DeleteService")
	if err != nil {
		return err
	}
	defer release()
	if _, ok := st.services[id]; !ok {
		return ErrNotFound
	}
	delete(st.services, id)
	return nil
}

func (q *memQueries) ListServices(ctx context.Context, filter ServiceFilter) ([]domain.ServiceView, error) {
	st, release, err := q.begin("ListServices")
	if err != nil {
		return nil, err
	}
	defer release()
	var out []domain.ServiceView
	for _, svc := range st.services {
		if filter.CustomerID != nil && svc.CustomerID != *filter.CustomerID {
			continue
		}
		c, cok := st.customers[svc.CustomerID]
		p, pok := st.products[svc.ProductID]
		if !cok || !pok {
			continue
		}
		out = append(out, domain.ServiceView{
			ActiveService:      svc,
			CustomerEmail:      c.Email,
			ProductName:        p.Name,
			ProductDescription: p.Description,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EndedAt.Equal(out[j].EndedAt) {
			return out[i].EndedAt.Before(out[j].EndedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (q *memQueries) CountServicesEndingAfter(ctx context.Context, customerID int64, t time.Time) (int64, error) {
	st, release, err := q.begin("CountServicesEndingAfter")
	if err != nil {
		return 0, err
	}
	defer release()
	var n int64
	for _, svc := range st.services {
		if svc.CustomerID == customerID && svc.EndedAt.After(t) {
			n++
		}
	}
	return n, nil
}

func (q *memQueries) InsertOutbox(ctx context.Context, event OutboxEvent) error {
	st, release, err := q.begin("InsertOutbox")
	if err != nil {
		return err
	}
	defer release()
	event.ID = st.nextID()
	event.CreatedAt = q.store.now()
	st.outbox = append(st.outbox, memOutbox{OutboxEvent: event})
	return nil
}

func (q *memQueries) FetchPendingOutbox(ctx context.Context, limit int) ([]OutboxEvent, error) {
	st, release, err := q.begin("FetchPendingOutbox")
	if err != nil {
		return nil, err
	}
	defer release()
	var out []OutboxEvent
	for _, e := range st.outbox {
		if len(out) >= limit {
			break
		}
		if !e.processed {
			out = append(out, e.OutboxEvent)
		}
	}
	return out, nil
}

func (q *memQueries) MarkOutboxProcessed(ctx context.Context, id int64) error {
	st, release, err := q.begin("MarkOutboxProcessed")
	if err != nil {
		return err
	}
	defer release()
	for i := range st.outbox {
		if st.outbox[i].ID == id {
			st.outbox[i].processed = true
			return nil
		}
	}
	return ErrNotFound
}
