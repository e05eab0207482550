package service

import (
	"context"
	"errors"

	"gozon/internal/access"
	"gozon/internal/domain"
	"gozon/internal/events"
	"gozon/internal/logging"
	"gozon/internal/repository"
)

type CreateOrderInput struct {
	ProductID int64
	// CustomerID is required for operators and ignored for customers, who always order for themselves.
	CustomerID *int64
}

// CreateOrder records a Pending order priced at the product's current catalog price.
func (s *Service) CreateOrder(ctx context.Context, actor domain.Actor, in CreateOrderInput) (int64, error) {
	if in.ProductID <= 0 {
		return 0, domain.BadRequest("product id is required")
	}
	customerID := actor.ID
	if actor.IsOperator() {
		if in.CustomerID == nil || *in.CustomerID <= 0 {
			return 0, domain.BadRequest("customer_id is required when ordering as staff")
		}
		customerID = *in.CustomerID
	}

	var order domain.Order
	err := s.store.InTx(ctx, func(q repository.Queries) error {
		exists, err := q.CustomerExists(ctx, customerID)
		if err != nil {
			return domain.Internal("failed to look up customer", err)
		}
		if !exists {
			return domain.NotFound("customer %d does not exist", customerID)
		}
		price, err := s.catalog.Within(q).PriceOf(ctx, in.ProductID)
		if err != nil {
			return err
		}
		order = domain.Order{
			CustomerID:  customerID,
			ProductID:   in.ProductID,
			Status:      domain.OrderStatusPending,
			TotalAmount: price,
		}
		if err := q.InsertOrder(ctx, &order); err != nil {
			return domain.Internal("failed to create order", err)
		}
		return s.emit(ctx, q, events.Event{
			Type:       events.EventOrderCreated,
			CustomerID: order.CustomerID,
			OrderID:    order.ID,
			Status:     string(order.Status),
		})
	})
	if err != nil {
		return 0, wrap(err, "failed to create order")
	}
	logStep(actor, "create_order", logging.Fields{OrderID: order.ID, Status: string(order.Status)})
	return order.ID, nil
}

// ListOrders returns the whole order history newest first, or the pending queue oldest first.
func (s *Service) ListOrders(ctx context.Context, actor domain.Actor, pendingOnly bool) ([]domain.OrderView, error) {
	if err := s.policy.Authorize(actor, access.Administration, 0); err != nil {
		return nil, err
	}
	orders, err := s.store.ListOrders(ctx, repository.OrderFilter{PendingOnly: pendingOnly})
	if err != nil {
		return nil, domain.Internal("failed to list orders", err)
	}
	return orders, nil
}

// ListMyOrders returns the caller's own order history, newest first.
func (s *Service) ListMyOrders(ctx context.Context, actor domain.Actor) ([]domain.OrderView, error) {
	if err := s.policy.Authorize(actor, access.SelfService, actor.ID); err != nil {
		return nil, err
	}
	customerID := actor.ID
	orders, err := s.store.ListOrders(ctx, repository.OrderFilter{CustomerID: &customerID})
	if err != nil {
		return nil, domain.Internal("failed to list orders", err)
	}
	return orders, nil
}

// ValidateOrder moves an order to newStatus. Delivering an order activates a service in
// the same transaction; an order that already left the allowed source states is refused,
// so approving twice never produces a second service.
func (s *Service) ValidateOrder(ctx context.Context, actor domain.Actor, orderID int64, newStatus string) (*domain.ActiveService, error) {
	if err := s.policy.Authorize(actor, access.Administration, 0); err != nil {
		return nil, err
	}
	status, ok := domain.ParseValidationStatus(newStatus)
	if !ok {
		return nil, domain.BadRequest("invalid status %q", newStatus)
	}

	var activated *domain.ActiveService
	err := s.store.InTx(ctx, func(q repository.Queries) error {
		order, err := q.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return domain.NotFound("order %d not found", orderID)
			}
			return domain.Internal("failed to load order", err)
		}
		if !order.Status.CanTransitionTo(status) {
			return domain.Conflict("order %d is %s and cannot become %s", orderID, order.Status, status)
		}
		if err := q.UpdateOrderStatus(ctx, orderID, status); err != nil {
			return domain.Internal("failed to update order", err)
		}
		err = s.emit(ctx, q, events.Event{
			Type:       events.EventOrderValidated,
			CustomerID: order.CustomerID,
			OrderID:    order.ID,
			Status:     string(status),
		})
		if err != nil {
			return err
		}
		if status != domain.OrderStatusDelivered {
			return nil
		}
		svc, err := s.activate(ctx, q, *order)
		if err != nil {
			return err
		}
		activated = &svc
		return nil
	})
	if err != nil {
		return nil, wrap(err, "failed to validate order")
	}

	f := logging.Fields{OrderID: orderID, Status: string(status)}
	if activated != nil {
		f.ServiceID = activated.ID
	}
	logStep(actor, "validate_order", f)
	return activated, nil
}
