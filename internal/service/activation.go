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

// activate materializes the service for a delivered order, priced at the current catalog price.
func (s *Service) activate(ctx context.Context, q repository.Queries, order domain.Order) (domain.ActiveService, error) {
	price, err := s.catalog.Within(q).PriceOf(ctx, order.ProductID)
	if err != nil {
		return domain.ActiveService{}, err
	}
	svc := domain.NewActiveService(order, price, s.now())
	if err := q.InsertService(ctx, &svc); err != nil {
		return domain.ActiveService{}, domain.Internal("failed to activate service", err)
	}
	err = s.emit(ctx, q, events.Event{
		Type:       events.EventServiceActivated,
		CustomerID: svc.CustomerID,
		OrderID:    order.ID,
		ServiceID:  svc.ID,
		Status:     svc.Status,
		EndedAt:    domain.FormatTimestamp(svc.EndedAt),
	})
	if err != nil {
		return domain.ActiveService{}, err
	}
	return svc, nil
}

// Terminate deletes a service and marks its originating order Finished.
// Services carrying an order link finish exactly that order; older rows without a link
// fall back to the oldest Delivered order for the same customer and product.
// Finding no order to finish is not an error.
func (s *Service) Terminate(ctx context.Context, actor domain.Actor, serviceID int64) error {
	if err := s.policy.Authorize(actor, access.Administration, 0); err != nil {
		return err
	}

	var finished bool
	err := s.store.InTx(ctx, func(q repository.Queries) error {
		svc, err := loadService(ctx, q, serviceID)
		if err != nil {
			return err
		}
		if err := q.DeleteService(ctx, serviceID); err != nil {
			return domain.Internal("failed to delete service", err)
		}
		if svc.OrderID != nil {
			finished, err = q.FinishOrder(ctx, *svc.OrderID)
		} else {
			finished, err = q.FinishOldestDeliveredOrder(ctx, svc.CustomerID, svc.ProductID)
		}
		if err != nil {
			return domain.Internal("failed to archive order", err)
		}
		ev := events.Event{
			Type:       events.EventServiceTerminated,
			CustomerID: svc.CustomerID,
			ServiceID:  svc.ID,
		}
		if svc.OrderID != nil {
			ev.OrderID = *svc.OrderID
		}
		if finished {
			ev.Status = string(domain.OrderStatusFinished)
		}
		return s.emit(ctx, q, ev)
	})
	if err != nil {
		return wrap(err, "failed to terminate service")
	}
	status := "order_untouched"
	if finished {
		status = "order_finished"
	}
	logStep(actor, "terminate_service", logging.Fields{ServiceID: serviceID, Status: status})
	return nil
}

// Renew extends a service by one period, counted from now when it has already expired.
func (s *Service) Renew(ctx context.Context, actor domain.Actor, serviceID int64) (domain.ActiveService, error) {
	if err := s.policy.Authorize(actor, access.Administration, 0); err != nil {
		return domain.ActiveService{}, err
	}

	var renewed domain.ActiveService
	err := s.store.InTx(ctx, func(q repository.Queries) error {
		svc, err := loadService(ctx, q, serviceID)
		if err != nil {
			return err
		}
		end := svc.RenewedEnd(s.now())
		if err := q.UpdateService(ctx, serviceID, domain.ServicePatch{EndedAt: &end}); err != nil {
			return domain.Internal("failed to renew service", err)
		}
		svc.EndedAt = end
		renewed = *svc
		return s.emit(ctx, q, events.Event{
			Type:       events.EventServiceRenewed,
			CustomerID: svc.CustomerID,
			ServiceID:  svc.ID,
			Status:     svc.Status,
			EndedAt:    domain.FormatTimestamp(end),
		})
	})
	if err != nil {
		return domain.ActiveService{}, wrap(err, "failed to renew service")
	}
	logStep(actor, "renew_service", logging.Fields{ServiceID: serviceID, Message: domain.FormatTimestamp(renewed.EndedAt)})
	return renewed, nil
}

func loadService(ctx context.Context, q repository.Queries, id int64) (*domain.ActiveService, error) {
	svc, err := q.GetServiceForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NotFound("service %d not found", id)
		}
		return nil, domain.Internal("failed to load service", err)
	}
	return svc, nil
}
