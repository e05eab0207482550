package service

import (
	"context"
	"time"

	"gozon/internal/access"
	"gozon/internal/domain"
	"gozon/internal/events"
	"gozon/internal/logging"
	"gozon/internal/repository"
)

// ListActive returns every service, soonest expiry first.
func (s *Service) ListActive(ctx context.Context, actor domain.Actor) ([]domain.ServiceView, error) {
	if err := s.policy.Authorize(actor, access.Administration, 0); err != nil {
		return nil, err
	}
	views, err := s.store.ListServices(ctx, repository.ServiceFilter{})
	if err != nil {
		return nil, domain.Internal("failed to list services", err)
	}
	return derive(views, s.now()), nil
}

// ListMine returns only the caller's own services.
func (s *Service) ListMine(ctx context.Context, actor domain.Actor) ([]domain.ServiceView, error) {
	if err := s.policy.Authorize(actor, access.SelfService, actor.ID); err != nil {
		return nil, err
	}
	customerID := actor.ID
	views, err := s.store.ListServices(ctx, repository.ServiceFilter{CustomerID: &customerID})
	if err != nil {
		return nil, domain.Internal("failed to list services", err)
	}
	return derive(views, s.now()), nil
}

func derive(views []domain.ServiceView, now time.Time) []domain.ServiceView {
	for i := range views {
		views[i].RuntimeStatus = views[i].RuntimeStatusAt(now)
		views[i].DaysRemaining = views[i].DaysRemainingAt(now)
	}
	return views
}

// Edit applies the populated fields of patch. Status values and the end date are not
// checked against the service lifecycle; operators are trusted here.
func (s *Service) Edit(ctx context.Context, actor domain.Actor, serviceID int64, patch domain.ServicePatch) error {
	if err := s.policy.Authorize(actor, access.Administration, 0); err != nil {
		return err
	}
	if patch.Empty() {
		return domain.BadRequest("nothing to update")
	}

	err := s.store.InTx(ctx, func(q repository.Queries) error {
		svc, err := loadService(ctx, q, serviceID)
		if err != nil {
			return err
		}
		if err := q.UpdateService(ctx, serviceID, patch); err != nil {
			return domain.Internal("failed to update service", err)
		}
		ev := events.Event{
			Type:       events.EventServiceUpdated,
			CustomerID: svc.CustomerID,
			ServiceID:  svc.ID,
			Status:     svc.Status,
			EndedAt:    domain.FormatTimestamp(svc.EndedAt),
		}
		if patch.Status != nil {
			ev.Status = *patch.Status
		}
		if patch.EndedAt != nil {
			ev.EndedAt = domain.FormatTimestamp(*patch.EndedAt)
		}
		return s.emit(ctx, q, ev)
	})
	if err != nil {
		return wrap(err, "failed to update service")
	}
	logStep(actor, "edit_service", logging.Fields{ServiceID: serviceID})
	return nil
}
