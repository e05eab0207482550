package service

import (
	"context"
	"errors"

	"gozon/internal/access"
	"gozon/internal/domain"
	"gozon/internal/logging"
	"gozon/internal/repository"
)

func (s *Service) DeleteStaff(ctx context.Context, actor domain.Actor, staffID int64) error {
	if err := s.policy.Authorize(actor, access.Administration, 0); err != nil {
		return err
	}
	if staffID == actor.ID {
		return domain.BadRequest("operators cannot delete their own account")
	}
	if err := s.store.DeleteStaff(ctx, staffID); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return domain.NotFound("staff member %d not found", staffID)
		case errors.Is(err, repository.ErrReferenced):
			return domain.Conflict("staff member %d is still referenced", staffID)
		}
		return domain.Internal("failed to delete staff member", err)
	}
	logStep(actor, "delete_staff", logging.Fields{Message: "deleted staff member"})
	return nil
}

// DeleteCustomer removes a customer and their services. Customers with order history are
// kept, since orders are never deleted.
func (s *Service) DeleteCustomer(ctx context.Context, actor domain.Actor, customerID int64) error {
	if err := s.policy.Authorize(actor, access.Administration, 0); err != nil {
		return err
	}
	if err := s.store.DeleteCustomer(ctx, customerID); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return domain.NotFound("customer %d not found", customerID)
		case errors.Is(err, repository.ErrReferenced):
			return domain.Conflict("customer %d has order history and cannot be deleted", customerID)
		}
		return domain.Internal("failed to delete customer", err)
	}
	logStep(actor, "delete_customer", logging.Fields{Message: "deleted customer"})
	return nil
}
