package service

import (
	"context"

	"gozon/internal/access"
	"gozon/internal/domain"
)

// Stats summarizes the caller's services and orders. TotalSpent counts only orders that
// were delivered, including those finished since.
func (s *Service) Stats(ctx context.Context, actor domain.Actor) (domain.DashboardStats, error) {
	if err := s.policy.Authorize(actor, access.SelfService, actor.ID); err != nil {
		return domain.DashboardStats{}, err
	}
	active, err := s.store.CountServicesEndingAfter(ctx, actor.ID, s.now())
	if err != nil {
		return domain.DashboardStats{}, domain.Internal("failed to count services", err)
	}
	pending, err := s.store.CountOrders(ctx, actor.ID, domain.OrderStatusPending, domain.OrderStatusProcessing)
	if err != nil {
		return domain.DashboardStats{}, domain.Internal("failed to count orders", err)
	}
	spent, err := s.store.SumOrderTotals(ctx, actor.ID, domain.OrderStatusDelivered, domain.OrderStatusFinished)
	if err != nil {
		return domain.DashboardStats{}, domain.Internal("failed to sum orders", err)
	}
	return domain.DashboardStats{
		ActiveCount:       active,
		PendingOrderCount: pending,
		TotalSpent:        spent,
	}, nil
}
