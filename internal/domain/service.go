package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ServiceStatusDelivered is stored on every freshly activated service.
const ServiceStatusDelivered = "Delivered"

type RuntimeStatus string

const (
	RuntimeStatusActive  RuntimeStatus = "Active"
	RuntimeStatusExpired RuntimeStatus = "Expired"
)

// ActiveService is a time-bounded grant of a product produced by an approved order.
// OrderID is nil for rows created before services were linked to their order.
type ActiveService struct {
	ID             int64
	OrderID        *int64
	CustomerID     int64
	ProductID      int64
	Status         string
	RecurringPrice decimal.Decimal
	StartedAt      time.Time
	EndedAt        time.Time
}

// NewActiveService starts a service period at now.
func NewActiveService(order Order, price decimal.Decimal, now time.Time) ActiveService {
	orderID := order.ID
	return ActiveService{
		OrderID:        &orderID,
		CustomerID:     order.CustomerID,
		ProductID:      order.ProductID,
		Status:         ServiceStatusDelivered,
		RecurringPrice: price,
		StartedAt:      now,
		EndedAt:        AddServicePeriod(now),
	}
}

// RuntimeStatusAt reports Active only while EndedAt is strictly after now.
func (s ActiveService) RuntimeStatusAt(now time.Time) RuntimeStatus {
	if s.EndedAt.After(now) {
		return RuntimeStatusActive
	}
	return RuntimeStatusExpired
}

// DaysRemainingAt is the floor of the remaining whole days, 0 once expired.
func (s ActiveService) DaysRemainingAt(now time.Time) int {
	if s.RuntimeStatusAt(now) == RuntimeStatusExpired {
		return 0
	}
	return int(wallClock(s.EndedAt).Sub(wallClock(now)) / (24 * time.Hour))
}

// wallClock reads t as local wall-clock time so day counts ignore daylight saving shifts.
func wallClock(t time.Time) time.Time {
	l := t.In(time.Local)
	return time.Date(l.Year(), l.Month(), l.Day(), l.Hour(), l.Minute(), l.Second(), l.Nanosecond(), time.UTC)
}

// RenewedEnd extends from the later of the current end and now.
func (s ActiveService) RenewedEnd(now time.Time) time.Time {
	base := s.EndedAt
	if now.After(base) {
		base = now
	}
	return AddServicePeriod(base)
}

// ServiceView is a service joined with display data and its derived runtime state.
type ServiceView struct {
	ActiveService
	CustomerEmail      string
	ProductName        string
	ProductDescription string
	RuntimeStatus      RuntimeStatus
	DaysRemaining      int
}

// ServicePatch holds the optional fields of a service edit. Nil fields are left untouched.
type ServicePatch struct {
	Status         *string
	RecurringPrice *decimal.Decimal
	EndedAt        *time.Time
}

func (p ServicePatch) Empty() bool {
	return p.Status == nil && p.RecurringPrice == nil && p.EndedAt == nil
}

type DashboardStats struct {
	ActiveCount       int64
	PendingOrderCount int64
	TotalSpent        decimal.Decimal
}
