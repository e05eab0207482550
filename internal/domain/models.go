package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "Pending"
	OrderStatusProcessing OrderStatus = "Processing"
	OrderStatusDelivered  OrderStatus = "Delivered"
	OrderStatusCancelled  OrderStatus = "Cancelled"
	OrderStatusFinished   OrderStatus = "Finished"
)

// ServicePeriodDays is the lifetime granted by one activation or renewal.
const ServicePeriodDays = 30

// AddServicePeriod moves t forward by one period in calendar days, keeping the wall clock
// across daylight saving changes.
func AddServicePeriod(t time.Time) time.Time {
	return t.AddDate(0, 0, ServicePeriodDays)
}

// orderTransitions lists the statuses an operator may move an order to.
// Finished is reached only through service termination.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusDelivered, OrderStatusCancelled},
}

// ParseValidationStatus accepts only the statuses settable by order validation.
func ParseValidationStatus(s string) (OrderStatus, bool) {
	switch st := OrderStatus(s); st {
	case OrderStatusProcessing, OrderStatusDelivered, OrderStatusCancelled:
		return st, true
	}
	return "", false
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Order struct {
	ID          int64
	CustomerID  int64
	ProductID   int64
	Status      OrderStatus
	TotalAmount decimal.Decimal
	CreatedAt   time.Time
}

// OrderView is an order joined with display data.
type OrderView struct {
	Order
	CustomerEmail string
	ProductName   string
}

type Product struct {
	ID            int64
	Name          string
	Description   string
	Price         decimal.Decimal
	StockQuantity int
}

type Staff struct {
	ID    int64
	Email string
}

type Customer struct {
	ID    int64
	Email string
}
