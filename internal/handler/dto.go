package handler

import (
	"github.com/shopspring/decimal"

	"gozon/internal/domain"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

type createOrderRequest struct {
	ProductID  int64  `json:"product_id"`
	CustomerID *int64 `json:"customer_id,omitempty"`
}

type validateOrderRequest struct {
	Status string `json:"status"`
}

type editServiceRequest struct {
	Status         *string          `json:"status"`
	RecurringPrice *decimal.Decimal `json:"recurring_price"`
	EndedAt        *string          `json:"ended_at"`
}

func (req editServiceRequest) patch() (domain.ServicePatch, error) {
	// values are taken as given; only the timestamp format is checked
	p := domain.ServicePatch{Status: req.Status, RecurringPrice: req.RecurringPrice}
	if req.EndedAt != nil {
		t, err := domain.ParseTimestamp(*req.EndedAt)
		if err != nil {
			return domain.ServicePatch{}, domain.BadRequest("ended_at must look like %s", domain.TimestampLayout)
		}
		p.EndedAt = &t
	}
	return p, nil
}

type createOrderResponse struct {
	OrderID int64  `json:"order_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type validateOrderResponse struct {
	OrderID   int64  `json:"order_id"`
	Status    string `json:"status"`
	ServiceID int64  `json:"service_id,omitempty"`
	Message   string `json:"message"`
}

type orderResponse struct {
	ID            int64           `json:"id"`
	CustomerID    int64           `json:"customer_id"`
	CustomerEmail string          `json:"customer_email"`
	ProductID     int64           `json:"product_id"`
	ProductName   string          `json:"product_name"`
	Status        string          `json:"status"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	CreatedAt     string          `json:"created_at"`
}

func toOrders(views []domain.OrderView) []orderResponse {
	out := make([]orderResponse, 0, len(views))
	for _, v := range views {
		out = append(out, orderResponse{
			ID:            v.ID,
			CustomerID:    v.CustomerID,
			CustomerEmail: v.CustomerEmail,
			ProductID:     v.ProductID,
			ProductName:   v.ProductName,
			Status:        string(v.Status),
			TotalAmount:   v.TotalAmount,
			CreatedAt:     domain.FormatTimestamp(v.CreatedAt),
		})
	}
	return out
}

type serviceResponse struct {
	ID                 int64           `json:"id"`
	OrderID            *int64          `json:"order_id,omitempty"`
	CustomerID         int64           `json:"customer_id"`
	CustomerEmail      string          `json:"customer_email,omitempty"`
	ProductID          int64           `json:"product_id"`
	ProductName        string          `json:"product_name,omitempty"`
	ProductDescription string          `json:"product_description,omitempty"`
	Status             string          `json:"status"`
	RuntimeStatus      string          `json:"runtime_status,omitempty"`
	DaysRemaining      int             `json:"days_remaining"`
	RecurringPrice     decimal.Decimal `json:"recurring_price"`
	StartedAt          string          `json:"started_at"`
	EndedAt            string          `json:"ended_at"`
}

func toService(v domain.ServiceView) serviceResponse {
	return serviceResponse{
		ID:                 v.ID,
		OrderID:            v.OrderID,
		CustomerID:         v.CustomerID,
		CustomerEmail:      v.CustomerEmail,
		ProductID:          v.ProductID,
		ProductName:        v.ProductName,
		ProductDescription: v.ProductDescription,
		Status:             v.Status,
		RuntimeStatus:      string(v.RuntimeStatus),
		DaysRemaining:      v.DaysRemaining,
		RecurringPrice:     v.RecurringPrice,
		StartedAt:          domain.FormatTimestamp(v.StartedAt),
		EndedAt:            domain.FormatTimestamp(v.EndedAt),
	}
}

func toServices(views []domain.ServiceView) []serviceResponse {
	out := make([]serviceResponse, 0, len(views))
	for _, v := range views {
		out = append(out, toService(v))
	}
	return out
}

type statsResponse struct {
	ActiveServices int64           `json:"active_services"`
	PendingOrders  int64           `json:"pending_orders"`
	TotalSpent     decimal.Decimal `json:"total_spent"`
}

type productResponse struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
}

func toProducts(products []domain.Product) []productResponse {
	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, productResponse{
			ID:            p.ID,
			Name:          p.Name,
			Description:   p.Description,
			Price:         p.Price,
			StockQuantity: p.StockQuantity,
		})
	}
	return out
}
