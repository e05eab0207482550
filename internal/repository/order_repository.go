package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"gozon/internal/domain"
)

func (r *pgQueries) InsertOrder(ctx context.Context, order *domain.Order) error {
	query := `
	INSERT INTO orders (customer_id, product_id, status, total_amount)
	VALUES ($1, $2, $3, $4)
	RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query, order.CustomerID, order.ProductID, order.Status, order.TotalAmount).
		Scan(&order.ID, &order.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

func (r *pgQueries) GetOrderForUpdate(ctx context.Context, id int64) (*domain.Order, error) {
	query := `
	SELECT id, customer_id, product_id, status, total_amount, created_at
	FROM orders
	WHERE id = $1
	FOR UPDATE`
	order := &domain.Order{}
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&order.ID, &order.CustomerID, &order.ProductID, &order.Status, &order.TotalAmount, &order.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get order error: %w", err)
	}
	return order, nil
}

func (r *pgQueries) UpdateOrderStatus(ctx context.Context, id int64, status domain.OrderStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE orders SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	ok, err := affectedOne(res)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (r *pgQueries) ListOrders(ctx context.Context, filter OrderFilter) ([]domain.OrderView, error) {
	var (
		where []string
		args  []any
	)
	if filter.CustomerID != nil {
		args = append(args, *filter.CustomerID)
		where = append(where, fmt.Sprintf("o.customer_id = $%d", len(args)))
	}
	order := "DESC"
	if filter.PendingOnly {
		args = append(args, domain.OrderStatusPending)
		where = append(where, fmt.Sprintf("o.status = $%d", len(args)))
		order = "ASC"
	}
	query := `
	SELECT o.id, o.customer_id, o.product_id, o.status, o.total_amount, o.created_at,
	       c.email, p.name
	FROM orders o
	JOIN customers c ON o.customer_id = c.id
	JOIN products p ON o.product_id = p.id`
	if len(where) > 0 {
		query += "\n\tWHERE " + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf("\n\tORDER BY o.created_at %s, o.id %s", order, order)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []domain.OrderView
	for rows.Next() {
		var v domain.OrderView
		if err := rows.Scan(&v.ID, &v.CustomerID, &v.ProductID, &v.Status, &v.TotalAmount, &v.CreatedAt,
			&v.CustomerEmail, &v.ProductName); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *pgQueries) FinishOrder(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
	UPDATE orders SET status = $1
	WHERE id = $2 AND status = $3`, domain.OrderStatusFinished, id, domain.OrderStatusDelivered)
	if err != nil {
		return false, fmt.Errorf("finish order: %w", err)
	}
	return affectedOne(res)
}

func (r *pgQueries) FinishOldestDeliveredOrder(ctx context.Context, customerID, productID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
	UPDATE orders SET status = $1
	WHERE id = (
	    SELECT id FROM orders
	    WHERE customer_id = $2 AND product_id = $3 AND status = $4
	    ORDER BY created_at ASC, id ASC
	    LIMIT 1
	    FOR UPDATE
	)`, domain.OrderStatusFinished, customerID, productID, domain.OrderStatusDelivered)
	if err != nil {
		return false, fmt.Errorf("finish matching order: %w", err)
	}
	return affectedOne(res)
}

func (r *pgQueries) CountOrders(ctx context.Context, customerID int64, statuses ...domain.OrderStatus) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `
	SELECT COUNT(*) FROM orders
	WHERE customer_id = $1 AND status = ANY($2)`, customerID, pq.Array(statusStrings(statuses))).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return n, nil
}

func (r *pgQueries) SumOrderTotals(ctx context.Context, customerID int64, statuses ...domain.OrderStatus) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.QueryRowContext(ctx, `
	SELECT COALESCE(SUM(total_amount), 0) FROM orders
	WHERE customer_id = $1 AND status = ANY($2)`, customerID, pq.Array(statusStrings(statuses))).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum orders: %w", err)
	}
	return total, nil
}

func statusStrings(statuses []domain.OrderStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}
