package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gozon/internal/domain"
)

func (r *pgQueries) InsertService(ctx context.Context, svc *domain.ActiveService) error {
	query := `
	INSERT INTO active_services (order_id, customer_id, product_id, status, recurring_price, started_at, ended_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING id`
	err := r.db.QueryRowContext(ctx, query, svc.OrderID, svc.CustomerID, svc.ProductID, svc.Status,
		svc.RecurringPrice, svc.StartedAt, svc.EndedAt).Scan(&svc.ID)
	if err != nil {
		return fmt.Errorf("failed to insert service: %w", err)
	}
	return nil
}

func (r *pgQueries) GetServiceForUpdate(ctx context.Context, id int64) (*domain.ActiveService, error) {
	query := `
	SELECT id, order_id, customer_id, product_id, status, recurring_price, started_at, ended_at
	FROM active_services
	WHERE id = $1
	FOR UPDATE`
	svc := &domain.ActiveService{}
	var orderID sql.NullInt64
	err := r.db.QueryRowContext(ctx, query, id).Scan(&svc.ID, &orderID, &svc.CustomerID, &svc.ProductID,
		&svc.Status, &svc.RecurringPrice, &svc.StartedAt, &svc.EndedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get service error: %w", err)
	}
	if orderID.Valid {
		svc.OrderID = &orderID.Int64
	}
	return svc, nil
}

// UpdateService writes only the populated fields of patch in one statement.
func (r *pgQueries) UpdateService(ctx context.Context, id int64, patch domain.ServicePatch) error {
	res, err := r.db.ExecContext(ctx, `
	UPDATE active_services
	SET status = COALESCE($1, status),
	    recurring_price = COALESCE($2, recurring_price),
	    ended_at = COALESCE($3, ended_at)
	WHERE id = $4`, patch.Status, patch.RecurringPrice, patch.EndedAt, id)
	if err != nil {
		return fmt.Errorf("update service: %w", err)
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

func (r *pgQueries) DeleteService(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM active_services WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete service: %w", err)
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

func (r *pgQueries) ListServices(ctx context.Context, filter ServiceFilter) ([]domain.ServiceView, error) {
	query := `
	SELECT s.id, s.order_id, s.customer_id, s.product_id, s.status, s.recurring_price, s.started_at, s.ended_at,
	       c.email, p.name, p.description
	FROM active_services s
	JOIN customers c ON s.customer_id = c.id
	JOIN products p ON s.product_id = p.id`
	var args []any
	if filter.CustomerID != nil {
		query += "\n\tWHERE s.customer_id = $1"
		args = append(args, *filter.CustomerID)
	}
	query += "\n\tORDER BY s.ended_at ASC, s.id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	var out []domain.ServiceView
	for rows.Next() {
		var (
			v       domain.ServiceView
			orderID sql.NullInt64
		)
		if err := rows.Scan(&v.ID, &orderID, &v.CustomerID, &v.ProductID, &v.Status, &v.RecurringPrice,
			&v.StartedAt, &v.EndedAt, &v.CustomerEmail, &v.ProductName, &v.ProductDescription); err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		if orderID.Valid {
			id := orderID.Int64
			v.OrderID = &id
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *pgQueries) CountServicesEndingAfter(ctx context.Context, customerID int64, t time.Time) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `
	SELECT COUNT(*) FROM active_services
	WHERE customer_id = $1 AND ended_at > $2`, customerID, t).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count services: %w", err)
	}
	return n, nil
}
