package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"gozon/internal/domain"
)

func (r *pgQueries) StaffExists(ctx context.Context, id int64) (bool, error) {
	return r.exists(ctx, `SELECT 1 FROM staff WHERE id = $1`, id)
}

func (r *pgQueries) CustomerExists(ctx context.Context, id int64) (bool, error) {
	return r.exists(ctx, `SELECT 1 FROM customers WHERE id = $1`, id)
}

func (r *pgQueries) exists(ctx context.Context, query string, id int64) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, query, id).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("lookup %d: %w", id, err)
	}
	return true, nil
}

func (r *pgQueries) DeleteStaff(ctx context.Context, id int64) error {
	return r.deleteByID(ctx, `DELETE FROM staff WHERE id = $1`, id)
}

func (r *pgQueries) DeleteCustomer(ctx context.Context, id int64) error {
	return r.deleteByID(ctx, `DELETE FROM customers WHERE id = $1`, id)
}

func (r *pgQueries) deleteByID(ctx context.Context, query string, id int64) error {
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrReferenced
		}
		return fmt.Errorf("delete %d: %w", id, err)
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

func (r *pgQueries) ProductPrice(ctx context.Context, id int64) (decimal.Decimal, error) {
	var price decimal.Decimal
	err := r.db.QueryRowContext(ctx, `SELECT price FROM products WHERE id = $1`, id).Scan(&price)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, ErrNotFound
		}
		return decimal.Zero, fmt.Errorf("get product price: %w", err)
	}
	return price, nil
}

func (r *pgQueries) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, name, description, price, stock_quantity
	FROM products
	ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.StockQuantity); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
