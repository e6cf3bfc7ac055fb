package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	domain "github.com/Zhima-Mochi/minishop-settlement/internal/domain/inventory"
)

type InventoryRepository struct {
	q queryer
}

func (r *InventoryRepository) GetForUpdate(ctx context.Context, id string) (*domain.Product, error) {
	const query = `
		SELECT id, name, sku, price, stock, active, updated_at
		FROM products
		WHERE id = $1
		FOR UPDATE`
	var p domain.Product
	err := r.q.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.Name, &p.SKU, &p.Price, &p.Stock, &p.Active, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("inventory repository: get %s: %w", id, err)
	}
	return &p, nil
}

func (r *InventoryRepository) UpdateStock(ctx context.Context, p *domain.Product) error {
	const query = `UPDATE products SET stock = $2, updated_at = $3 WHERE id = $1`
	res, err := r.q.ExecContext(ctx, query, p.ID, p.Stock, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inventory repository: update %s: %w", p.ID, err)
	}
	return expectOne(res, domain.ErrNotFound)
}

// insertProductIfAbsent never touches an existing row, so live stock and
// prices survive a restart that seeds again.
func insertProductIfAbsent(ctx context.Context, q queryer, p *domain.Product) (bool, error) {
	const query = `
		INSERT INTO products (id, name, sku, price, stock, active, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`
	res, err := q.ExecContext(ctx, query, p.ID, p.Name, p.SKU, p.Price, p.Stock, p.Active, p.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("inventory repository: seed %s: %w", p.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func expectOne(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
