package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	domorder "github.com/Zhima-Mochi/minishop-settlement/internal/domain/order"
	domain "github.com/Zhima-Mochi/minishop-settlement/internal/domain/payment"
	"github.com/lib/pq"
)

type PaymentRepository struct {
	q queryer
}

const paymentColumns = `id, user_id, order_id, amount, provider, transaction_id, status, created_at, updated_at`

const foreignKeyViolation = pq.ErrorCode("23503")

func (r *PaymentRepository) Insert(ctx context.Context, p *domain.Payment) error {
	const query = `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.q.ExecContext(ctx, query,
		p.ID, p.UserID, p.OrderID, p.Amount, string(p.Provider),
		sql.NullString{String: p.TransactionID, Valid: p.TransactionID != ""},
		string(p.Status), p.CreatedAt, p.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %v", domain.ErrConflict, err)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
		return fmt.Errorf("payment repository: %w", domorder.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("payment repository: insert %s: %w", p.ID, err)
	}
	return nil
}

func (r *PaymentRepository) Get(ctx context.Context, id string) (*domain.Payment, error) {
	return r.one(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
}

func (r *PaymentRepository) GetForUpdate(ctx context.Context, id string) (*domain.Payment, error) {
	return r.one(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1 FOR UPDATE`, id)
}

func (r *PaymentRepository) GetByTransactionIDForUpdate(ctx context.Context, transactionID string) (*domain.Payment, error) {
	if transactionID == "" {
		return nil, domain.ErrNotFound
	}
	return r.one(ctx, `SELECT `+paymentColumns+` FROM payments WHERE transaction_id = $1 FOR UPDATE`, transactionID)
}

func (r *PaymentRepository) HasOpenForOrder(ctx context.Context, orderID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM payments WHERE order_id = $1 AND status IN ('pending', 'success'))`
	var open bool
	if err := r.q.QueryRowContext(ctx, query, orderID).Scan(&open); err != nil {
		return false, fmt.Errorf("payment repository: open for %s: %w", orderID, err)
	}
	return open, nil
}

func (r *PaymentRepository) List(ctx context.Context, f domain.ListFilter) ([]*domain.Payment, error) {
	const query = `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE ($1 = '' OR user_id = $1)
		  AND ($2 = '' OR order_id = $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4`
	rows, err := r.q.QueryContext(ctx, query, f.UserID, f.OrderID, f.Limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("payment repository: list: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("payment repository: scan: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PaymentRepository) UpdateStatus(ctx context.Context, p *domain.Payment) error {
	const query = `UPDATE payments SET status = $2, updated_at = $3 WHERE id = $1`
	res, err := r.q.ExecContext(ctx, query, p.ID, string(p.Status), p.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %v", domain.ErrConflict, err)
	}
	if err != nil {
		return fmt.Errorf("payment repository: update %s: %w", p.ID, err)
	}
	return expectOne(res, domain.ErrNotFound)
}

func (r *PaymentRepository) one(ctx context.Context, query string, arg string) (*domain.Payment, error) {
	p, err := scanPayment(r.q.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("payment repository: get %s: %w", arg, err)
	}
	return p, nil
}

func scanPayment(row rowScanner) (*domain.Payment, error) {
	var (
		p                domain.Payment
		provider, status string
		txID             sql.NullString
	)
	if err := row.Scan(&p.ID, &p.UserID, &p.OrderID, &p.Amount, &provider, &txID, &status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Provider = domain.Provider(provider)
	p.TransactionID = txID.String
	p.Status = domain.Status(status)
	if !p.Status.Valid() {
		return nil, fmt.Errorf("payment %s: unknown status %q", p.ID, status)
	}
	return &p, nil
}
