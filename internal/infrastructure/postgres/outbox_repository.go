package postgres

import (
	"context"
	"fmt"
	"time"

	domain "github.com/Zhima-Mochi/minishop-settlement/internal/domain/outbox"
)

type OutboxRepository struct {
	q queryer
}

func (r *OutboxRepository) Append(ctx context.Context, m domain.Message) error {
	const query = `
		INSERT INTO outbox_messages (id, name, aggregate_key, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.q.ExecContext(ctx, query, m.ID, m.Name, m.Key, string(m.Payload), m.OccurredAt); err != nil {
		return fmt.Errorf("outbox repository: append %s: %w", m.Name, err)
	}
	return nil
}

// Pending locks up to limit unpublished rows; concurrent relays skip them.
func (r *OutboxRepository) Pending(ctx context.Context, limit int) ([]domain.Message, error) {
	const query = `
		SELECT id, name, aggregate_key, payload, occurred_at
		FROM outbox_messages
		WHERE published_at IS NULL
		ORDER BY occurred_at, id
		LIMIT $1
		FOR UPDATE SKIP LOCKED`
	rows, err := r.q.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("outbox repository: pending: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Message, 0)
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.Name, &m.Key, &m.Payload, &m.OccurredAt); err != nil {
			return nil, fmt.Errorf("outbox repository: scan: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *OutboxRepository) MarkPublished(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE outbox_messages SET published_at = $2 WHERE id = $1 AND published_at IS NULL`
	res, err := r.q.ExecContext(ctx, query, id, at.UTC())
	if err != nil {
		return fmt.Errorf("outbox repository: mark %s: %w", id, err)
	}
	return expectOne(res, fmt.Errorf("outbox repository: message %s not pending", id))
}
