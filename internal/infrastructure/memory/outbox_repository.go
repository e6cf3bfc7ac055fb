package memory

import (
	"context"
	"fmt"
	"time"

	domain "github.com/Zhima-Mochi/minishop-settlement/internal/domain/outbox"
)

type OutboxRepository struct {
	s *state
}

func (r *OutboxRepository) Append(ctx context.Context, m domain.Message) error {
	_ = ctx
	if m.ID == "" {
		return fmt.Errorf("outbox repository: id is required")
	}
	m.Payload = append([]byte(nil), m.Payload...)
	r.s.outbox = append(r.s.outbox, m)
	return nil
}

func (r *OutboxRepository) Pending(ctx context.Context, limit int) ([]domain.Message, error) {
	_ = ctx
	out := make([]domain.Message, 0)
	for _, m := range r.s.outbox {
		if m.PublishedAt != nil {
			continue
		}
		out = append(out, m)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *OutboxRepository) MarkPublished(ctx context.Context, id string, at time.Time) error {
	_ = ctx
	for i := range r.s.outbox {
		if r.s.outbox[i].ID == id {
			ts := at.UTC()
			r.s.outbox[i].PublishedAt = &ts
			return nil
		}
	}
	return fmt.Errorf("outbox repository: message %s not found", id)
}
