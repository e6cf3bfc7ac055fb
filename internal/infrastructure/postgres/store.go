package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Zhima-Mochi/minishop-settlement/internal/application"
	"github.com/Zhima-Mochi/minishop-settlement/internal/domain/inventory"
)

// Store runs units of work in READ COMMITTED transactions. Row locks taken
// with FOR UPDATE serialise contention on products and payments.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

var _ application.UnitOfWork = (*Store)(nil)

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos application.Repositories) error) (err error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, repositories(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

func repositories(q queryer) application.Repositories {
	return application.Repositories{
		Products: &InventoryRepository{q: q},
		Orders:   &OrderRepository{q: q},
		Payments: &PaymentRepository{q: q},
		Outbox:   &OutboxRepository{q: q},
	}
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// SeedProduct inserts a catalog entry unless one with the same id exists.
// It reports whether the row was created.
func (s *Store) SeedProduct(ctx context.Context, p *inventory.Product) (bool, error) {
	return insertProductIfAbsent(ctx, s.db, p)
}
