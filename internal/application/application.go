package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/Zhima-Mochi/minishop-settlement/internal/domain/inventory"
	"github.com/Zhima-Mochi/minishop-settlement/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-settlement/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-settlement/internal/domain/payment"
)

type UseCase[C any, R any] interface {
	Execute(ctx context.Context, cmd C) (R, error)
}

var (
	ErrValidation      = errors.New("validation")
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthenticated = errors.New("unauthenticated")
)

// NewValidation wraps msg so it matches ErrValidation.
func NewValidation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Repositories are bound to one open transaction.
type Repositories struct {
	Products inventory.Repository
	Orders   order.Repository
	Payments payment.Repository
	Outbox   outbox.Repository
}

// UnitOfWork runs fn inside a single transaction. The transaction commits
// only when fn returns nil and is rolled back on any error or panic.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

type IDGenerator interface {
	NewID() string
}

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// Page clamps caller-supplied paging to sane bounds.
func Page(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
