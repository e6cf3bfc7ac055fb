package inventory

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("inventory: product not found")
	ErrInvalidQuantity   = errors.New("inventory: quantity must be greater than zero")
	ErrInvalidPrice      = errors.New("inventory: price must be zero or greater")
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
	ErrInactive          = errors.New("inventory: product is not available")
)

// Product is the slice of the catalog this service reads and mutates: price and stock.
type Product struct {
	ID        string
	Name      string
	SKU       string
	Price     decimal.Decimal
	Stock     int
	Active    bool
	UpdatedAt time.Time
}

func NewProduct(id, name, sku string, price decimal.Decimal, stock int) (*Product, error) {
	if price.IsNegative() {
		return nil, ErrInvalidPrice
	}
	if stock < 0 {
		return nil, ErrInvalidQuantity
	}
	return &Product{
		ID:        id,
		Name:      name,
		SKU:       sku,
		Price:     price,
		Stock:     stock,
		Active:    true,
		UpdatedAt: time.Now().UTC(),
	}, nil
}

// Deduct reserves quantity units. The product is left untouched on error.
func (p *Product) Deduct(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if !p.Active {
		return fmt.Errorf("%w: %s", ErrInactive, p.label())
	}
	if quantity > p.Stock {
		return fmt.Errorf("%w for %s: requested %d, available %d", ErrInsufficientStock, p.label(), quantity, p.Stock)
	}
	p.Stock -= quantity
	p.touch()
	return nil
}

func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

func (p *Product) label() string {
	if p.Name != "" {
		return fmt.Sprintf("%q (%s)", p.Name, p.ID)
	}
	return p.ID
}

func (p *Product) touch() {
	p.UpdatedAt = time.Now().UTC()
}
