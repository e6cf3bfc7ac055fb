package order

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("order: not found")
	ErrConflict          = errors.New("order: conflict")
	ErrNoItems           = errors.New("order: at least one line item is required")
	ErrInvalidQuantity   = errors.New("order: quantity must be greater than zero")
	ErrInvalidPrice      = errors.New("order: unit price must be zero or greater")
	ErrInvalidTransition = errors.New("order: invalid status transition")
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusPaid     Status = "paid"
	StatusCanceled Status = "canceled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusCanceled:
		return true
	default:
		return false
	}
}

// LineItem is a priced entry of an order. UnitPrice is the catalog price
// captured when the order was placed and never changes afterwards.
type LineItem struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
}

func NewLineItem(productID string, quantity int, unitPrice decimal.Decimal) (LineItem, error) {
	if quantity <= 0 {
		return LineItem{}, ErrInvalidQuantity
	}
	if unitPrice.IsNegative() {
		return LineItem{}, ErrInvalidPrice
	}
	return LineItem{
		ProductID: productID,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		Subtotal:  unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
	}, nil
}

type Order struct {
	ID              string
	CustomerID      string
	ShippingAddress string
	Items           []LineItem
	Total           decimal.Decimal
	Status          Status
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func New(id, customerID, shippingAddress string) *Order {
	now := time.Now().UTC()
	return &Order{
		ID:              id,
		CustomerID:      customerID,
		ShippingAddress: shippingAddress,
		Total:           decimal.Zero,
		Status:          StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// AddItem appends a line and folds its subtotal into the total.
func (o *Order) AddItem(item LineItem) {
	o.Items = append(o.Items, item)
	o.Total = o.Total.Add(item.Subtotal)
}

// Validate checks the aggregate is complete enough to persist.
func (o *Order) Validate() error {
	if len(o.Items) == 0 {
		return ErrNoItems
	}
	return nil
}

// MarkPaid records a successful settlement.
func (o *Order) MarkPaid() error {
	return o.transition(func(s State) (State, error) { return s.OnPaymentSettled(o) })
}

func (o *Order) OwnedBy(userID string) bool {
	return userID != "" && o.CustomerID == userID
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Items = append([]LineItem(nil), o.Items...)
	return &c
}

func (o *Order) transition(step func(State) (State, error)) error {
	current, err := StateFor(o.Status)
	if err != nil {
		return err
	}
	next, err := step(current)
	if err != nil {
		return err
	}
	if next.Status() != o.Status {
		o.Status = next.Status()
		o.touch()
	}
	return nil
}

func (o *Order) touch() {
	o.UpdatedAt = time.Now().UTC()
}
