package order

import "fmt"

// State implements the state pattern for order lifecycle transitions.
// PENDING may move to PAID. PAID and CANCELED are terminal.
type State interface {
	Status() Status
	OnPaymentSettled(o *Order) (State, error)
}

// StateFor resolves the state object for a persisted status.
func StateFor(s Status) (State, error) {
	switch s {
	case StatusPending:
		return pendingState{}, nil
	case StatusPaid:
		return paidState{}, nil
	case StatusCanceled:
		return canceledState{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, s)
	}
}

type pendingState struct{}

func (pendingState) Status() Status { return StatusPending }

func (pendingState) OnPaymentSettled(*Order) (State, error) {
	return paidState{}, nil
}

type paidState struct{}

func (paidState) Status() Status { return StatusPaid }

func (paidState) OnPaymentSettled(*Order) (State, error) {
	return nil, fmt.Errorf("%w: order already paid", ErrInvalidTransition)
}

type canceledState struct{}

func (canceledState) Status() Status { return StatusCanceled }

func (canceledState) OnPaymentSettled(*Order) (State, error) {
	return nil, fmt.Errorf("%w: order is canceled", ErrInvalidTransition)
}
