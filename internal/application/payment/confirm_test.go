package payment_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Zhima-Mochi/minishop-settlement/internal/application"
	apppayment "github.com/Zhima-Mochi/minishop-settlement/internal/application/payment"
	domorder "github.com/Zhima-Mochi/minishop-settlement/internal/domain/order"
	domain "github.com/Zhima-Mochi/minishop-settlement/internal/domain/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) confirm() *apppayment.ConfirmPaymentUseCase {
	return apppayment.NewConfirmPaymentUseCase(f.store, f.gateways, f.ids, nil)
}

func (f *fixture) payment(t *testing.T, paymentID string) *domain.Payment {
	t.Helper()
	p, err := apppayment.NewGetPaymentUseCase(f.store, nil).Execute(context.Background(), apppayment.GetPaymentInput{Actor: staff, PaymentID: paymentID})
	require.NoError(t, err)
	return p
}

func (f *fixture) pendingPayment(t *testing.T, provider string) (*domorder.Order, *domain.Payment) {
	t.Helper()
	o := f.placeOrder(t, alice)
	res, err := f.create().Execute(context.Background(), apppayment.CreatePaymentInput{Actor: alice, OrderID: o.ID, Provider: provider})
	require.NoError(t, err)
	return o, res.Payment
}

func TestConfirmSettlesPaymentAndOrderTogether(t *testing.T) {
	f := newFixture(t)
	o, p := f.pendingPayment(t, "stripe")

	res, err := f.confirm().Execute(context.Background(), apppayment.ConfirmPaymentInput{Actor: alice, PaymentID: p.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, res.Payment.Status)
	assert.Equal(t, p.TransactionID, res.Payment.TransactionID)

	assert.Equal(t, domain.StatusSuccess, f.payment(t, p.ID).Status)
	assert.Equal(t, domorder.StatusPaid, f.order(t, o.ID).Status)

	_, _, messages := f.store.Counts()
	assert.Equal(t, 2, messages, "order.created and payment.settled")
}

func TestConfirmTwiceIsAlreadySettled(t *testing.T) {
	f := newFixture(t)
	o, p := f.pendingPayment(t, "bkash")
	confirm := f.confirm()

	_, err := confirm.Execute(context.Background(), apppayment.ConfirmPaymentInput{Actor: alice, PaymentID: p.ID})
	require.NoError(t, err)
	before := f.payment(t, p.ID)
	orderBefore := f.order(t, o.ID)

	_, err = confirm.Execute(context.Background(), apppayment.ConfirmPaymentInput{Actor: alice, PaymentID: p.ID})
	assert.ErrorIs(t, err, domain.ErrAlreadySettled)

	assert.Equal(t, before, f.payment(t, p.ID))
	assert.Equal(t, orderBefore, f.order(t, o.ID))
	assert.Equal(t, 1, f.bkash.confirms, "settled payments never reach the provider again")
}

func TestConfirmNotYetSucceededLeavesPaymentUntouched(t *testing.T) {
	for _, status := range []domain.Status{domain.StatusPending, domain.StatusFailed} {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture(t)
			o, p := f.pendingPayment(t, "stripe")
			f.stripe.confirmStatus = status

			_, err := f.confirm().Execute(context.Background(), apppayment.ConfirmPaymentInput{Actor: alice, PaymentID: p.ID})
			require.ErrorIs(t, err, domain.ErrNotConfirmed)
			assert.Contains(t, err.Error(), string(status))

			assert.Equal(t, domain.StatusPending, f.payment(t, p.ID).Status)
			assert.Equal(t, domorder.StatusPending, f.order(t, o.ID).Status)
		})
	}
}

func TestConfirmAccessRules(t *testing.T) {
	f := newFixture(t)
	_, p := f.pendingPayment(t, "bkash")

	_, err := f.confirm().Execute(context.Background(), apppayment.ConfirmPaymentInput{Actor: bob, PaymentID: p.ID})
	assert.ErrorIs(t, err, application.ErrForbidden)

	_, err = f.confirm().Execute(context.Background(), apppayment.ConfirmPaymentInput{Actor: alice, PaymentID: "missing"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.confirm().Execute(context.Background(), apppayment.ConfirmPaymentInput{Actor: staff, PaymentID: p.ID})
	assert.NoError(t, err, "staff may confirm on behalf of a customer")
}

func TestConfirmGatewayErrorIsWrapped(t *testing.T) {
	f := newFixture(t)
	_, p := f.pendingPayment(t, "stripe")
	f.stripe.confirmErr = errors.New("timeout")

	_, err := f.confirm().Execute(context.Background(), apppayment.ConfirmPaymentInput{Actor: alice, PaymentID: p.ID})
	assert.ErrorIs(t, err, domain.ErrGateway)
	assert.Equal(t, domain.StatusPending, f.payment(t, p.ID).Status)
}
