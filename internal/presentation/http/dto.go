package httppresentation

import (
	"time"

	domainOrder "github.com/Zhima-Mochi/minishop-settlement/internal/domain/order"
	domainPayment "github.com/Zhima-Mochi/minishop-settlement/internal/domain/payment"
	"github.com/shopspring/decimal"
)

// Money is rendered as a fixed two-decimal string so no precision is lost in JSON.

type createOrderRequest struct {
	ShippingAddress string             `json:"shipping_address"`
	Items           []orderItemRequest `json:"items"`
}

type orderItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type orderItemResponse struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Subtotal  string `json:"subtotal"`
}

type orderResponse struct {
	ID              string              `json:"id"`
	CustomerID      string              `json:"customer_id"`
	ShippingAddress string              `json:"shipping_address"`
	Status          domainOrder.Status  `json:"status"`
	Total           string              `json:"total"`
	Items           []orderItemResponse `json:"items"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

func toOrderResponse(o *domainOrder.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemResponse{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: money(it.UnitPrice),
			Subtotal:  money(it.Subtotal),
		})
	}
	return orderResponse{
		ID:              o.ID,
		CustomerID:      o.CustomerID,
		ShippingAddress: o.ShippingAddress,
		Status:          o.Status,
		Total:           money(o.Total),
		Items:           items,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

type createPaymentRequest struct {
	OrderID  string `json:"order_id"`
	Provider string `json:"provider"`
	// Amount is accepted for compatibility and ignored: the order total is charged.
	Amount *decimal.Decimal `json:"amount,omitempty"`
}

type paymentResponse struct {
	ID            string                 `json:"id"`
	OrderID       string                 `json:"order_id"`
	UserID        string                 `json:"user_id"`
	Amount        string                 `json:"amount"`
	Provider      domainPayment.Provider `json:"provider"`
	TransactionID string                 `json:"transaction_id,omitempty"`
	Status        domainPayment.Status   `json:"status"`
	ClientSecret  string                 `json:"client_secret,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

func toPaymentResponse(p *domainPayment.Payment) paymentResponse {
	return paymentResponse{
		ID:            p.ID,
		OrderID:       p.OrderID,
		UserID:        p.UserID,
		Amount:        money(p.Amount),
		Provider:      p.Provider,
		TransactionID: p.TransactionID,
		Status:        p.Status,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

type confirmPaymentResponse struct {
	PaymentID     string               `json:"payment_id"`
	Status        domainPayment.Status `json:"status"`
	TransactionID string               `json:"transaction_id"`
}

type webhookResponse struct {
	Received bool `json:"received"`
}

func money(d decimal.Decimal) string { return d.StringFixed(2) }
