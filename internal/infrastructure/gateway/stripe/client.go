// Package stripe talks to the Stripe PaymentIntents API and authenticates its webhooks.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Zhima-Mochi/minishop-settlement/internal/domain/payment"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

const (
	DefaultBaseURL = "https://api.stripe.com"
	DefaultTimeout = 10 * time.Second

	intentsPath = "/v1/payment_intents"
)

type Config struct {
	SecretKey string
	BaseURL   string
	Timeout   time.Duration
}

// Client is the Stripe implementation of payment.Gateway.
type Client struct {
	http *resty.Client
}

func New(cfg Config) (*Client, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("stripe: secret key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	hc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetAuthToken(cfg.SecretKey).
		SetHeader("Accept", "application/json")
	return &Client{http: hc}, nil
}

type intent struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	ClientSecret string `json:"client_secret"`
}

type errorEnvelope struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// APIError is a non-2xx answer from Stripe.
type APIError struct {
	StatusCode int
	Type       string
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Code != "" {
		return fmt.Sprintf("stripe: %d %s: %s", e.StatusCode, e.Code, msg)
	}
	return fmt.Sprintf("stripe: %d: %s", e.StatusCode, msg)
}

// ClientError reports a request Stripe refused (4xx) as opposed to an outage.
func (e *APIError) ClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

func (c *Client) Initiate(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (payment.Initiation, error) {
	minor := MinorUnits(amount)
	if minor <= 0 {
		return payment.Initiation{}, fmt.Errorf("%w: stripe: amount %s is below one minor unit", payment.ErrGateway, amount)
	}
	form := map[string]string{
		"amount":                             fmt.Sprintf("%d", minor),
		"currency":                           strings.ToLower(currency),
		"automatic_payment_methods[enabled]": "true",
	}
	for k, v := range metadata {
		form["metadata["+k+"]"] = v
	}

	var out intent
	req := c.http.R().
		SetContext(ctx).
		SetFormData(form).
		SetResult(&out).
		SetError(&errorEnvelope{})
	if id := metadata["payment_id"]; id != "" {
		req.SetHeader("Idempotency-Key", id)
	}
	resp, err := req.Post(intentsPath)
	if err := check(resp, err); err != nil {
		return payment.Initiation{}, err
	}
	if out.ID == "" {
		return payment.Initiation{}, fmt.Errorf("%w: stripe: response without intent id", payment.ErrGateway)
	}
	// A fresh intent waits for the customer's payment method: it is pending, not failed.
	return payment.Initiation{
		ExternalID:   out.ID,
		Status:       payment.StatusPending,
		ClientSecret: out.ClientSecret,
	}, nil
}

func (c *Client) Confirm(ctx context.Context, externalID string) (payment.Status, error) {
	if externalID == "" {
		return "", fmt.Errorf("%w: stripe: empty intent id", payment.ErrGateway)
	}
	var out intent
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", externalID).
		SetResult(&out).
		SetError(&errorEnvelope{}).
		Get(intentsPath + "/{id}")
	if err := check(resp, err); err != nil {
		return "", err
	}
	return MapStatus(out.Status), nil
}

func check(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%w: stripe: %w", payment.ErrGateway, err)
	}
	if !resp.IsError() {
		return nil
	}
	apiErr := &APIError{StatusCode: resp.StatusCode()}
	if env, ok := resp.Error().(*errorEnvelope); ok && env != nil {
		apiErr.Type, apiErr.Code, apiErr.Message = env.Error.Type, env.Error.Code, env.Error.Message
	}
	return fmt.Errorf("%w: %w", payment.ErrGateway, apiErr)
}

// MapStatus folds a PaymentIntent status into the settlement state machine.
func MapStatus(s string) payment.Status {
	switch s {
	case "succeeded":
		return payment.StatusSuccess
	case "requires_payment_method", "canceled":
		return payment.StatusFailed
	default:
		return payment.StatusPending
	}
}

// MinorUnits converts a two-decimal amount to cents, rounding half away from zero.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

var _ payment.Gateway = (*Client)(nil)
