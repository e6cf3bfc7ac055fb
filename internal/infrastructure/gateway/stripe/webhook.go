package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Zhima-Mochi/minishop-settlement/internal/domain/payment"
)

const (
	SignatureHeaderName = "Stripe-Signature"
	DefaultTolerance    = 5 * time.Minute

	eventSucceeded = "payment_intent.succeeded"
	eventFailed    = "payment_intent.payment_failed"
)

// Verifier checks the Stripe-Signature header (t=<unix>,v1=<hex>) against an
// HMAC-SHA256 of "<t>.<payload>" under the endpoint secret.
type Verifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

func NewVerifier(secret string, tolerance time.Duration) (*Verifier, error) {
	if secret == "" {
		return nil, fmt.Errorf("stripe: webhook secret is required")
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Verifier{secret: []byte(secret), tolerance: tolerance, now: time.Now}, nil
}

type eventPayload struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"object"`
	} `json:"data"`
}

func (v *Verifier) Verify(payload []byte, header string) (payment.WebhookEvent, error) {
	if err := v.checkSignature(payload, header); err != nil {
		return payment.WebhookEvent{}, err
	}

	var p eventPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return payment.WebhookEvent{}, fmt.Errorf("%w: %w", payment.ErrMalformedEvent, err)
	}
	if p.Type == "" {
		return payment.WebhookEvent{}, fmt.Errorf("%w: missing type", payment.ErrMalformedEvent)
	}

	ev := payment.WebhookEvent{ID: p.ID, Type: p.Type, TransactionID: p.Data.Object.ID}
	switch p.Type {
	case eventSucceeded:
		ev.Kind = payment.EventSucceeded
	case eventFailed:
		ev.Kind = payment.EventFailed
	default:
		ev.Kind = payment.EventIgnored
		return ev, nil
	}
	if ev.TransactionID == "" {
		return payment.WebhookEvent{}, fmt.Errorf("%w: %s without data.object.id", payment.ErrMalformedEvent, p.Type)
	}
	return ev, nil
}

func (v *Verifier) checkSignature(payload []byte, header string) error {
	if header == "" {
		return fmt.Errorf("%w: missing %s header", payment.ErrInvalidSignature, SignatureHeaderName)
	}
	var (
		ts         string
		signatures [][]byte
	)
	for _, part := range strings.Split(header, ",") {
		k, val, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts = val
		case "v1":
			sig, err := hex.DecodeString(val)
			if err != nil {
				continue
			}
			signatures = append(signatures, sig)
		}
	}
	if ts == "" {
		return fmt.Errorf("%w: missing timestamp", payment.ErrInvalidSignature)
	}
	if len(signatures) == 0 {
		return fmt.Errorf("%w: no v1 signature", payment.ErrInvalidSignature)
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad timestamp %q", payment.ErrInvalidSignature, ts)
	}
	if age := v.now().Sub(time.Unix(unix, 0)); age > v.tolerance {
		return fmt.Errorf("%w: timestamp outside tolerance (%s old)", payment.ErrInvalidSignature, age.Truncate(time.Second))
	}

	expected := sign(v.secret, ts, payload)
	for _, sig := range signatures {
		if hmac.Equal(sig, expected) {
			return nil
		}
	}
	return fmt.Errorf("%w: no matching signature", payment.ErrInvalidSignature)
}

func sign(secret []byte, ts string, payload []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	return mac.Sum(nil)
}

// SignatureHeader builds a Stripe-Signature value for payload, as Stripe would send it.
func SignatureHeader(secret string, at time.Time, payload []byte) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	return "t=" + ts + ",v1=" + hex.EncodeToString(sign([]byte(secret), ts, payload))
}

var _ payment.WebhookVerifier = (*Verifier)(nil)
