package kafka

import (
	"testing"
	"time"

	domoutbox "github.com/Zhima-Mochi/minishop-settlement/internal/domain/outbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMessageCarriesKeyAndHeaders(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	msg := toMessage(domoutbox.Message{
		ID:         "m1",
		Name:       "payment.settled",
		Key:        "order-1",
		Payload:    []byte(`{"order_id":"order-1"}`),
		OccurredAt: at,
	})

	assert.Equal(t, []byte("order-1"), msg.Key)
	assert.JSONEq(t, `{"order_id":"order-1"}`, string(msg.Value))
	assert.Equal(t, at, msg.Time)

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "payment.settled", headers[HeaderEventName])
	assert.Equal(t, "m1", headers[HeaderMessageID])
	assert.Equal(t, "2025-03-01T12:00:00Z", headers[HeaderOccurredAt])
}

func TestNewPublisherValidates(t *testing.T) {
	_, err := NewPublisher(Config{Topic: "t"})
	assert.Error(t, err)
	_, err = NewPublisher(Config{Brokers: []string{"localhost:9092"}})
	assert.Error(t, err)

	p, err := NewPublisher(Config{Brokers: []string{"localhost:9092"}, Topic: "settlement-events"})
	require.NoError(t, err)
	assert.NoError(t, p.Close())
}
