package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Event is any domain event with a name and the aggregate it belongs to.
type Event interface {
	EventName() string
	AggregateID() string
}

// Message is the persisted form of an event, written in the same
// transaction as the state change it describes.
type Message struct {
	ID          string
	Name        string
	Key         string
	Payload     []byte
	OccurredAt  time.Time
	PublishedAt *time.Time
}

func NewMessage(id string, e Event) (Message, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return Message{}, fmt.Errorf("outbox: encode %s: %w", e.EventName(), err)
	}
	return Message{
		ID:         id,
		Name:       e.EventName(),
		Key:        e.AggregateID(),
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}, nil
}

// Publisher hands a message to the outside world.
type Publisher interface {
	Publish(ctx context.Context, m Message) error
}

type Repository interface {
	Append(ctx context.Context, m Message) error
	// Pending returns unpublished messages oldest first.
	Pending(ctx context.Context, limit int) ([]Message, error)
	MarkPublished(ctx context.Context, id string, at time.Time) error
}
