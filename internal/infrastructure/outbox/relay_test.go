package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Zhima-Mochi/minishop-settlement/internal/application"
	domoutbox "github.com/Zhima-Mochi/minishop-settlement/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-settlement/internal/infrastructure/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	got    []string
	failOn string
}

func (p *recordingPublisher) Publish(_ context.Context, m domoutbox.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if m.ID == p.failOn {
		return errors.New("broker unavailable")
	}
	p.got = append(p.got, m.ID)
	return nil
}

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.got...)
}

type testEvent struct{ Key string }

func (testEvent) EventName() string     { return "test.happened" }
func (e testEvent) AggregateID() string { return e.Key }

func appendMessages(t *testing.T, store *memory.Store, ids ...string) {
	t.Helper()
	require.NoError(t, store.WithinTx(context.Background(), func(ctx context.Context, repos application.Repositories) error {
		for _, id := range ids {
			m, err := domoutbox.NewMessage(id, testEvent{Key: "agg-" + id})
			if err != nil {
				return err
			}
			if err := repos.Outbox.Append(ctx, m); err != nil {
				return err
			}
		}
		return nil
	}))
}

func pendingIDs(t *testing.T, store *memory.Store) []string {
	t.Helper()
	var out []string
	require.NoError(t, store.WithinTx(context.Background(), func(ctx context.Context, repos application.Repositories) error {
		pending, err := repos.Outbox.Pending(ctx, 100)
		for _, m := range pending {
			out = append(out, m.ID)
		}
		return err
	}))
	return out
}

func TestFlushPublishesInOrderAndMarks(t *testing.T) {
	store := memory.NewStore()
	appendMessages(t, store, "m1", "m2", "m3")
	pub := &recordingPublisher{}
	relay := NewRelay(store, pub, nil, RelayOptions{Batch: 2})

	n, err := relay.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"m1", "m2"}, pub.published())
	assert.Equal(t, []string{"m3"}, pendingIDs(t, store))

	n, err = relay.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, pendingIDs(t, store))
}

func TestFlushStopsAtFirstFailureAndKeepsEarlierMarks(t *testing.T) {
	store := memory.NewStore()
	appendMessages(t, store, "m1", "m2", "m3")
	pub := &recordingPublisher{failOn: "m2"}
	relay := NewRelay(store, pub, nil, RelayOptions{Batch: 10})

	n, err := relay.Flush(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"m1"}, pub.published())
	assert.Equal(t, []string{"m2", "m3"}, pendingIDs(t, store), "order is preserved for the retry")

	pub.mu.Lock()
	pub.failOn = ""
	pub.mu.Unlock()
	_, err = relay.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2", "m3"}, pub.published())
}

// contendingPublisher opens a unit of work on the same store while it
// publishes, as a concurrent request would.
type contendingPublisher struct {
	store   *memory.Store
	blocked int
}

func (p *contendingPublisher) Publish(ctx context.Context, _ domoutbox.Message) error {
	done := make(chan error, 1)
	go func() {
		done <- p.store.WithinTx(ctx, func(context.Context, application.Repositories) error { return nil })
	}()
	select {
	case err := <-done:
		return err
	case <-time.After(time.Second):
		p.blocked++
		return errors.New("store unavailable while publishing")
	}
}

func TestFlushPublishesOutsideTheUnitOfWork(t *testing.T) {
	store := memory.NewStore()
	appendMessages(t, store, "m1", "m2")
	pub := &contendingPublisher{store: store}
	relay := NewRelay(store, pub, nil, RelayOptions{Batch: 10})

	n, err := relay.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Zero(t, pub.blocked)
	assert.Empty(t, pendingIDs(t, store))
}

func TestRelayLoopDrainsUntilStopped(t *testing.T) {
	store := memory.NewStore()
	appendMessages(t, store, "m1", "m2", "m3")
	pub := &recordingPublisher{}
	relay := NewRelay(store, pub, nil, RelayOptions{Interval: 10 * time.Millisecond, Batch: 2})

	relay.Start(context.Background())
	assert.Eventually(t, func() bool { return len(pub.published()) == 3 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	relay.Stop(ctx)
	relay.Stop(ctx)
}

func TestLogPublisherHonoursContext(t *testing.T) {
	p := NewLogPublisher(nil)
	m, err := domoutbox.NewMessage("m1", testEvent{Key: "k"})
	require.NoError(t, err)

	assert.NoError(t, p.Publish(context.Background(), m))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Publish(ctx, m), context.Canceled)
}
