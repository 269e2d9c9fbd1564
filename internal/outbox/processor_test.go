package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"petaverse-chat/internal/domain/notification"
	"petaverse-chat/internal/domain/outbox"
	"petaverse-chat/internal/repository"
	petaverse_errors "petaverse-chat/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memOutbox struct {
	mu     sync.Mutex
	events map[uuid.UUID]*outbox.OutboxEvent
	claims map[uuid.UUID]int
}

func newMemOutbox(events ...outbox.OutboxEvent) *memOutbox {
	m := &memOutbox{events: map[uuid.UUID]*outbox.OutboxEvent{}, claims: map[uuid.UUID]int{}}
	for i := range events {
		e := events[i]
		m.events[e.ID] = &e
	}
	return m
}

func (m *memOutbox) Create(ctx context.Context, tx repository.DBTX, e *outbox.OutboxEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.events[e.ID] = &cp
	return nil
}

func (m *memOutbox) GetPending(ctx context.Context, limit, maxRetries int) ([]outbox.OutboxEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []outbox.OutboxEvent
	for _, e := range m.events {
		if e.Status == outbox.StatusPending && e.RetryCount < maxRetries && len(out) < limit {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *memOutbox) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok || e.Status != outbox.StatusPending {
		return petaverse_errors.ErrNotFound
	}
	e.Status = outbox.StatusProcessing
	m.claims[id]++
	return nil
}

func (m *memOutbox) set(id uuid.UUID, fn func(e *outbox.OutboxEvent)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return petaverse_errors.ErrNotFound
	}
	fn(e)
	return nil
}

func (m *memOutbox) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	return m.set(id, func(e *outbox.OutboxEvent) { e.Status = outbox.StatusCompleted })
}

func (m *memOutbox) MarkFailed(ctx context.Context, id uuid.UUID, msg string) error {
	return m.set(id, func(e *outbox.OutboxEvent) {
		e.Status = outbox.StatusFailed
		e.Error.String, e.Error.Valid = msg, true
	})
}

func (m *memOutbox) IncrementRetry(ctx context.Context, id uuid.UUID, msg string) error {
	return m.set(id, func(e *outbox.OutboxEvent) {
		e.Status = outbox.StatusPending
		e.RetryCount++
		e.Error.String, e.Error.Valid = msg, true
	})
}

func (m *memOutbox) get(id uuid.UUID) outbox.OutboxEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.events[id]
}

type scriptedDispatcher struct {
	mu    sync.Mutex
	calls [][]uuid.UUID
	err   error
}

func (d *scriptedDispatcher) ProcessBulk(ctx context.Context, ids []uuid.UUID) (notification.Outcome, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, ids)
	if d.err != nil {
		return notification.Outcome{}, d.err
	}
	return notification.Outcome{Sent: len(ids)}, nil
}

func bulkEvent(t *testing.T, ids ...uuid.UUID) outbox.OutboxEvent {
	t.Helper()
	payload, err := json.Marshal(outbox.BulkDispatchPayload{NotificationIDs: ids})
	require.NoError(t, err)
	return outbox.OutboxEvent{
		ID:        uuid.New(),
		EventType: outbox.EventTypeBulkDispatch,
		Payload:   payload,
		Status:    outbox.StatusPending,
		CreatedAt: time.Now(),
	}
}

func TestProcessBatchCompletesBulkDispatch(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New()}
	ev := bulkEvent(t, ids...)
	repo := newMemOutbox(ev)
	d := &scriptedDispatcher{}

	p := NewProcessor(repo, d, 10, time.Second, 5, nil)
	assert.Equal(t, 1, p.ProcessBatch(context.Background()))

	assert.Equal(t, outbox.StatusCompleted, repo.get(ev.ID).Status)
	require.Len(t, d.calls, 1)
	assert.Equal(t, ids, d.calls[0])

	assert.Zero(t, p.ProcessBatch(context.Background()))
}

func TestProcessBatchRetriesThenFails(t *testing.T) {
	ev := bulkEvent(t, uuid.New())
	repo := newMemOutbox(ev)
	d := &scriptedDispatcher{err: errors.New("db down")}

	p := NewProcessor(repo, d, 10, time.Second, 3, nil)
	ctx := context.Background()

	p.ProcessBatch(ctx)
	got := repo.get(ev.ID)
	assert.Equal(t, outbox.StatusPending, got.Status)
	assert.Equal(t, 1, got.RetryCount)
	assert.Equal(t, "db down", got.Error.String)

	p.ProcessBatch(ctx)
	p.ProcessBatch(ctx)
	got = repo.get(ev.ID)
	assert.Equal(t, outbox.StatusFailed, got.Status)
	assert.Contains(t, got.Error.String, "max retries exceeded")
	assert.Len(t, d.calls, 3)
}

func TestProcessBatchFailsUnknownAndMalformedEvents(t *testing.T) {
	unknown := bulkEvent(t)
	unknown.EventType = "something.else"
	malformed := bulkEvent(t)
	malformed.Payload = []byte("{")
	repo := newMemOutbox(unknown, malformed)
	d := &scriptedDispatcher{}

	p := NewProcessor(repo, d, 10, time.Second, 5, nil)
	assert.Equal(t, 2, p.ProcessBatch(context.Background()))

	assert.Equal(t, outbox.StatusFailed, repo.get(unknown.ID).Status)
	assert.Equal(t, "unknown event type", repo.get(unknown.ID).Error.String)
	assert.Equal(t, outbox.StatusFailed, repo.get(malformed.ID).Status)
	assert.Empty(t, d.calls)
}

func TestRunnerProcessesUntilCancelled(t *testing.T) {
	ev := bulkEvent(t, uuid.New())
	repo := newMemOutbox(ev)
	d := &scriptedDispatcher{}

	r := NewRunner(DefaultProcessor(repo, d, 0, 10*time.Millisecond, nil))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool {
		return repo.get(ev.ID).Status == outbox.StatusCompleted
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("runner did not stop")
	}
	assert.Equal(t, 1, repo.claims[ev.ID])
}
