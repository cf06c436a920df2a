package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTx only implements the calls the relay makes on the transaction itself
type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (f *fakeTx) Commit(ctx context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(ctx context.Context) error {
	if !f.committed {
		f.rolledBack = true
	}
	return nil
}

type fakeTxManager struct {
	txs []*fakeTx
}

func (m *fakeTxManager) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx := &fakeTx{}
	m.txs = append(m.txs, tx)
	return tx, nil
}

type fakeOutboxRepo struct {
	pending []*OutboxEvent
	updated map[uuid.UUID]OutboxStatus
}

func (r *fakeOutboxRepo) GetPendingEvents(ctx context.Context, tx pgx.Tx, limit int) ([]*OutboxEvent, error) {
	if len(r.pending) > limit {
		return r.pending[:limit], nil
	}
	return r.pending, nil
}

func (r *fakeOutboxRepo) UpdateEventStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status OutboxStatus) error {
	r.updated[id] = status
	return nil
}

type published struct {
	exchange   string
	routingKey string
	body       []byte
}

type fakePublisher struct {
	sent    []published
	failOn  int
	failErr error
}

func (p *fakePublisher) Publish(ctx context.Context, exchange, routingKey string, body []byte) error {
	if p.failErr != nil && len(p.sent) == p.failOn {
		return p.failErr
	}
	p.sent = append(p.sent, published{exchange, routingKey, body})
	return nil
}

func newPendingEvent(t *testing.T, eventType string) *OutboxEvent {
	t.Helper()
	ev, err := NewOutboxEvent(NewItemEvent(eventType, uuid.New(), "actor", "owner"))
	require.NoError(t, err)
	return ev
}

func TestOutboxRelay_ProcessBatch_PublishesAndMarks(t *testing.T) {
	repo := &fakeOutboxRepo{
		pending: []*OutboxEvent{
			newPendingEvent(t, EventTypeItemApproved),
			newPendingEvent(t, EventTypeItemClaimed),
		},
		updated: map[uuid.UUID]OutboxStatus{},
	}
	pub := &fakePublisher{}
	txm := &fakeTxManager{}
	relay := NewOutboxRelay(repo, pub, txm, 10, time.Second, ExchangeName, slog.New(slog.NewTextHandler(io.Discard, nil)))

	n, err := relay.ProcessBatch(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, pub.sent, 2)
	assert.Equal(t, ExchangeName, pub.sent[0].exchange)
	assert.Equal(t, EventTypeItemApproved, pub.sent[0].routingKey)
	assert.Equal(t, EventTypeItemClaimed, pub.sent[1].routingKey)
	for _, ev := range repo.pending {
		assert.Equal(t, OutboxStatusPublished, repo.updated[ev.ID])
	}
	require.Len(t, txm.txs, 1)
	assert.True(t, txm.txs[0].committed)
}

func TestOutboxRelay_ProcessBatch_PublishFailureRollsBack(t *testing.T) {
	repo := &fakeOutboxRepo{
		pending: []*OutboxEvent{
			newPendingEvent(t, EventTypeItemApproved),
			newPendingEvent(t, EventTypeItemRejected),
		},
		updated: map[uuid.UUID]OutboxStatus{},
	}
	pub := &fakePublisher{failOn: 1, failErr: errors.New("broker down")}
	txm := &fakeTxManager{}
	relay := NewOutboxRelay(repo, pub, txm, 10, time.Second, ExchangeName, slog.New(slog.NewTextHandler(io.Discard, nil)))

	n, err := relay.ProcessBatch(context.Background())

	require.Error(t, err)
	assert.Zero(t, n)
	assert.Contains(t, err.Error(), "broker down")
	require.Len(t, txm.txs, 1)
	assert.False(t, txm.txs[0].committed)
	assert.True(t, txm.txs[0].rolledBack)
}

func TestOutboxRelay_ProcessBatch_Empty(t *testing.T) {
	repo := &fakeOutboxRepo{updated: map[uuid.UUID]OutboxStatus{}}
	pub := &fakePublisher{}
	relay := NewOutboxRelay(repo, pub, &fakeTxManager{}, 10, time.Second, ExchangeName, slog.New(slog.NewTextHandler(io.Discard, nil)))

	n, err := relay.ProcessBatch(context.Background())

	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, pub.sent)
}

func TestOutboxRelay_RunStopsOnCancel(t *testing.T) {
	repo := &fakeOutboxRepo{updated: map[uuid.UUID]OutboxStatus{}}
	relay := NewOutboxRelay(repo, &fakePublisher{}, &fakeTxManager{}, 10, 10*time.Millisecond, ExchangeName, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop after cancel")
	}
}
