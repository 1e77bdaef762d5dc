package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/dax-side/ecommerce-microservices-api/pkg/outbox/domain"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit(context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if t.committed {
		return pgx.ErrTxClosed
	}
	t.rolledBack = true
	return nil
}

type fakePool struct {
	tx *fakeTx
}

func (p *fakePool) Begin(context.Context) (pgx.Tx, error) {
	p.tx = &fakeTx{}
	return p.tx, nil
}

type fakeRepo struct {
	pending   []*domain.OutboxEvent
	published []string
	failed    map[string]string
}

func (r *fakeRepo) SaveOutboxEvent(_ context.Context, _ pgx.Tx, e *domain.OutboxEvent) error {
	r.pending = append(r.pending, e)
	return nil
}

func (r *fakeRepo) GetUnpublishedEvents(_ context.Context, _ pgx.Tx, _ int) ([]*domain.OutboxEvent, error) {
	return r.pending, nil
}

func (r *fakeRepo) MarkEventPublished(_ context.Context, _ pgx.Tx, id string) error {
	r.published = append(r.published, id)
	return nil
}

func (r *fakeRepo) MarkEventFailed(_ context.Context, _ pgx.Tx, id string, msg string) error {
	if r.failed == nil {
		r.failed = map[string]string{}
	}
	r.failed[id] = msg
	return nil
}

type sentMessage struct {
	topic, key string
	body       map[string]any
}

type fakeProducer struct {
	sent    []sentMessage
	failFor string
}

func (p *fakeProducer) ProduceMessage(_ context.Context, topic, key string, message any) error {
	body := message.(map[string]any)
	if body["event"] == p.failFor {
		return errors.New("broker unavailable")
	}
	p.sent = append(p.sent, sentMessage{topic: topic, key: key, body: body})
	return nil
}

func TestProcessBatchPublishesWithEventID(t *testing.T) {
	created, err := domain.NewOutboxEvent("Order", "o1", "OrderCreated", "order_events", map[string]any{"order_id": "o1"})
	require.NoError(t, err)
	cancelled, err := domain.NewOutboxEvent("Order", "o2", "OrderCancelled", "order_events", map[string]any{"order_id": "o2"})
	require.NoError(t, err)

	repo := &fakeRepo{pending: []*domain.OutboxEvent{created, cancelled}}
	producer := &fakeProducer{failFor: "OrderCancelled"}
	pool := &fakePool{}

	p := NewOutboxProcessor(pool, repo, producer, zap.NewNop())

	n, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, pool.tx.committed)

	require.Len(t, producer.sent, 1)
	msg := producer.sent[0]
	assert.Equal(t, "order_events", msg.topic)
	assert.Equal(t, "o1", msg.key)
	assert.Equal(t, created.Id, msg.body["event_id"])
	assert.Equal(t, "OrderCreated", msg.body["event"])

	assert.Equal(t, []string{created.Id}, repo.published)
	assert.Contains(t, repo.failed, cancelled.Id)
}
