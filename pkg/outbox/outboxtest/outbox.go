package outboxtest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/dax-side/ecommerce-microservices-api/pkg/db/dbtest"
	"github.com/dax-side/ecommerce-microservices-api/pkg/outbox/domain"
	"github.com/dax-side/ecommerce-microservices-api/pkg/outbox/worker"
	"github.com/jackc/pgx/v5"
)

// Outbox keeps committed events in memory.
type Outbox struct {
	mu     sync.Mutex
	events []*domain.OutboxEvent

	SaveErr error
}

var _ worker.OutboxRepository = (*Outbox)(nil)

func (o *Outbox) SaveOutboxEvent(_ context.Context, tx pgx.Tx, event *domain.OutboxEvent) error {
	if o.SaveErr != nil {
		return o.SaveErr
	}

	dbtest.OnCommit(tx, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		o.events = append(o.events, event)
	})
	return nil
}

func (o *Outbox) GetUnpublishedEvents(context.Context, pgx.Tx, int) ([]*domain.OutboxEvent, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*domain.OutboxEvent(nil), o.events...), nil
}

func (o *Outbox) MarkEventPublished(context.Context, pgx.Tx, string) error { return nil }

func (o *Outbox) MarkEventFailed(context.Context, pgx.Tx, string, string) error { return nil }

// Types lists the committed event types in write order.
func (o *Outbox) Types() []string {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]string, len(o.events))
	for i, e := range o.events {
		out[i] = e.EventType
	}
	return out
}

// Payload decodes the payload of the i-th committed event into out.
func (o *Outbox) Payload(i int, out any) error {
	o.mu.Lock()
	raw := o.events[i].Payload
	o.mu.Unlock()

	var envelope struct {
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return err
	}
	return json.Unmarshal(envelope.Payload, out)
}
