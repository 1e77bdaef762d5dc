package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dax-side/ecommerce-microservices-api/pkg/db"
	"github.com/dax-side/ecommerce-microservices-api/pkg/mylogger"
	"github.com/dax-side/ecommerce-microservices-api/pkg/outbox/domain"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type OutboxRepository interface {
	SaveOutboxEvent(ctx context.Context, tx pgx.Tx, event *domain.OutboxEvent) error
	GetUnpublishedEvents(ctx context.Context, tx pgx.Tx, batchSize int) ([]*domain.OutboxEvent, error)
	MarkEventPublished(ctx context.Context, tx pgx.Tx, eventID string) error
	MarkEventFailed(ctx context.Context, tx pgx.Tx, eventID string, errMsg string) error
}

type KafkaProducer interface {
	ProduceMessage(ctx context.Context, topic, key string, message any) error
}

type OutboxProcessor struct {
	pool          db.TxBeginner
	repo          OutboxRepository
	kafkaProducer KafkaProducer
	logger        *zap.Logger
	batchSize     int
	interval      time.Duration
	tracer        trace.Tracer
}

func NewOutboxProcessor(
	pool db.TxBeginner,
	repo OutboxRepository,
	producer KafkaProducer,
	logger *zap.Logger,
) *OutboxProcessor {
	return &OutboxProcessor{
		pool:          pool,
		repo:          repo,
		kafkaProducer: producer,
		logger:        logger,
		batchSize:     50,
		interval:      500 * time.Millisecond,
		tracer:        otel.Tracer("outbox-worker"),
	}
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	mylogger.Info(ctx, p.logger, "Starting outbox processor")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			mylogger.Info(ctx, p.logger, "Outbox processor stopping")
			return
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil {
				mylogger.Error(
					ctx,
					p.logger,
					"Error processing outbox batch",
					zap.Error(err),
				)
			}
		}
	}
}

// ProcessBatch publishes one batch of pending events and returns how many
// were published.
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) (int, error) {
	ctx, span := p.tracer.Start(ctx, "OutboxProcessor.ProcessBatch")
	defer span.End()

	published := 0
	err := db.WithTx(ctx, p.pool, p.logger, func(tx pgx.Tx) error {
		events, err := p.repo.GetUnpublishedEvents(ctx, tx, p.batchSize)
		if err != nil {
			return err
		}

		for _, event := range events {
			if err := p.publish(ctx, event); err != nil {
				mylogger.Error(
					ctx,
					p.logger,
					"outbox worker produce message failed",
					zap.String("id", event.Id),
					zap.String("event_type", event.EventType),
					zap.Error(err),
				)

				if dbErr := p.repo.MarkEventFailed(ctx, tx, event.Id, err.Error()); dbErr != nil {
					return dbErr
				}
				continue
			}

			if err := p.repo.MarkEventPublished(ctx, tx, event.Id); err != nil {
				return err
			}
			published++
		}

		return nil
	})
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("process outbox batch: %w", err)
	}

	if published > 0 {
		mylogger.Debug(ctx, p.logger, "outbox events published", zap.Int("count", published))
	}

	return published, nil
}

func (p *OutboxProcessor) publish(ctx context.Context, event *domain.OutboxEvent) error {
	var payloadMap map[string]any
	if err := json.Unmarshal(event.Payload, &payloadMap); err != nil {
		return fmt.Errorf("unmarshal event payload: %w", err)
	}

	payloadMap["event_id"] = event.Id

	return p.kafkaProducer.ProduceMessage(ctx, event.Topic, event.AggregateID, payloadMap)
}
