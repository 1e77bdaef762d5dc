package utils

import (
	"context"
	"errors"
	"fmt"

	"github.com/dax-side/ecommerce-microservices-api/pkg/db"
	"github.com/dax-side/ecommerce-microservices-api/pkg/mylogger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ErrAlreadyProcessed is returned by ProcessWithDeduplication when the event
// was handled before. Callers treat it as success.
var ErrAlreadyProcessed = errors.New("event already processed")

// ProcessWithDeduplication records eventID in processed_events and runs
// action in the same transaction, so the marker and the side effects commit
// or roll back together.
func ProcessWithDeduplication(
	ctx context.Context,
	pool db.TxBeginner,
	logger *zap.Logger,
	eventID string,
	action func(ctx context.Context, tx pgx.Tx) error,
) error {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.String("event_id", eventID))

	err := db.WithTx(ctx, pool, logger, func(tx pgx.Tx) error {
		query := `
			INSERT INTO processed_events (event_id)
			VALUES ($1)
		`

		if _, err := tx.Exec(ctx, query, eventID); err != nil {
			var pgError *pgconn.PgError
			if errors.As(err, &pgError) && pgError.Code == "23505" {
				return ErrAlreadyProcessed
			}

			return fmt.Errorf("insert processed event: %w", err)
		}

		return action(ctx, tx)
	})

	if errors.Is(err, ErrAlreadyProcessed) {
		mylogger.Info(
			ctx,
			logger,
			"Event already processed, skipping",
			zap.String("event_id", eventID),
		)

		return nil
	}

	if err != nil {
		span.RecordError(err)
		return err
	}

	return nil
}
