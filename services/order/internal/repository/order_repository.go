package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dax-side/ecommerce-microservices-api/pkg/mylogger"
	"github.com/dax-side/ecommerce-microservices-api/services/order/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// DBTX is implemented by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type OrderRepository interface {
	Create(ctx context.Context, tx pgx.Tx, order *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (*domain.Order, error)
	GetItems(ctx context.Context, orderID string) ([]domain.OrderItem, error)
	List(ctx context.Context, filter domain.ListFilter) ([]domain.Order, int64, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id string, status domain.OrderStatus) (time.Time, error)
	Delete(ctx context.Context, tx pgx.Tx, id string) (*domain.Order, error)
}

type orderRepo struct {
	db     DBTX
	logger *zap.Logger
	tracer trace.Tracer
}

func NewOrderRepository(db DBTX, logger *zap.Logger) OrderRepository {
	return &orderRepo{
		db:     db,
		logger: logger,
		tracer: otel.Tracer("order_repository"),
	}
}

const orderColumns = `id, user_id, status, total_amount, created_at, updated_at`

func (r *orderRepo) Create(ctx context.Context, tx pgx.Tx, order *domain.Order) error {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.Create")
	defer span.End()

	span.SetAttributes(
		attribute.String("order_id", order.ID),
		attribute.String("user_id", order.UserID),
		attribute.Int("items_count", len(order.Items)),
	)

	queryOrder := `
		INSERT INTO orders (id, user_id, status, total_amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING created_at, updated_at
	`

	if err := tx.QueryRow(
		ctx,
		queryOrder,
		order.ID,
		order.UserID,
		string(order.Status),
		order.TotalAmount,
	).Scan(
		&order.CreatedAt,
		&order.UpdatedAt,
	); err != nil {
		span.RecordError(err)

		mylogger.Error(ctx, r.logger, "Failed to insert order", zap.Error(err))
		return fmt.Errorf("failed to insert order: %w", err)
	}

	queryItem := `
		INSERT INTO order_items (order_id, position, product_id, product_name, quantity, price)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	batch := &pgx.Batch{}
	for i, item := range order.Items {
		batch.Queue(queryItem, order.ID, i, item.ProductID, item.ProductName, item.Quantity, item.Price)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		span.RecordError(err)

		mylogger.Error(ctx, r.logger, "Failed to insert order items", zap.Error(err))
		return fmt.Errorf("failed to insert order items: %w", err)
	}

	return nil
}

func (r *orderRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.GetByID")
	defer span.End()

	span.SetAttributes(attribute.String("order_id", id))

	return r.getOrder(ctx, r.db, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (r *orderRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (*domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.GetForUpdate")
	defer span.End()

	span.SetAttributes(attribute.String("order_id", id))

	return r.getOrder(ctx, tx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
}

func (r *orderRepo) getOrder(ctx context.Context, q DBTX, query, id string) (*domain.Order, error) {
	order, err := scanOrder(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}

		trace.SpanFromContext(ctx).RecordError(err)
		mylogger.Error(ctx, r.logger, "Failed to query order", zap.String("order_id", id), zap.Error(err))

		return nil, fmt.Errorf("failed to query order: %w", err)
	}

	items, err := r.loadItems(ctx, q, []string{id})
	if err != nil {
		return nil, err
	}
	order.Items = items[id]

	return order, nil
}

func (r *orderRepo) GetItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.GetItems")
	defer span.End()

	span.SetAttributes(attribute.String("order_id", orderID))

	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, orderID).Scan(&exists); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to check order: %w", err)
	}
	if !exists {
		return nil, ErrOrderNotFound
	}

	items, err := r.loadItems(ctx, r.db, []string{orderID})
	if err != nil {
		return nil, err
	}

	return items[orderID], nil
}

func (r *orderRepo) List(ctx context.Context, filter domain.ListFilter) ([]domain.Order, int64, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.List")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", filter.UserID),
		attribute.String("status", string(filter.Status)),
		attribute.Int("page", filter.Page),
		attribute.Int("limit", filter.Limit),
	)

	var (
		conds []string
		args  []any
	)
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conds = append(conds, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&total); err != nil {
		span.RecordError(err)

		mylogger.Error(ctx, r.logger, "Failed to count orders", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	pageArgs := append(args, filter.Limit, (filter.Page-1)*filter.Limit)
	query := fmt.Sprintf(
		`SELECT %s FROM orders%s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		orderColumns, where, len(args)+1, len(args)+2,
	)

	rows, err := r.db.Query(ctx, query, pageArgs...)
	if err != nil {
		span.RecordError(err)

		mylogger.Error(ctx, r.logger, "Failed to list orders", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0, filter.Limit)
	ids := make([]string, 0, filter.Limit)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			span.RecordError(err)
			return nil, 0, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *order)
		ids = append(ids, order.ID)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, 0, fmt.Errorf("rows iteration error: %w", err)
	}

	items, err := r.loadItems(ctx, r.db, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}

	return orders, total, nil
}

func (r *orderRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id string, status domain.OrderStatus) (time.Time, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.UpdateStatus")
	defer span.End()

	span.SetAttributes(
		attribute.String("order_id", id),
		attribute.String("status", string(status)),
	)

	query := `
		UPDATE orders
		SET status = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING updated_at
	`

	var updatedAt time.Time
	if err := tx.QueryRow(ctx, query, string(status), id).Scan(&updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			mylogger.Warn(ctx, r.logger, "Order not found", zap.String("order_id", id))
			return time.Time{}, ErrOrderNotFound
		}

		span.RecordError(err)

		mylogger.Error(ctx, r.logger, "Failed to update order", zap.Error(err))
		return time.Time{}, fmt.Errorf("failed to update order: %w", err)
	}

	return updatedAt, nil
}

func (r *orderRepo) Delete(ctx context.Context, tx pgx.Tx, id string) (*domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.Delete")
	defer span.End()

	span.SetAttributes(attribute.String("order_id", id))

	order, err := scanOrder(tx.QueryRow(ctx, `DELETE FROM orders WHERE id = $1 RETURNING `+orderColumns, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}

		span.RecordError(err)

		mylogger.Error(ctx, r.logger, "Failed to delete order", zap.String("order_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to delete order: %w", err)
	}

	return order, nil
}

func (r *orderRepo) loadItems(ctx context.Context, q DBTX, orderIDs []string) (map[string][]domain.OrderItem, error) {
	result := make(map[string][]domain.OrderItem, len(orderIDs))
	if len(orderIDs) == 0 {
		return result, nil
	}

	query := `
		SELECT order_id, product_id, product_name, quantity, price
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, position
	`

	rows, err := q.Query(ctx, query, orderIDs)
	if err != nil {
		mylogger.Error(ctx, r.logger, "Failed to query order_items", zap.Error(err))
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID string
			item    domain.OrderItem
		)
		if err := rows.Scan(&orderID, &item.ProductID, &item.ProductName, &item.Quantity, &item.Price); err != nil {
			mylogger.Error(ctx, r.logger, "Failed to scan row", zap.Error(err))
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		result[orderID] = append(result[orderID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		order  domain.Order
		status string
	)
	if err := row.Scan(
		&order.ID,
		&order.UserID,
		&status,
		&order.TotalAmount,
		&order.CreatedAt,
		&order.UpdatedAt,
	); err != nil {
		return nil, err
	}
	order.Status = domain.OrderStatus(status)

	return &order, nil
}
