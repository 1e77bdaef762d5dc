package service

import (
	"context"
	"errors"

	"github.com/dax-side/ecommerce-microservices-api/pkg/apperr"
	"github.com/dax-side/ecommerce-microservices-api/pkg/db"
	generalDomain "github.com/dax-side/ecommerce-microservices-api/pkg/domain"
	"github.com/dax-side/ecommerce-microservices-api/pkg/mylogger"
	outboxDomain "github.com/dax-side/ecommerce-microservices-api/pkg/outbox/domain"
	outboxUtils "github.com/dax-side/ecommerce-microservices-api/pkg/outbox/utils"
	"github.com/dax-side/ecommerce-microservices-api/pkg/outbox/worker"
	"github.com/dax-side/ecommerce-microservices-api/services/order/internal/domain"
	"github.com/dax-side/ecommerce-microservices-api/services/order/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const aggregateOrder = "order"

type OrderService interface {
	Create(ctx context.Context, userID string, lines []domain.LineRequest) (*domain.Order, error)
	List(ctx context.Context, filter domain.ListFilter) (*domain.OrderPage, error)
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetItems(ctx context.Context, id string) ([]domain.OrderItem, error)
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error)
	Cancel(ctx context.Context, id string) (*domain.Order, error)
	Delete(ctx context.Context, id string) (*domain.Order, error)
	// HandleStockReservationFailed cancels the order the product service
	// could not reserve stock for. It returns the cancelled order, or nil
	// when there was nothing to change.
	HandleStockReservationFailed(ctx context.Context, eventID string, event *generalDomain.StockReservationFailedEvent) (*domain.Order, error)
}

type orderService struct {
	pool       db.TxBeginner
	logger     *zap.Logger
	orderRepo  repository.OrderRepository
	outboxRepo worker.OutboxRepository
	validator  LineValidator
	tracer     trace.Tracer
}

func NewOrderService(
	pool db.TxBeginner,
	logger *zap.Logger,
	orderRepo repository.OrderRepository,
	outboxRepo worker.OutboxRepository,
	validator LineValidator,
) OrderService {
	return &orderService{
		pool:       pool,
		logger:     logger,
		orderRepo:  orderRepo,
		outboxRepo: outboxRepo,
		validator:  validator,
		tracer:     otel.Tracer("order_service"),
	}
}

func (s *orderService) Create(ctx context.Context, userID string, lines []domain.LineRequest) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.Create")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.Int("lines", len(lines)),
	)

	if userID == "" {
		return nil, apperr.Validation("userId is required")
	}

	items, err := s.validator.Validate(ctx, lines)
	if err != nil {
		mylogger.Warn(ctx, s.logger, "Order validation failed", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	order := &domain.Order{
		ID:     uuid.NewString(),
		UserID: userID,
		Items:  items,
		Status: domain.OrderStatusPending,
	}
	order.CalculateTotal()

	err = db.WithTx(ctx, s.pool, s.logger, func(tx pgx.Tx) error {
		if err := s.orderRepo.Create(ctx, tx, order); err != nil {
			return err
		}

		return s.saveEvent(ctx, tx, order, generalDomain.EventOrderCreated, generalDomain.OrderCreatedEvent{
			OrderID: order.ID,
			UserID:  order.UserID,
			Items:   eventItems(order.Items),
		})
	})
	if err != nil {
		span.RecordError(err)
		return nil, apperr.StoreFailure("create order", err)
	}

	mylogger.Info(
		ctx,
		s.logger,
		"Order created",
		zap.String("order_id", order.ID),
		zap.String("user_id", order.UserID),
		zap.String("total", order.TotalAmount.StringFixed(2)),
	)

	return order, nil
}

func (s *orderService) List(ctx context.Context, filter domain.ListFilter) (*domain.OrderPage, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.List")
	defer span.End()

	filter, err := filter.Normalize()
	if err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}

	orders, total, err := s.orderRepo.List(ctx, filter)
	if err != nil {
		span.RecordError(err)
		return nil, apperr.StoreFailure("list orders", err)
	}

	return &domain.OrderPage{
		Orders:     orders,
		Pagination: generalDomain.NewPagination(filter.Page, filter.Limit, total),
	}, nil
}

func (s *orderService) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.GetByID")
	defer span.End()

	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError("get order", id, err)
	}

	return order, nil
}

func (s *orderService) GetItems(ctx context.Context, id string) ([]domain.OrderItem, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.GetItems")
	defer span.End()

	items, err := s.orderRepo.GetItems(ctx, id)
	if err != nil {
		return nil, mapRepoError("get order items", id, err)
	}

	return items, nil
}

// UpdateStatus accepts any known status regardless of the current one.
func (s *orderService) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.UpdateStatus")
	defer span.End()

	span.SetAttributes(
		attribute.String("order_id", id),
		attribute.String("status", string(status)),
	)

	if !status.Valid() {
		return nil, apperr.Validation("invalid status %q", status)
	}

	return s.transition(ctx, id, status, func(*domain.Order) error { return nil })
}

func (s *orderService) Cancel(ctx context.Context, id string) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.Cancel")
	defer span.End()

	span.SetAttributes(attribute.String("order_id", id))

	return s.transition(ctx, id, domain.OrderStatusCancelled, func(order *domain.Order) error {
		if !order.Status.Cancellable() {
			return apperr.StateConflict("order %s cannot be cancelled in status %s", id, order.Status)
		}
		return nil
	})
}

// transition locks the order row, lets check veto the change, then writes
// the new status. Moving into cancelled records an OrderCancelled event.
func (s *orderService) transition(
	ctx context.Context,
	id string,
	status domain.OrderStatus,
	check func(order *domain.Order) error,
) (*domain.Order, error) {
	var order *domain.Order

	err := db.WithTx(ctx, s.pool, s.logger, func(tx pgx.Tx) error {
		var err error
		order, err = s.orderRepo.GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}

		if err := check(order); err != nil {
			return err
		}

		previous := order.Status
		updatedAt, err := s.orderRepo.UpdateStatus(ctx, tx, id, status)
		if err != nil {
			return err
		}
		order.Status = status
		order.UpdatedAt = updatedAt

		if status == domain.OrderStatusCancelled && previous != domain.OrderStatusCancelled {
			return s.saveCancelled(ctx, tx, order)
		}

		return nil
	})
	if err != nil {
		if apperr.Is(err, apperr.KindStateConflict) {
			mylogger.Warn(ctx, s.logger, "Order transition rejected", zap.String("order_id", id), zap.Error(err))
			return nil, err
		}

		return nil, mapRepoError("update order status", id, err)
	}

	mylogger.Info(
		ctx,
		s.logger,
		"Order status changed",
		zap.String("order_id", id),
		zap.String("status", string(status)),
	)

	return order, nil
}

// Delete removes the order whatever its status. Stock still held by an
// open order is released through OrderCancelled.
func (s *orderService) Delete(ctx context.Context, id string) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.Delete")
	defer span.End()

	span.SetAttributes(attribute.String("order_id", id))

	var deleted *domain.Order
	err := db.WithTx(ctx, s.pool, s.logger, func(tx pgx.Tx) error {
		order, err := s.orderRepo.GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}

		if _, err := s.orderRepo.Delete(ctx, tx, id); err != nil {
			return err
		}
		deleted = order

		if order.Status.Cancellable() {
			return s.saveCancelled(ctx, tx, order)
		}

		return nil
	})
	if err != nil {
		return nil, mapRepoError("delete order", id, err)
	}

	mylogger.Info(ctx, s.logger, "Order deleted", zap.String("order_id", id))

	return deleted, nil
}

func (s *orderService) HandleStockReservationFailed(
	ctx context.Context,
	eventID string,
	event *generalDomain.StockReservationFailedEvent,
) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.HandleStockReservationFailed")
	defer span.End()

	span.SetAttributes(
		attribute.String("order_id", event.OrderID),
		attribute.String("product_id", event.ProductID),
	)

	var cancelled *domain.Order
	err := outboxUtils.ProcessWithDeduplication(ctx, s.pool, s.logger, eventID, func(ctx context.Context, tx pgx.Tx) error {
		order, err := s.orderRepo.GetForUpdate(ctx, tx, event.OrderID)
		if err != nil {
			if errors.Is(err, repository.ErrOrderNotFound) {
				mylogger.Warn(ctx, s.logger, "Order for failed reservation not found", zap.String("order_id", event.OrderID))
				return nil
			}
			return err
		}

		if !order.Status.Cancellable() {
			mylogger.Warn(
				ctx,
				s.logger,
				"Order no longer cancellable, ignoring failed reservation",
				zap.String("order_id", order.ID),
				zap.String("status", string(order.Status)),
			)
			return nil
		}

		updatedAt, err := s.orderRepo.UpdateStatus(ctx, tx, order.ID, domain.OrderStatusCancelled)
		if err != nil {
			return err
		}
		order.Status = domain.OrderStatusCancelled
		order.UpdatedAt = updatedAt
		cancelled = order

		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if cancelled != nil {
		mylogger.Info(
			ctx,
			s.logger,
			"Order cancelled after failed stock reservation",
			zap.String("order_id", cancelled.ID),
			zap.String("product_id", event.ProductID),
			zap.Int64("available", event.Available),
			zap.Int64("requested", event.Requested),
		)
	}

	return cancelled, nil
}

func (s *orderService) saveCancelled(ctx context.Context, tx pgx.Tx, order *domain.Order) error {
	return s.saveEvent(ctx, tx, order, generalDomain.EventOrderCancelled, generalDomain.OrderCancelledEvent{
		OrderID: order.ID,
		UserID:  order.UserID,
		Items:   eventItems(order.Items),
	})
}

func (s *orderService) saveEvent(ctx context.Context, tx pgx.Tx, order *domain.Order, eventType string, payload any) error {
	event, err := outboxDomain.NewOutboxEvent(aggregateOrder, order.ID, eventType, generalDomain.TopicOrderEvents, payload)
	if err != nil {
		return err
	}

	return s.outboxRepo.SaveOutboxEvent(ctx, tx, event)
}

func eventItems(items []domain.OrderItem) []generalDomain.OrderItem {
	out := make([]generalDomain.OrderItem, len(items))
	for i, item := range items {
		out[i] = generalDomain.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		}
	}
	return out
}

func mapRepoError(op, id string, err error) error {
	if errors.Is(err, repository.ErrOrderNotFound) {
		return apperr.NotFound("order %s not found", id)
	}
	if apperr.KindOf(err) != apperr.KindUnknown {
		return err
	}

	return apperr.StoreFailure(op, err)
}
