package service

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/dax-side/ecommerce-microservices-api/pkg/apperr"
	"github.com/dax-side/ecommerce-microservices-api/pkg/db"
	generalDomain "github.com/dax-side/ecommerce-microservices-api/pkg/domain"
	"github.com/dax-side/ecommerce-microservices-api/pkg/mylogger"
	outboxDomain "github.com/dax-side/ecommerce-microservices-api/pkg/outbox/domain"
	outboxUtils "github.com/dax-side/ecommerce-microservices-api/pkg/outbox/utils"
	"github.com/dax-side/ecommerce-microservices-api/pkg/outbox/worker"
	"github.com/dax-side/ecommerce-microservices-api/services/product/internal/domain"
	"github.com/dax-side/ecommerce-microservices-api/services/product/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const aggregateInventory = "inventory"

type ProductService interface {
	Create(ctx context.Context, input *domain.CreateProductInput) (*domain.Product, error)
	FindByID(ctx context.Context, id string) (*domain.Product, error)
	List(ctx context.Context, filter domain.ListFilter) (*domain.ProductPage, error)
	Update(ctx context.Context, id string, input *domain.UpdateProductInput) (*domain.Product, error)
	Delete(ctx context.Context, id string) error
	// ReserveStock takes stock for every line of the order or for none of
	// them. A shortage is answered with a StockReservationFailed event. It
	// returns the ids of the products whose stock changed.
	ReserveStock(ctx context.Context, eventID string, event *generalDomain.OrderCreatedEvent) ([]string, error)
	// ReleaseStock gives back what was reserved for the order, if anything.
	ReleaseStock(ctx context.Context, eventID string, event *generalDomain.OrderCancelledEvent) ([]string, error)
}

type productService struct {
	productRepo repository.ProductRepository
	outboxRepo  worker.OutboxRepository
	pool        db.TxBeginner
	logger      *zap.Logger
	tracer      trace.Tracer
}

func NewProductService(
	productRepo repository.ProductRepository,
	outboxRepo worker.OutboxRepository,
	pool db.TxBeginner,
	logger *zap.Logger,
) ProductService {
	return &productService{
		productRepo: productRepo,
		outboxRepo:  outboxRepo,
		pool:        pool,
		logger:      logger,
		tracer:      otel.Tracer("product_service"),
	}
}

func (s *productService) Create(ctx context.Context, input *domain.CreateProductInput) (*domain.Product, error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.Create")
	defer span.End()

	if input.Price.IsNegative() {
		return nil, apperr.Validation("price must not be negative")
	}

	product := &domain.Product{
		ID:          uuid.NewString(),
		Name:        input.Name,
		Description: input.Description,
		Price:       input.Price,
		Stock:       input.Stock,
		Category:    input.Category,
		ImageURL:    input.ImageURL,
	}

	if err := s.productRepo.Create(ctx, product); err != nil {
		span.RecordError(err)
		return nil, apperr.StoreFailure("create product", err)
	}

	mylogger.Info(ctx, s.logger, "Product created", zap.String("product_id", product.ID))

	return product, nil
}

func (s *productService) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.FindByID")
	defer span.End()

	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, s.mapRepoError(ctx, "get product", id, err)
	}

	return product, nil
}

func (s *productService) List(ctx context.Context, filter domain.ListFilter) (*domain.ProductPage, error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.List")
	defer span.End()

	filter = filter.Normalize()

	products, total, err := s.productRepo.List(ctx, filter)
	if err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, s.logger, "list error", zap.Error(err))

		return nil, apperr.StoreFailure("list products", err)
	}

	return &domain.ProductPage{
		Products:   products,
		Pagination: generalDomain.NewPagination(filter.Page, filter.Limit, total),
	}, nil
}

func (s *productService) Update(ctx context.Context, id string, input *domain.UpdateProductInput) (*domain.Product, error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.Update")
	defer span.End()

	if input.Price != nil && input.Price.IsNegative() {
		return nil, apperr.Validation("price must not be negative")
	}

	product, err := s.productRepo.Update(ctx, id, input)
	if err != nil {
		return nil, s.mapRepoError(ctx, "update product", id, err)
	}

	return product, nil
}

func (s *productService) Delete(ctx context.Context, id string) error {
	ctx, span := s.tracer.Start(ctx, "ProductService.Delete")
	defer span.End()

	if err := s.productRepo.DeleteByID(ctx, id); err != nil {
		return s.mapRepoError(ctx, "delete product", id, err)
	}

	mylogger.Info(ctx, s.logger, "Product deleted", zap.String("product_id", id))

	return nil
}

var errShortage = errors.New("stock shortage")

func (s *productService) ReserveStock(
	ctx context.Context,
	eventID string,
	event *generalDomain.OrderCreatedEvent,
) ([]string, error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.ReserveStock")
	defer span.End()

	span.SetAttributes(
		attribute.String("order_id", event.OrderID),
		attribute.Int("items", len(event.Items)),
	)

	lines := domain.MergeLines(event.Items)

	var (
		reserved []string
		failure  *generalDomain.StockReservationFailedEvent
	)

	err := outboxUtils.ProcessWithDeduplication(ctx, s.pool, s.logger, eventID, func(ctx context.Context, tx pgx.Tx) error {
		// The decrements run in a savepoint so a shortage undoes them while
		// the processed marker and the failure event still commit.
		err := db.WithTx(ctx, tx, s.logger, func(sp pgx.Tx) error {
			for _, line := range lines {
				available, err := s.productRepo.DecreaseStock(ctx, sp, line.ProductID, line.Quantity)
				if errors.Is(err, repository.ErrInsufficientStock) || errors.Is(err, repository.ErrProductNotFound) {
					failure = &generalDomain.StockReservationFailedEvent{
						OrderID:   event.OrderID,
						ProductID: line.ProductID,
						Available: available,
						Requested: line.Quantity,
					}
					return errShortage
				}
				if err != nil {
					return err
				}
			}

			return s.productRepo.SaveReservations(ctx, sp, event.OrderID, lines)
		})

		if errors.Is(err, errShortage) {
			return s.saveEvent(ctx, tx, event.OrderID, generalDomain.EventStockReservationFailed, failure)
		}
		if err != nil {
			return err
		}

		reserved = productIDs(lines)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, s.logger, "Failed to reserve stock", zap.String("order_id", event.OrderID), zap.Error(err))

		return nil, err
	}

	if failure != nil {
		mylogger.Warn(
			ctx,
			s.logger,
			"Insufficient stock",
			zap.String("order_id", event.OrderID),
			zap.String("product_id", failure.ProductID),
			zap.Int64("available", failure.Available),
			zap.Int64("requested", failure.Requested),
		)

		return nil, nil
	}

	if reserved != nil {
		mylogger.Info(ctx, s.logger, "Stock reserved", zap.String("order_id", event.OrderID))
	}

	return reserved, nil
}

func (s *productService) ReleaseStock(
	ctx context.Context,
	eventID string,
	event *generalDomain.OrderCancelledEvent,
) ([]string, error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.ReleaseStock")
	defer span.End()

	span.SetAttributes(attribute.String("order_id", event.OrderID))

	var released []string

	err := outboxUtils.ProcessWithDeduplication(ctx, s.pool, s.logger, eventID, func(ctx context.Context, tx pgx.Tx) error {
		lines, err := s.productRepo.TakeReservations(ctx, tx, event.OrderID)
		if err != nil {
			return err
		}
		slices.SortFunc(lines, func(a, b domain.StockLine) int {
			return strings.Compare(a.ProductID, b.ProductID)
		})

		for _, line := range lines {
			if err := s.productRepo.IncreaseStock(ctx, tx, line.ProductID, line.Quantity); err != nil {
				if errors.Is(err, repository.ErrProductNotFound) {
					continue
				}
				return err
			}
		}

		released = productIDs(lines)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, s.logger, "Failed to release stock", zap.String("order_id", event.OrderID), zap.Error(err))

		return nil, err
	}

	if len(released) == 0 {
		mylogger.Debug(ctx, s.logger, "Nothing reserved for cancelled order", zap.String("order_id", event.OrderID))
		return nil, nil
	}

	mylogger.Info(ctx, s.logger, "Stock released", zap.String("order_id", event.OrderID))

	return released, nil
}

func (s *productService) saveEvent(ctx context.Context, tx pgx.Tx, orderID, eventType string, payload any) error {
	event, err := outboxDomain.NewOutboxEvent(aggregateInventory, orderID, eventType, generalDomain.TopicProductEvents, payload)
	if err != nil {
		return err
	}

	return s.outboxRepo.SaveOutboxEvent(ctx, tx, event)
}

func (s *productService) mapRepoError(ctx context.Context, op, id string, err error) error {
	if errors.Is(err, repository.ErrProductNotFound) {
		mylogger.Warn(ctx, s.logger, "product not found", zap.String("product_id", id))
		return apperr.NotFound("product %s not found", id)
	}

	trace.SpanFromContext(ctx).RecordError(err)
	return apperr.StoreFailure(op, err)
}

func productIDs(lines []domain.StockLine) []string {
	ids := make([]string, len(lines))
	for i, line := range lines {
		ids[i] = line.ProductID
	}
	return ids
}
