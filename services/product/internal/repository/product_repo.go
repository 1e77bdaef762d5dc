package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dax-side/ecommerce-microservices-api/pkg/mylogger"
	"github.com/dax-side/ecommerce-microservices-api/services/product/internal/domain"
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

type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	List(ctx context.Context, filter domain.ListFilter) ([]domain.Product, int64, error)
	Update(ctx context.Context, id string, input *domain.UpdateProductInput) (*domain.Product, error)
	DeleteByID(ctx context.Context, id string) error
	// DecreaseStock returns the remaining stock. When the product has less
	// than quantity it returns the current stock and ErrInsufficientStock.
	DecreaseStock(ctx context.Context, tx pgx.Tx, id string, quantity int64) (int64, error)
	IncreaseStock(ctx context.Context, tx pgx.Tx, id string, quantity int64) error
	SaveReservations(ctx context.Context, tx pgx.Tx, orderID string, lines []domain.StockLine) error
	// TakeReservations deletes and returns what is held for orderID.
	TakeReservations(ctx context.Context, tx pgx.Tx, orderID string) ([]domain.StockLine, error)
}

type productRepo struct {
	db     DBTX
	tracer trace.Tracer
	logger *zap.Logger
}

func NewProductRepository(db DBTX, logger *zap.Logger) ProductRepository {
	return &productRepo{
		db:     db,
		logger: logger,
		tracer: otel.Tracer("repository/product_repo"),
	}
}

const productColumns = `id, name, description, price, stock, category, image_url, created_at, updated_at`

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	if err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Price,
		&p.Stock,
		&p.Category,
		&p.ImageURL,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}

	return &p, nil
}

func (r *productRepo) Create(ctx context.Context, product *domain.Product) error {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.Create")
	defer span.End()

	span.SetAttributes(
		attribute.String("id", product.ID),
		attribute.String("name", product.Name),
	)

	query := `
		INSERT INTO products (id, name, description, price, stock, category, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at;
	`

	err := r.db.QueryRow(
		ctx,
		query,
		product.ID,
		product.Name,
		product.Description,
		product.Price,
		product.Stock,
		product.Category,
		product.ImageURL,
	).Scan(&product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Error creating product",
			zap.Error(err),
		)

		return fmt.Errorf("error creating product: %w", err)
	}

	return nil
}

func (r *productRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.GetByID")
	defer span.End()

	span.SetAttributes(
		attribute.String("id", id),
	)

	query := `SELECT ` + productColumns + `
		FROM products
		WHERE id = $1 AND deleted_at IS NULL;
	`

	product, err := scanProduct(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}

		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Error get by id",
			zap.String("id", id),
			zap.Error(err),
		)

		return nil, fmt.Errorf("error getting product: %w", err)
	}

	return product, nil
}

func (r *productRepo) List(ctx context.Context, filter domain.ListFilter) ([]domain.Product, int64, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.List")
	defer span.End()

	span.SetAttributes(
		attribute.String("category", filter.Category),
		attribute.String("search", filter.Search),
		attribute.Int("page", filter.Page),
		attribute.Int("limit", filter.Limit),
	)

	where := ` WHERE deleted_at IS NULL`
	var args []any

	if filter.Category != "" {
		args = append(args, filter.Category)
		where += fmt.Sprintf(" AND category = $%d", len(args))
	}

	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where += fmt.Sprintf(" AND (name ILIKE $%d OR description ILIKE $%d)", len(args), len(args))
	}

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&total); err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to count products",
			zap.Error(err),
		)

		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	query := `SELECT ` + productColumns + ` FROM products` + where +
		fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Error getting products",
			zap.String("search", filter.Search),
			zap.String("category", filter.Category),
			zap.Error(err),
		)

		return nil, 0, fmt.Errorf("error selecting products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0, filter.Limit)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			span.RecordError(err)

			mylogger.Error(
				ctx,
				r.logger,
				"Failed to scan rows",
				zap.Error(err),
			)

			return nil, 0, fmt.Errorf("error scanning rows: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, 0, fmt.Errorf("rows iteration error: %w", err)
	}

	return products, total, nil
}

func (r *productRepo) Update(ctx context.Context, id string, input *domain.UpdateProductInput) (*domain.Product, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.Update")
	defer span.End()

	span.SetAttributes(
		attribute.String("id", id),
	)

	var (
		updates []string
		args    []any
	)
	set := func(column string, value any) {
		args = append(args, value)
		updates = append(updates, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if input.Name != nil {
		set("name", *input.Name)
	}
	if input.Description != nil {
		set("description", *input.Description)
	}
	if input.Price != nil {
		set("price", *input.Price)
	}
	if input.Stock != nil {
		set("stock", *input.Stock)
	}
	if input.Category != nil {
		set("category", *input.Category)
	}
	if input.ImageURL != nil {
		set("image_url", *input.ImageURL)
	}

	if len(updates) == 0 {
		return r.GetByID(ctx, id)
	}

	updates = append(updates, "updated_at = NOW()")
	args = append(args, id)

	query := `UPDATE products SET ` + strings.Join(updates, ", ") +
		fmt.Sprintf(" WHERE id = $%d AND deleted_at IS NULL RETURNING ", len(args)) + productColumns

	product, err := scanProduct(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}

		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to update product",
			zap.String("id", id),
			zap.Error(err),
		)

		return nil, fmt.Errorf("error updating product: %w", err)
	}

	return product, nil
}

func (r *productRepo) DeleteByID(ctx context.Context, id string) error {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.DeleteByID")
	defer span.End()

	span.SetAttributes(
		attribute.String("id", id),
	)

	query := `
		UPDATE products
		SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`

	commandTag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Error deleting product by id",
			zap.String("id", id),
			zap.Error(err),
		)

		return fmt.Errorf("error deleting product by id: %w", err)
	}

	if commandTag.RowsAffected() == 0 {
		return ErrProductNotFound
	}

	return nil
}

func (r *productRepo) DecreaseStock(ctx context.Context, tx pgx.Tx, id string, quantity int64) (int64, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.DecreaseStock")
	defer span.End()

	span.SetAttributes(
		attribute.String("id", id),
		attribute.Int64("quantity", quantity),
	)

	query := `
		UPDATE products
		SET stock = stock - $2, updated_at = NOW()
		WHERE id = $1
			AND stock >= $2
			AND deleted_at IS NULL
		RETURNING stock;
	`

	var remaining int64
	err := tx.QueryRow(ctx, query, id, quantity).Scan(&remaining)
	if err == nil {
		return remaining, nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Error decreasing stock",
			zap.String("id", id),
			zap.Int64("quantity", quantity),
			zap.Error(err),
		)

		return 0, fmt.Errorf("error decreasing stock for product %s: %w", id, err)
	}

	var available int64
	err = tx.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1 AND deleted_at IS NULL`, id).Scan(&available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrProductNotFound
		}

		span.RecordError(err)
		return 0, fmt.Errorf("error reading stock for product %s: %w", id, err)
	}

	return available, ErrInsufficientStock
}

func (r *productRepo) IncreaseStock(ctx context.Context, tx pgx.Tx, id string, quantity int64) error {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.IncreaseStock")
	defer span.End()

	span.SetAttributes(
		attribute.String("id", id),
		attribute.Int64("quantity", quantity),
	)

	query := `
		UPDATE products
		SET stock = stock + $2, updated_at = NOW()
		WHERE id = $1
	`

	commandTag, err := tx.Exec(ctx, query, id, quantity)
	if err != nil {
		span.RecordError(err)
		mylogger.Warn(ctx, r.logger, "Failed to update stock", zap.Error(err))

		return fmt.Errorf("error increasing stock for product %s: %w", id, err)
	}

	if commandTag.RowsAffected() == 0 {
		mylogger.Warn(ctx, r.logger, "Product not found", zap.String("product_id", id))
		return ErrProductNotFound
	}

	return nil
}

func (r *productRepo) SaveReservations(ctx context.Context, tx pgx.Tx, orderID string, lines []domain.StockLine) error {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.SaveReservations")
	defer span.End()

	span.SetAttributes(
		attribute.String("order_id", orderID),
		attribute.Int("lines", len(lines)),
	)

	if len(lines) == 0 {
		return nil
	}

	query := `
		INSERT INTO stock_reservations (order_id, product_id, quantity)
		VALUES ($1, $2, $3)
	`

	batch := &pgx.Batch{}
	for _, line := range lines {
		batch.Queue(query, orderID, line.ProductID, line.Quantity)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		span.RecordError(err)

		mylogger.Error(ctx, r.logger, "Failed to save reservations", zap.String("order_id", orderID), zap.Error(err))
		return fmt.Errorf("failed to save reservations: %w", err)
	}

	return nil
}

func (r *productRepo) TakeReservations(ctx context.Context, tx pgx.Tx, orderID string) ([]domain.StockLine, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.TakeReservations")
	defer span.End()

	span.SetAttributes(
		attribute.String("order_id", orderID),
	)

	query := `
		DELETE FROM stock_reservations
		WHERE order_id = $1
		RETURNING product_id, quantity
	`

	rows, err := tx.Query(ctx, query, orderID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to take reservations: %w", err)
	}

	lines, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.StockLine, error) {
		var line domain.StockLine
		err := row.Scan(&line.ProductID, &line.Quantity)
		return line, err
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to scan reservations: %w", err)
	}

	return lines, nil
}
