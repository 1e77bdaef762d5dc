package service

import (
	"context"

	"github.com/dax-side/ecommerce-microservices-api/pkg/apperr"
	generalDomain "github.com/dax-side/ecommerce-microservices-api/pkg/domain"
	"github.com/dax-side/ecommerce-microservices-api/services/order/internal/client"
	"github.com/dax-side/ecommerce-microservices-api/services/order/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// LineValidator resolves requested lines against the product service.
type LineValidator interface {
	Validate(ctx context.Context, lines []domain.LineRequest) ([]domain.OrderItem, error)
}

type lineValidator struct {
	products client.ProductGetter
	tracer   trace.Tracer
}

func NewLineValidator(products client.ProductGetter) LineValidator {
	return &lineValidator{
		products: products,
		tracer:   otel.Tracer("order_validator"),
	}
}

// Validate fetches every distinct product once, concurrently, and checks the
// summed requested quantity against its stock. The first failure cancels the
// remaining fetches and is returned as is. On success the result has one
// item per input line, in input order, with the product's name and price.
func (v *lineValidator) Validate(ctx context.Context, lines []domain.LineRequest) ([]domain.OrderItem, error) {
	ctx, span := v.tracer.Start(ctx, "LineValidator.Validate")
	defer span.End()

	if len(lines) == 0 {
		return nil, apperr.Validation("order must contain at least one item")
	}

	requested := make(map[string]int64, len(lines))
	distinct := make([]string, 0, len(lines))
	for _, line := range lines {
		if line.ProductID == "" {
			return nil, apperr.Validation("productId is required")
		}
		if line.Quantity < 1 {
			return nil, apperr.Validation("quantity must be at least 1")
		}
		if line.Quantity > generalDomain.MaxItemQuantity {
			return nil, apperr.Validation("quantity must be at most %d", generalDomain.MaxItemQuantity)
		}
		if _, seen := requested[line.ProductID]; !seen {
			distinct = append(distinct, line.ProductID)
		}
		requested[line.ProductID] += line.Quantity
	}

	span.SetAttributes(
		attribute.Int("lines", len(lines)),
		attribute.Int("distinct_products", len(distinct)),
	)

	products := make([]*domain.Product, len(distinct))

	g, gctx := errgroup.WithContext(ctx)
	for i, id := range distinct {
		g.Go(func() error {
			product, err := v.products.GetProduct(gctx, id)
			if err != nil {
				if apperr.Is(err, apperr.KindNotFound) {
					return apperr.Validation("product %s not found", id)
				}
				return err
			}

			if want := requested[id]; product.Stock < want {
				return &apperr.InsufficientAvailabilityError{
					ProductID: id,
					Available: product.Stock,
					Requested: want,
				}
			}

			products[i] = product
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	byID := make(map[string]*domain.Product, len(distinct))
	for i, id := range distinct {
		byID[id] = products[i]
	}

	items := make([]domain.OrderItem, len(lines))
	for i, line := range lines {
		p := byID[line.ProductID]
		items[i] = domain.OrderItem{
			ProductID:   line.ProductID,
			ProductName: p.Name,
			Quantity:    line.Quantity,
			Price:       p.Price,
		}
	}

	return items, nil
}
