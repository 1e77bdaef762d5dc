package service

import (
	"context"

	"github.com/dax-side/ecommerce-microservices-api/pkg/cache"
	generalDomain "github.com/dax-side/ecommerce-microservices-api/pkg/domain"
	"github.com/dax-side/ecommerce-microservices-api/services/product/internal/domain"
)

type cachedProductService struct {
	next  ProductService
	cache cache.Cache
}

func NewCachedProductService(next ProductService, c cache.Cache) ProductService {
	return &cachedProductService{
		next:  next,
		cache: c,
	}
}

func productKey(id string) string { return cache.Key("product", id) }

func listKey(f domain.ListFilter) string {
	return cache.Key("products", "list", "category", f.Category, "search", f.Search, "page", f.Page, "limit", f.Limit)
}

var listPattern = cache.Key("products", "list", "*")

func (s *cachedProductService) Create(ctx context.Context, input *domain.CreateProductInput) (*domain.Product, error) {
	product, err := s.next.Create(ctx, input)
	if err != nil {
		return nil, err
	}

	cache.Invalidate(ctx, s.cache, nil, listPattern)
	return product, nil
}

func (s *cachedProductService) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	return cache.Aside(ctx, s.cache, productKey(id), cache.EntityTTL, func(ctx context.Context) (*domain.Product, error) {
		return s.next.FindByID(ctx, id)
	})
}

func (s *cachedProductService) List(ctx context.Context, filter domain.ListFilter) (*domain.ProductPage, error) {
	filter = filter.Normalize()

	return cache.Aside(ctx, s.cache, listKey(filter), cache.ListTTL, func(ctx context.Context) (*domain.ProductPage, error) {
		return s.next.List(ctx, filter)
	})
}

func (s *cachedProductService) Update(ctx context.Context, id string, input *domain.UpdateProductInput) (*domain.Product, error) {
	product, err := s.next.Update(ctx, id, input)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, id)
	return product, nil
}

func (s *cachedProductService) Delete(ctx context.Context, id string) error {
	if err := s.next.Delete(ctx, id); err != nil {
		return err
	}

	s.invalidate(ctx, id)
	return nil
}

func (s *cachedProductService) ReserveStock(
	ctx context.Context,
	eventID string,
	event *generalDomain.OrderCreatedEvent,
) ([]string, error) {
	ids, err := s.next.ReserveStock(ctx, eventID, event)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, ids...)
	return ids, nil
}

func (s *cachedProductService) ReleaseStock(
	ctx context.Context,
	eventID string,
	event *generalDomain.OrderCancelledEvent,
) ([]string, error) {
	ids, err := s.next.ReleaseStock(ctx, eventID, event)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, ids...)
	return ids, nil
}

// invalidate drops the given products and every cached listing. Nothing is
// dropped when no product changed.
func (s *cachedProductService) invalidate(ctx context.Context, ids ...string) {
	if len(ids) == 0 {
		return
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = productKey(id)
	}

	cache.Invalidate(ctx, s.cache, keys, listPattern)
}
