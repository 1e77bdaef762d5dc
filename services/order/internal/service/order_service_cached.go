package service

import (
	"context"

	"github.com/dax-side/ecommerce-microservices-api/pkg/apperr"
	"github.com/dax-side/ecommerce-microservices-api/pkg/cache"
	generalDomain "github.com/dax-side/ecommerce-microservices-api/pkg/domain"
	"github.com/dax-side/ecommerce-microservices-api/services/order/internal/domain"
)

type cachedOrderService struct {
	next  OrderService
	cache cache.Cache
}

// NewCachedOrderService serves reads cache-aside and drops the affected
// entries after every committed write.
func NewCachedOrderService(next OrderService, c cache.Cache) OrderService {
	return &cachedOrderService{
		next:  next,
		cache: c,
	}
}

func orderKey(id string) string      { return cache.Key("order", id) }
func orderItemsKey(id string) string { return cache.Key("order", id, "items") }

func listKey(f domain.ListFilter) string {
	if f.UserID != "" {
		return cache.Key("orders", "user", f.UserID, "status", f.Status, "page", f.Page, "limit", f.Limit)
	}
	return cache.Key("orders", "all", "status", f.Status, "page", f.Page, "limit", f.Limit)
}

func (s *cachedOrderService) Create(ctx context.Context, userID string, lines []domain.LineRequest) (*domain.Order, error) {
	order, err := s.next.Create(ctx, userID, lines)
	if err != nil {
		return nil, err
	}

	s.invalidateLists(ctx, order.UserID)
	return order, nil
}

func (s *cachedOrderService) List(ctx context.Context, filter domain.ListFilter) (*domain.OrderPage, error) {
	filter, err := filter.Normalize()
	if err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}

	ttl := cache.GlobalListTTL
	if filter.UserID != "" {
		ttl = cache.UserListTTL
	}

	return cache.Aside(ctx, s.cache, listKey(filter), ttl, func(ctx context.Context) (*domain.OrderPage, error) {
		return s.next.List(ctx, filter)
	})
}

func (s *cachedOrderService) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return cache.Aside(ctx, s.cache, orderKey(id), cache.EntityTTL, func(ctx context.Context) (*domain.Order, error) {
		return s.next.GetByID(ctx, id)
	})
}

func (s *cachedOrderService) GetItems(ctx context.Context, id string) ([]domain.OrderItem, error) {
	return cache.Aside(ctx, s.cache, orderItemsKey(id), cache.EntityTTL, func(ctx context.Context) ([]domain.OrderItem, error) {
		return s.next.GetItems(ctx, id)
	})
}

func (s *cachedOrderService) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	order, err := s.next.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}

	s.invalidateOrder(ctx, order)
	return order, nil
}

func (s *cachedOrderService) Cancel(ctx context.Context, id string) (*domain.Order, error) {
	order, err := s.next.Cancel(ctx, id)
	if err != nil {
		return nil, err
	}

	s.invalidateOrder(ctx, order)
	return order, nil
}

func (s *cachedOrderService) Delete(ctx context.Context, id string) (*domain.Order, error) {
	order, err := s.next.Delete(ctx, id)
	if err != nil {
		return nil, err
	}

	s.invalidateOrder(ctx, order)
	return order, nil
}

func (s *cachedOrderService) HandleStockReservationFailed(
	ctx context.Context,
	eventID string,
	event *generalDomain.StockReservationFailedEvent,
) (*domain.Order, error) {
	order, err := s.next.HandleStockReservationFailed(ctx, eventID, event)
	if err != nil {
		return nil, err
	}

	if order != nil {
		s.invalidateOrder(ctx, order)
	}
	return order, nil
}

func (s *cachedOrderService) invalidateOrder(ctx context.Context, order *domain.Order) {
	cache.Invalidate(
		ctx,
		s.cache,
		[]string{orderKey(order.ID), orderItemsKey(order.ID)},
		cache.Key("orders", "user", cache.EscapePattern(order.UserID), "*"),
		cache.Key("orders", "all", "*"),
	)
}

func (s *cachedOrderService) invalidateLists(ctx context.Context, userID string) {
	cache.Invalidate(
		ctx,
		s.cache,
		nil,
		cache.Key("orders", "user", cache.EscapePattern(userID), "*"),
		cache.Key("orders", "all", "*"),
	)
}
