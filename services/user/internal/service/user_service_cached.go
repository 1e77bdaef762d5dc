package service

import (
	"context"

	"github.com/dax-side/ecommerce-microservices-api/pkg/cache"
	"github.com/dax-side/ecommerce-microservices-api/services/user/internal/domain"
)

type cachedUserService struct {
	next  UserService
	cache cache.Cache
}

func NewCachedUserService(next UserService, c cache.Cache) UserService {
	return &cachedUserService{
		next:  next,
		cache: c,
	}
}

func userKey(id string) string { return cache.Key("user", id) }

func listKey(f domain.ListFilter) string {
	return cache.Key("users", "list", "page", f.Page, "limit", f.Limit)
}

var listPattern = cache.Key("users", "list", "*")

func (s *cachedUserService) Create(ctx context.Context, input *domain.CreateUserInput) (*domain.User, error) {
	user, err := s.next.Create(ctx, input)
	if err != nil {
		return nil, err
	}

	cache.Invalidate(ctx, s.cache, nil, listPattern)
	return user, nil
}

func (s *cachedUserService) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return cache.Aside(ctx, s.cache, userKey(id), cache.EntityTTL, func(ctx context.Context) (*domain.User, error) {
		return s.next.FindByID(ctx, id)
	})
}

func (s *cachedUserService) List(ctx context.Context, filter domain.ListFilter) (*domain.UserPage, error) {
	filter = filter.Normalize()

	return cache.Aside(ctx, s.cache, listKey(filter), cache.ListTTL, func(ctx context.Context) (*domain.UserPage, error) {
		return s.next.List(ctx, filter)
	})
}

func (s *cachedUserService) Update(ctx context.Context, id string, input *domain.UpdateUserInput) (*domain.User, error) {
	user, err := s.next.Update(ctx, id, input)
	if err != nil {
		return nil, err
	}

	cache.Invalidate(ctx, s.cache, []string{userKey(id)}, listPattern)
	return user, nil
}

func (s *cachedUserService) Delete(ctx context.Context, id string) error {
	if err := s.next.Delete(ctx, id); err != nil {
		return err
	}

	cache.Invalidate(ctx, s.cache, []string{userKey(id)}, listPattern)
	return nil
}
