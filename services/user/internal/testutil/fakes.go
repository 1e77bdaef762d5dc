// Package testutil holds an in-memory user store with the same unique email
// rule as the users table.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dax-side/ecommerce-microservices-api/services/user/internal/domain"
	"github.com/dax-side/ecommerce-microservices-api/services/user/internal/repository"
)

type UserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
	now   time.Time

	ListErr error
}

var _ repository.UserRepository = (*UserRepo)(nil)

func NewUserRepo(users ...domain.User) *UserRepo {
	r := &UserRepo{
		users: make(map[string]*domain.User),
		now:   time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	for _, u := range users {
		r.Put(u)
	}
	return r
}

func (r *UserRepo) tick() time.Time {
	r.now = r.now.Add(time.Second)
	return r.now
}

func (r *UserRepo) Put(u domain.User) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u.CreatedAt.IsZero() {
		u.CreatedAt = r.tick()
		u.UpdatedAt = u.CreatedAt
	}
	r.users[u.ID] = &u
}

func (r *UserRepo) emailTaken(email, exceptID string) bool {
	for id, u := range r.users {
		if id != exceptID && u.Email == email {
			return true
		}
	}
	return false
}

func (r *UserRepo) Create(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.emailTaken(u.Email, "") {
		return repository.ErrUserAlreadyExists
	}

	u.CreatedAt = r.tick()
	u.UpdatedAt = u.CreatedAt
	stored := *u
	r.users[u.ID] = &stored
	return nil
}

func (r *UserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

func (r *UserRepo) List(_ context.Context, f domain.ListFilter) ([]domain.User, int64, error) {
	if r.ListErr != nil {
		return nil, 0, r.ListErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	all := make([]domain.User, 0, len(r.users))
	for _, u := range r.users {
		all = append(all, *u)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	start := min((f.Page-1)*f.Limit, len(all))
	end := min(start+f.Limit, len(all))

	return append([]domain.User{}, all[start:end]...), int64(len(all)), nil
}

func (r *UserRepo) Update(_ context.Context, id string, ch domain.UserChanges) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	if ch.Empty() {
		c := *u
		return &c, nil
	}
	if ch.Email != nil && r.emailTaken(*ch.Email, id) {
		return nil, repository.ErrUserAlreadyExists
	}

	if ch.Name != nil {
		u.Name = *ch.Name
	}
	if ch.Email != nil {
		u.Email = *ch.Email
	}
	if ch.PasswordHash != nil {
		u.PasswordHash = *ch.PasswordHash
	}
	if ch.Role != nil {
		u.Role = *ch.Role
	}
	u.UpdatedAt = r.tick()

	c := *u
	return &c, nil
}

func (r *UserRepo) DeleteByID(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[id]; !ok {
		return repository.ErrUserNotFound
	}
	delete(r.users, id)
	return nil
}
