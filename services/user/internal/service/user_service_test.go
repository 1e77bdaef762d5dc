package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/dax-side/ecommerce-microservices-api/pkg/apperr"
	generalDomain "github.com/dax-side/ecommerce-microservices-api/pkg/domain"
	"github.com/dax-side/ecommerce-microservices-api/services/user/internal/domain"
	"github.com/dax-side/ecommerce-microservices-api/services/user/internal/service"
	"github.com/dax-side/ecommerce-microservices-api/services/user/internal/testutil"
	"github.com/dax-side/ecommerce-microservices-api/services/user/pkg/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func newService(users ...domain.User) (*testutil.UserRepo, service.UserService) {
	repo := testutil.NewUserRepo(users...)
	svc := service.NewUserService(repo, validator.NewValidator(), zap.NewNop(), service.WithHashCost(bcrypt.MinCost))
	return repo, svc
}

func user(id, email string) domain.User {
	return domain.User{ID: id, Name: "User " + id, Email: email, Role: generalDomain.RoleUser}
}

func TestCreate(t *testing.T) {
	repo, svc := newService()

	u, err := svc.Create(context.Background(), &domain.CreateUserInput{
		Name:     " Ada ",
		Email:    " Ada@Example.COM ",
		Password: "lovelace1815",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "Ada", u.Name)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.Equal(t, generalDomain.RoleUser, u.Role)

	stored, err := repo.GetByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "lovelace1815", stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("lovelace1815")))
}

func TestCreate_Rejects(t *testing.T) {
	_, svc := newService(user("u1", "taken@example.com"))

	tests := []struct {
		name  string
		input domain.CreateUserInput
		want  string
	}{
		{
			name:  "weak password",
			input: domain.CreateUserInput{Name: "A", Email: "a@example.com", Password: "password"},
			want:  "password must contain at least one digit and one letter",
		},
		{
			name:  "short password",
			input: domain.CreateUserInput{Name: "A", Email: "a@example.com", Password: "a1"},
			want:  "password must be at least 8 characters long",
		},
		{
			name:  "duplicate email",
			input: domain.CreateUserInput{Name: "A", Email: "TAKEN@example.com", Password: "secret123"},
			want:  "email taken@example.com is already registered",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), &tt.input)
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindValidation))
			assert.Equal(t, tt.want, err.Error())
		})
	}
}

func TestFindByID_NotFound(t *testing.T) {
	_, svc := newService()

	_, err := svc.FindByID(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Equal(t, "user nope not found", err.Error())
}

func TestList(t *testing.T) {
	repo, svc := newService(
		user("u1", "one@example.com"),
		user("u2", "two@example.com"),
		user("u3", "three@example.com"),
	)

	page, err := svc.List(context.Background(), domain.ListFilter{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, generalDomain.Pagination{Page: 2, Limit: 2, Total: 3, Pages: 2}, page.Pagination)
	require.Len(t, page.Users, 1)
	assert.Equal(t, "u1", page.Users[0].ID)

	page, err = svc.List(context.Background(), domain.ListFilter{Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, generalDomain.MaxPageLimit, page.Pagination.Limit)

	repo.ListErr = errors.New("connection reset")
	_, err = svc.List(context.Background(), domain.ListFilter{})
	assert.True(t, apperr.Is(err, apperr.KindStoreFailure))
}

func TestUpdate(t *testing.T) {
	repo, svc := newService(user("u1", "one@example.com"), user("u2", "two@example.com"))
	ctx := context.Background()

	name := "Renamed"
	u, err := svc.Update(ctx, "u1", &domain.UpdateUserInput{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", u.Name)
	assert.Equal(t, "one@example.com", u.Email)

	password := "newpass99"
	_, err = svc.Update(ctx, "u1", &domain.UpdateUserInput{Password: &password})
	require.NoError(t, err)
	stored, err := repo.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte(password)))

	weak := "short"
	_, err = svc.Update(ctx, "u1", &domain.UpdateUserInput{Password: &weak})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	taken := "Two@example.com"
	_, err = svc.Update(ctx, "u1", &domain.UpdateUserInput{Email: &taken})
	require.Error(t, err)
	assert.Equal(t, "email two@example.com is already registered", err.Error())

	_, err = svc.Update(ctx, "u9", &domain.UpdateUserInput{Name: &name})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestDelete(t *testing.T) {
	_, svc := newService(user("u1", "one@example.com"))

	require.NoError(t, svc.Delete(context.Background(), "u1"))

	_, err := svc.FindByID(context.Background(), "u1")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	err = svc.Delete(context.Background(), "u1")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
