package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dax-side/ecommerce-microservices-api/pkg/apperr"
	generalDomain "github.com/dax-side/ecommerce-microservices-api/pkg/domain"
	"github.com/dax-side/ecommerce-microservices-api/pkg/mylogger"
	"github.com/dax-side/ecommerce-microservices-api/services/user/internal/domain"
	"github.com/dax-side/ecommerce-microservices-api/services/user/internal/repository"
	"github.com/dax-side/ecommerce-microservices-api/services/user/pkg/validator"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const DefaultHashCost = 12

type UserService interface {
	Create(ctx context.Context, input *domain.CreateUserInput) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	List(ctx context.Context, filter domain.ListFilter) (*domain.UserPage, error)
	Update(ctx context.Context, id string, input *domain.UpdateUserInput) (*domain.User, error)
	Delete(ctx context.Context, id string) error
}

type userService struct {
	userRepo  repository.UserRepository
	validator validator.Validator
	hashCost  int
	logger    *zap.Logger
	tracer    trace.Tracer
}

type Option func(*userService)

// WithHashCost overrides the bcrypt cost.
func WithHashCost(cost int) Option {
	return func(s *userService) {
		s.hashCost = cost
	}
}

func NewUserService(
	userRepo repository.UserRepository,
	validator validator.Validator,
	logger *zap.Logger,
	opts ...Option,
) UserService {
	s := &userService{
		userRepo:  userRepo,
		validator: validator,
		hashCost:  DefaultHashCost,
		logger:    logger,
		tracer:    otel.Tracer("user_service"),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *userService) hashPassword(ctx context.Context, password string) (string, error) {
	if err := s.validator.ValidatePassword(password); err != nil {
		return "", err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		mylogger.Error(
			ctx,
			s.logger,
			"Error hashing password",
			zap.Error(err),
		)

		return "", fmt.Errorf("error hashing password: %w", err)
	}

	return string(hashed), nil
}

func (s *userService) Create(ctx context.Context, input *domain.CreateUserInput) (*domain.User, error) {
	ctx, span := s.tracer.Start(ctx, "UserService.Create")
	defer span.End()

	hash, err := s.hashPassword(ctx, input.Password)
	if err != nil {
		return nil, err
	}

	role := input.Role
	if role == "" {
		role = generalDomain.RoleUser
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(input.Name),
		Email:        normalizeEmail(input.Email),
		PasswordHash: hash,
		Role:         role,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, s.mapRepoError(ctx, "create user", user.ID, user.Email, err)
	}

	mylogger.Info(ctx, s.logger, "User created", zap.String("user_id", user.ID))

	return user, nil
}

func (s *userService) FindByID(ctx context.Context, id string) (*domain.User, error) {
	ctx, span := s.tracer.Start(ctx, "UserService.FindByID")
	defer span.End()

	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, s.mapRepoError(ctx, "get user", id, "", err)
	}

	return user, nil
}

func (s *userService) List(ctx context.Context, filter domain.ListFilter) (*domain.UserPage, error) {
	ctx, span := s.tracer.Start(ctx, "UserService.List")
	defer span.End()

	filter = filter.Normalize()

	users, total, err := s.userRepo.List(ctx, filter)
	if err != nil {
		span.RecordError(err)
		return nil, apperr.StoreFailure("list users", err)
	}

	return &domain.UserPage{
		Users:      users,
		Pagination: generalDomain.NewPagination(filter.Page, filter.Limit, total),
	}, nil
}

func (s *userService) Update(ctx context.Context, id string, input *domain.UpdateUserInput) (*domain.User, error) {
	ctx, span := s.tracer.Start(ctx, "UserService.Update")
	defer span.End()

	changes := domain.UserChanges{
		Name: input.Name,
		Role: input.Role,
	}

	if input.Email != nil {
		email := normalizeEmail(*input.Email)
		changes.Email = &email
	}

	if input.Password != nil {
		hash, err := s.hashPassword(ctx, *input.Password)
		if err != nil {
			return nil, err
		}
		changes.PasswordHash = &hash
	}

	var email string
	if changes.Email != nil {
		email = *changes.Email
	}

	user, err := s.userRepo.Update(ctx, id, changes)
	if err != nil {
		return nil, s.mapRepoError(ctx, "update user", id, email, err)
	}

	return user, nil
}

func (s *userService) Delete(ctx context.Context, id string) error {
	ctx, span := s.tracer.Start(ctx, "UserService.Delete")
	defer span.End()

	if err := s.userRepo.DeleteByID(ctx, id); err != nil {
		return s.mapRepoError(ctx, "delete user", id, "", err)
	}

	mylogger.Info(ctx, s.logger, "User deleted", zap.String("user_id", id))

	return nil
}

func (s *userService) mapRepoError(ctx context.Context, op, id, email string, err error) error {
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		mylogger.Warn(ctx, s.logger, "user not found", zap.String("user_id", id))
		return apperr.NotFound("user %s not found", id)
	case errors.Is(err, repository.ErrUserAlreadyExists):
		return apperr.Validation("email %s is already registered", email)
	}

	trace.SpanFromContext(ctx).RecordError(err)
	return apperr.StoreFailure(op, err)
}
