package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dax-side/ecommerce-microservices-api/pkg/mylogger"
	"github.com/dax-side/ecommerce-microservices-api/services/user/internal/domain"
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

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	List(ctx context.Context, filter domain.ListFilter) ([]domain.User, int64, error)
	Update(ctx context.Context, id string, changes domain.UserChanges) (*domain.User, error)
	DeleteByID(ctx context.Context, id string) error
}

type userRepo struct {
	db     DBTX
	tracer trace.Tracer
	logger *zap.Logger
}

func NewUserRepository(db DBTX, logger *zap.Logger) UserRepository {
	return &userRepo{
		db:     db,
		logger: logger,
		tracer: otel.Tracer("repository/user_repo"),
	}
}

const userColumns = `id, name, email, password_hash, role, created_at, updated_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.Role,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return nil, err
	}

	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pgError *pgconn.PgError
	return errors.As(err, &pgError) && pgError.Code == "23505"
}

func (r *userRepo) Create(ctx context.Context, user *domain.User) error {
	ctx, span := r.tracer.Start(ctx, "UserRepository.Create")
	defer span.End()

	span.SetAttributes(
		attribute.String("user.id", user.ID),
		attribute.String("user.email", user.Email),
	)

	query := `
		INSERT INTO users (id, name, email, password_hash, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at;
	`

	err := r.db.QueryRow(ctx, query, user.ID, user.Name, user.Email, user.PasswordHash, user.Role).
		Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		span.RecordError(err)

		if isUniqueViolation(err) {
			mylogger.Warn(
				ctx,
				r.logger,
				"User already exists",
				zap.String("email", user.Email),
			)

			return ErrUserAlreadyExists
		}

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to Create user",
			zap.String("email", user.Email),
			zap.Error(err),
		)

		return fmt.Errorf("error creating user: %w", err)
	}

	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	ctx, span := r.tracer.Start(ctx, "UserRepository.GetByID")
	defer span.End()

	span.SetAttributes(
		attribute.String("id", id),
	)

	query := `SELECT ` + userColumns + `
		FROM users
		WHERE id = $1;
	`

	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}

		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to Get by ID",
			zap.String("id", id),
			zap.Error(err),
		)

		return nil, fmt.Errorf("error getting user: %w", err)
	}

	return user, nil
}

func (r *userRepo) List(ctx context.Context, filter domain.ListFilter) ([]domain.User, int64, error) {
	ctx, span := r.tracer.Start(ctx, "UserRepository.List")
	defer span.End()

	span.SetAttributes(
		attribute.Int("page", filter.Page),
		attribute.Int("limit", filter.Limit),
	)

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to count users",
			zap.Error(err),
		)

		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	query := `SELECT ` + userColumns + `
		FROM users
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2;
	`

	rows, err := r.db.Query(ctx, query, filter.Limit, (filter.Page-1)*filter.Limit)
	if err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Error getting users",
			zap.Error(err),
		)

		return nil, 0, fmt.Errorf("error selecting users: %w", err)
	}

	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.User, error) {
		u, err := scanUser(row)
		if err != nil {
			return domain.User{}, err
		}
		return *u, nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, 0, fmt.Errorf("error scanning users: %w", err)
	}

	return users, total, nil
}

func (r *userRepo) Update(ctx context.Context, id string, changes domain.UserChanges) (*domain.User, error) {
	ctx, span := r.tracer.Start(ctx, "UserRepository.Update")
	defer span.End()

	span.SetAttributes(
		attribute.String("id", id),
	)

	if changes.Empty() {
		return r.GetByID(ctx, id)
	}

	var (
		updates []string
		args    []any
	)
	set := func(column string, value any) {
		args = append(args, value)
		updates = append(updates, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if changes.Name != nil {
		set("name", *changes.Name)
	}
	if changes.Email != nil {
		set("email", *changes.Email)
	}
	if changes.PasswordHash != nil {
		set("password_hash", *changes.PasswordHash)
	}
	if changes.Role != nil {
		set("role", *changes.Role)
	}

	updates = append(updates, "updated_at = NOW()")
	args = append(args, id)

	query := `UPDATE users SET ` + strings.Join(updates, ", ") +
		fmt.Sprintf(" WHERE id = $%d RETURNING ", len(args)) + userColumns

	user, err := scanUser(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}

		span.RecordError(err)

		if isUniqueViolation(err) {
			return nil, ErrUserAlreadyExists
		}

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to update user",
			zap.String("id", id),
			zap.Error(err),
		)

		return nil, fmt.Errorf("error updating user: %w", err)
	}

	return user, nil
}

func (r *userRepo) DeleteByID(ctx context.Context, id string) error {
	ctx, span := r.tracer.Start(ctx, "UserRepository.DeleteByID")
	defer span.End()

	span.SetAttributes(
		attribute.String("id", id),
	)

	ct, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to delete user by id",
			zap.String("id", id),
			zap.Error(err),
		)

		return fmt.Errorf("error deleting user: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}
