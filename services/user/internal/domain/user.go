package domain

import (
	"time"

	generalDomain "github.com/dax-side/ecommerce-microservices-api/pkg/domain"
)

type User struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         string    `json:"role" db:"role"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

type CreateUserInput struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,max=72"`
	Role     string `json:"role" validate:"omitempty,oneof=user admin"`
}

// UpdateUserInput carries a partial update; nil fields are left as they are.
type UpdateUserInput struct {
	Name     *string `json:"name" validate:"omitempty,min=1,max=100"`
	Email    *string `json:"email" validate:"omitempty,email,max=255"`
	Password *string `json:"password" validate:"omitempty,max=72"`
	Role     *string `json:"role" validate:"omitempty,oneof=user admin"`
}

// UserChanges is what the repository writes. PasswordHash replaces the
// plain password of UpdateUserInput.
type UserChanges struct {
	Name         *string
	Email        *string
	PasswordHash *string
	Role         *string
}

func (c UserChanges) Empty() bool {
	return c.Name == nil && c.Email == nil && c.PasswordHash == nil && c.Role == nil
}

type ListFilter struct {
	Page  int
	Limit int
}

func (f ListFilter) Normalize() ListFilter {
	f.Page, f.Limit = generalDomain.NormalizePage(f.Page, f.Limit)
	return f
}

type UserPage struct {
	Users      []User                   `json:"users"`
	Pagination generalDomain.Pagination `json:"pagination"`
}
