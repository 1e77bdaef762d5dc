package validator

import (
	"unicode"

	"github.com/dax-side/ecommerce-microservices-api/pkg/apperr"
)

const DefaultMinLength = 8

var (
	ErrPasswordTooShort = apperr.Validation("password must be at least %d characters long", DefaultMinLength)
	ErrPasswordTooWeak  = apperr.Validation("password must contain at least one digit and one letter")
)

type Validator interface {
	ValidatePassword(password string) error
}

type passwordValidator struct {
	minLength int
}

func NewValidator() Validator {
	return &passwordValidator{minLength: DefaultMinLength}
}

func (v *passwordValidator) ValidatePassword(password string) error {
	if len([]rune(password)) < v.minLength {
		return ErrPasswordTooShort
	}

	var hasLetter, hasDigit bool
	for _, r := range password {
		if unicode.IsLetter(r) {
			hasLetter = true
		}
		if unicode.IsDigit(r) {
			hasDigit = true
		}
	}

	if !hasLetter || !hasDigit {
		return ErrPasswordTooWeak
	}

	return nil
}
