package validator

import (
	"testing"

	"github.com/dax-side/ecommerce-microservices-api/pkg/apperr"
	"github.com/stretchr/testify/assert"
)

func TestValidatePassword(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name     string
		password string
		want     error
	}{
		{name: "ok", password: "hunter42x", want: nil},
		{name: "too short", password: "abc123", want: ErrPasswordTooShort},
		{name: "multibyte counted as runes", password: "пароль1", want: ErrPasswordTooShort},
		{name: "letters only", password: "abcdefghij", want: ErrPasswordTooWeak},
		{name: "digits only", password: "1234567890", want: ErrPasswordTooWeak},
		{name: "unicode letters", password: "пароль123", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidatePassword(tt.password)
			assert.Equal(t, tt.want, err)
			if tt.want != nil {
				assert.True(t, apperr.Is(err, apperr.KindValidation))
			}
		})
	}
}
