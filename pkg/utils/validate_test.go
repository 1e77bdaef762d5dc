package utils

import (
	"testing"

	"github.com/dax-side/ecommerce-microservices-api/pkg/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending confirmed shipped delivered cancelled"`
}

type itemRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int64  `json:"quantity" validate:"gte=1,lte=1000000"`
}

func TestValidateStruct(t *testing.T) {
	require.NoError(t, ValidateStruct(&statusRequest{Status: "shipped"}))

	err := ValidateStruct(&statusRequest{Status: "lost"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Equal(t, "status must be one of [pending confirmed shipped delivered cancelled]", err.Error())

	err = ValidateStruct(&itemRequest{ProductID: "p1", Quantity: 0})
	require.Error(t, err)
	assert.Equal(t, "quantity must be greater than or equal to 1", err.Error())

	err = ValidateStruct(&itemRequest{ProductID: "p1", Quantity: 1000001})
	require.Error(t, err)
	assert.Equal(t, "quantity must be less than or equal to 1000000", err.Error())

	err = ValidateStruct(&itemRequest{Quantity: 1})
	require.Error(t, err)
	assert.Equal(t, "productid is required", err.Error())
}
