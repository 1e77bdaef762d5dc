package service_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/dax-side/ecommerce-microservices-api/pkg/apperr"
	generalDomain "github.com/dax-side/ecommerce-microservices-api/pkg/domain"
	"github.com/dax-side/ecommerce-microservices-api/services/order/internal/domain"
	"github.com/dax-side/ecommerce-microservices-api/services/order/internal/service"
	"github.com/dax-side/ecommerce-microservices-api/services/order/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func product(id, name, price string, stock int64) domain.Product {
	return domain.Product{ID: id, Name: name, Price: decimal.RequireFromString(price), Stock: stock}
}

func TestValidate_KeepsInputOrderAndSnapshots(t *testing.T) {
	products := testutil.NewProducts(
		product("p1", "Keyboard", "10.00", 5),
		product("p2", "Mouse", "4.50", 8),
	)
	v := service.NewLineValidator(products)

	items, err := v.Validate(context.Background(), []domain.LineRequest{
		{ProductID: "p2", Quantity: 1},
		{ProductID: "p1", Quantity: 2},
		{ProductID: "p2", Quantity: 3},
	})
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, "p2", items[0].ProductID)
	assert.Equal(t, "Mouse", items[0].ProductName)
	assert.Equal(t, int64(1), items[0].Quantity)
	assert.True(t, decimal.RequireFromString("4.50").Equal(items[0].Price))

	assert.Equal(t, "p1", items[1].ProductID)
	assert.Equal(t, "Keyboard", items[1].ProductName)
	assert.Equal(t, int64(2), items[1].Quantity)

	assert.Equal(t, "p2", items[2].ProductID)
	assert.Equal(t, int64(3), items[2].Quantity)

	assert.Equal(t, 1, products.Calls("p1"))
	assert.Equal(t, 1, products.Calls("p2"))
}

func TestValidate_SumsRepeatedProducts(t *testing.T) {
	v := service.NewLineValidator(testutil.NewProducts(product("p1", "Keyboard", "10.00", 5)))

	_, err := v.Validate(context.Background(), []domain.LineRequest{
		{ProductID: "p1", Quantity: 3},
		{ProductID: "p1", Quantity: 3},
	})
	require.Error(t, err)

	var availErr *apperr.InsufficientAvailabilityError
	require.ErrorAs(t, err, &availErr)
	assert.Equal(t, "p1", availErr.ProductID)
	assert.Equal(t, int64(5), availErr.Available)
	assert.Equal(t, int64(6), availErr.Requested)
	assert.Equal(t, "insufficient availability for p1", err.Error())
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestValidate_UnknownProduct(t *testing.T) {
	v := service.NewLineValidator(testutil.NewProducts(product("p1", "Keyboard", "10.00", 5)))

	_, err := v.Validate(context.Background(), []domain.LineRequest{
		{ProductID: "p1", Quantity: 1},
		{ProductID: "ghost", Quantity: 1},
	})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Equal(t, "product ghost not found", err.Error())
}

func TestValidate_DependencyFailure(t *testing.T) {
	products := testutil.NewProducts(product("p1", "Keyboard", "10.00", 5))
	products.Fail("p1", apperr.DependencyUnavailable("product-service", errors.New("connection refused")))

	_, err := service.NewLineValidator(products).Validate(context.Background(), []domain.LineRequest{
		{ProductID: "p1", Quantity: 1},
	})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindDependencyUnavailable))
}

func TestValidate_RejectsMalformedLines(t *testing.T) {
	v := service.NewLineValidator(testutil.NewProducts())

	tests := []struct {
		name  string
		lines []domain.LineRequest
	}{
		{name: "empty", lines: nil},
		{name: "zero quantity", lines: []domain.LineRequest{{ProductID: "p1", Quantity: 0}}},
		{name: "missing product", lines: []domain.LineRequest{{Quantity: 1}}},
		{name: "quantity above bound", lines: []domain.LineRequest{{ProductID: "p1", Quantity: generalDomain.MaxItemQuantity + 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Validate(context.Background(), tt.lines)
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindValidation))
		})
	}
}

func TestValidate_HugeRepeatedQuantitiesDoNotWrap(t *testing.T) {
	products := testutil.NewProducts(product("p1", "Keyboard", "0.00", 5))
	v := service.NewLineValidator(products)

	_, err := v.Validate(context.Background(), []domain.LineRequest{
		{ProductID: "p1", Quantity: math.MaxInt64},
		{ProductID: "p1", Quantity: math.MaxInt64},
	})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Zero(t, products.Calls("p1"))
}

func TestValidate_SumAtBoundStillChecksStock(t *testing.T) {
	v := service.NewLineValidator(testutil.NewProducts(product("p1", "Keyboard", "1.00", 5)))

	_, err := v.Validate(context.Background(), []domain.LineRequest{
		{ProductID: "p1", Quantity: generalDomain.MaxItemQuantity},
		{ProductID: "p1", Quantity: generalDomain.MaxItemQuantity},
	})

	var shortage *apperr.InsufficientAvailabilityError
	require.ErrorAs(t, err, &shortage)
	assert.Equal(t, 2*generalDomain.MaxItemQuantity, shortage.Requested)
}

func TestValidate_FetchesConcurrently(t *testing.T) {
	products := testutil.NewProducts(
		product("p1", "A", "1.00", 1),
		product("p2", "B", "1.00", 1),
		product("p3", "C", "1.00", 1),
		product("p4", "D", "1.00", 1),
	)
	products.Delay = 150 * time.Millisecond

	start := time.Now()
	_, err := service.NewLineValidator(products).Validate(context.Background(), []domain.LineRequest{
		{ProductID: "p1", Quantity: 1},
		{ProductID: "p2", Quantity: 1},
		{ProductID: "p3", Quantity: 1},
		{ProductID: "p4", Quantity: 1},
	})
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 450*time.Millisecond)
	assert.Equal(t, int64(4), products.TotalCalls())
}
