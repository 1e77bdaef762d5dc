package domain_test

import (
	"math"
	"testing"

	generalDomain "github.com/dax-side/ecommerce-microservices-api/pkg/domain"
	"github.com/dax-side/ecommerce-microservices-api/services/product/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestMergeLines(t *testing.T) {
	tests := []struct {
		name  string
		items []generalDomain.OrderItem
		want  []domain.StockLine
	}{
		{
			name: "sums and sorts",
			items: []generalDomain.OrderItem{
				{ProductID: "p2", Quantity: 1},
				{ProductID: "p1", Quantity: 2},
				{ProductID: "p2", Quantity: 3},
			},
			want: []domain.StockLine{{ProductID: "p1", Quantity: 2}, {ProductID: "p2", Quantity: 4}},
		},
		{
			name: "overflowing sum saturates",
			items: []generalDomain.OrderItem{
				{ProductID: "p1", Quantity: math.MaxInt64},
				{ProductID: "p1", Quantity: math.MaxInt64},
			},
			want: []domain.StockLine{{ProductID: "p1", Quantity: math.MaxInt64}},
		},
		{
			name: "non-positive quantity saturates",
			items: []generalDomain.OrderItem{
				{ProductID: "p1", Quantity: 3},
				{ProductID: "p1", Quantity: -3},
				{ProductID: "p2", Quantity: 1},
			},
			want: []domain.StockLine{{ProductID: "p1", Quantity: math.MaxInt64}, {ProductID: "p2", Quantity: 1}},
		},
		{
			name: "saturation is sticky",
			items: []generalDomain.OrderItem{
				{ProductID: "p1", Quantity: 0},
				{ProductID: "p1", Quantity: 1},
			},
			want: []domain.StockLine{{ProductID: "p1", Quantity: math.MaxInt64}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, domain.MergeLines(tt.items))
		})
	}
}
