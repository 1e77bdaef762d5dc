package domain

import (
	"math"
	"slices"
	"strings"
	"time"

	generalDomain "github.com/dax-side/ecommerce-microservices-api/pkg/domain"
	"github.com/shopspring/decimal"
)

type Product struct {
	ID          string          `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Description string          `json:"description" db:"description"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Stock       int64           `json:"stock" db:"stock"`
	Category    string          `json:"category" db:"category"`
	ImageURL    string          `json:"imageUrl" db:"image_url"`
	CreatedAt   time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time       `json:"updatedAt" db:"updated_at"`
}

type CreateProductInput struct {
	Name        string          `json:"name" validate:"required,max=255"`
	Description string          `json:"description" validate:"max=2000"`
	Price       decimal.Decimal `json:"price"`
	Stock       int64           `json:"stock" validate:"gte=0"`
	Category    string          `json:"category" validate:"max=100"`
	ImageURL    string          `json:"imageUrl" validate:"omitempty,url"`
}

// UpdateProductInput carries a partial update; nil fields are left as they are.
type UpdateProductInput struct {
	Name        *string          `json:"name" validate:"omitempty,min=1,max=255"`
	Description *string          `json:"description" validate:"omitempty,max=2000"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int64           `json:"stock" validate:"omitempty,gte=0"`
	Category    *string          `json:"category" validate:"omitempty,max=100"`
	ImageURL    *string          `json:"imageUrl" validate:"omitempty,url"`
}

func (in UpdateProductInput) Empty() bool {
	return in.Name == nil && in.Description == nil && in.Price == nil &&
		in.Stock == nil && in.Category == nil && in.ImageURL == nil
}

type ListFilter struct {
	Category string
	Search   string
	Page     int
	Limit    int
}

func (f ListFilter) Normalize() ListFilter {
	f.Page, f.Limit = generalDomain.NormalizePage(f.Page, f.Limit)
	return f
}

type ProductPage struct {
	Products   []Product                `json:"products"`
	Pagination generalDomain.Pagination `json:"pagination"`
}

// StockLine is a quantity of one product held for, or returned from, an order.
type StockLine struct {
	ProductID string
	Quantity  int64
}

// MergeLines sums quantities per product and orders the result by product id,
// so concurrent reservations lock rows in the same order. A quantity outside
// [1, MaxItemQuantity] or a sum that would overflow saturates the product's
// total at math.MaxInt64 so the reservation fails as a shortage.
func MergeLines(items []generalDomain.OrderItem) []StockLine {
	totals := make(map[string]int64, len(items))
	for _, item := range items {
		total := totals[item.ProductID]
		switch {
		case item.Quantity < 1 || item.Quantity > generalDomain.MaxItemQuantity:
			total = math.MaxInt64
		case total > math.MaxInt64-item.Quantity:
			total = math.MaxInt64
		default:
			total += item.Quantity
		}
		totals[item.ProductID] = total
	}

	lines := make([]StockLine, 0, len(totals))
	for id, qty := range totals {
		lines = append(lines, StockLine{ProductID: id, Quantity: qty})
	}
	slices.SortFunc(lines, func(a, b StockLine) int {
		return strings.Compare(a.ProductID, b.ProductID)
	})

	return lines
}
