package domain

import (
	"fmt"
	"time"

	generalDomain "github.com/dax-side/ecommerce-microservices-api/pkg/domain"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// Cancellable reports whether an order in this status may still be cancelled.
func (s OrderStatus) Cancellable() bool {
	return s == OrderStatusPending || s == OrderStatusConfirmed
}

type Order struct {
	ID          string          `json:"id" db:"id"`
	UserID      string          `json:"userId" db:"user_id"`
	Items       []OrderItem     `json:"items" db:"items"`
	TotalAmount decimal.Decimal `json:"totalAmount" db:"total_amount"`
	Status      OrderStatus     `json:"status" db:"status"`
	CreatedAt   time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time       `json:"updatedAt" db:"updated_at"`
}

type OrderItem struct {
	ProductID   string          `json:"productId" db:"product_id"`
	ProductName string          `json:"productName" db:"product_name"`
	Quantity    int64           `json:"quantity" db:"quantity"`
	Price       decimal.Decimal `json:"price" db:"price"`
}

func (o *Order) CalculateTotal() {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(item.Quantity)))
	}
	o.TotalAmount = total
}

// LineRequest is one requested line of a new order.
type LineRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int64  `json:"quantity" validate:"gte=1,lte=1000000"`
}

// Product is the part of a product the order service reads downstream.
type Product struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Stock int64           `json:"stock"`
}

type ListFilter struct {
	UserID string
	Status OrderStatus
	Page   int
	Limit  int
}

// Normalize applies paging defaults, caps the limit and rejects unknown
// statuses.
func (f ListFilter) Normalize() (ListFilter, error) {
	if f.Status != "" && !f.Status.Valid() {
		return f, fmt.Errorf("invalid status %q", f.Status)
	}
	f.Page, f.Limit = generalDomain.NormalizePage(f.Page, f.Limit)

	return f, nil
}

type OrderPage struct {
	Orders     []Order                  `json:"orders"`
	Pagination generalDomain.Pagination `json:"pagination"`
}
