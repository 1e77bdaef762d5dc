package domain

import "encoding/json"

const (
	TopicOrderEvents   = "order_events"
	TopicProductEvents = "product_events"
)

const (
	EventOrderCreated           = "OrderCreated"
	EventOrderCancelled         = "OrderCancelled"
	EventStockReservationFailed = "StockReservationFailed"
)

// EventWrapper is the message value written by the outbox worker.
type EventWrapper struct {
	EventID string          `json:"event_id"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// MaxItemQuantity bounds a single order line so summed quantities stay far
// from int64 overflow.
const MaxItemQuantity int64 = 1_000_000

type OrderItem struct {
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
}

type OrderCreatedEvent struct {
	OrderID string      `json:"order_id"`
	UserID  string      `json:"user_id"`
	Items   []OrderItem `json:"items"`
}

type OrderCancelledEvent struct {
	OrderID string      `json:"order_id"`
	UserID  string      `json:"user_id"`
	Items   []OrderItem `json:"items"`
}

type StockReservationFailedEvent struct {
	OrderID   string `json:"order_id"`
	ProductID string `json:"product_id"`
	Available int64  `json:"available"`
	Requested int64  `json:"requested"`
}
