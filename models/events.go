package models

import "time"

// Event types published to SNS.
const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
	EventDiscountApplied    = "discount.applied"
	EventInventoryLowStock  = "inventory.low_stock"
)

// OrderEvent is published when an order is created or changes status.
type OrderEvent struct {
	EventType string      `json:"event_type"`
	OrderID   string      `json:"order_id"`
	UserID    string      `json:"user_id"`
	From      OrderStatus `json:"from,omitempty"`
	Status    OrderStatus `json:"status"`
	Payable   int64       `json:"payable"`
	Items     []OrderItem `json:"items,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// DiscountAppliedEvent is published when a voucher is committed to an order.
type DiscountAppliedEvent struct {
	EventType string         `json:"event_type"`
	Code      string         `json:"code"`
	Target    DiscountTarget `json:"target"`
	OrderID   string         `json:"order_id"`
	UserID    string         `json:"user_id"`
	Amount    int64          `json:"amount"`
	Timestamp time.Time      `json:"timestamp"`
}

// LowStockEvent is published when a movement leaves stock under its threshold.
type LowStockEvent struct {
	EventType         string    `json:"event_type"`
	ProductID         string    `json:"product_id"`
	Stock             int       `json:"stock"`
	Reserved          int       `json:"reserved"`
	LowStockThreshold int       `json:"low_stock_threshold"`
	Timestamp         time.Time `json:"timestamp"`
}
