package models

import "time"

// Shipment statuses.
const (
	ShipmentStatusCreated   = "created"
	ShipmentStatusPicking   = "picking"
	ShipmentStatusInTransit = "in_transit"
	ShipmentStatusDelivered = "delivered"
	ShipmentStatusFailed    = "failed"
	ShipmentStatusCancelled = "cancelled"
)

// CarrierInHouse is the only carrier; fees are estimated, not quoted by a carrier API.
const CarrierInHouse = "INHOUSE"

// Shipment is created once per order.
type Shipment struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" bson:"_id" json:"_id"`
	OrderID   string    `gorm:"type:varchar(36);not null;uniqueIndex" bson:"orderId" json:"orderId"`
	Carrier   string    `gorm:"type:varchar(32);not null;default:'INHOUSE'" bson:"carrier" json:"carrier"`
	Code      string    `gorm:"type:varchar(64);not null;uniqueIndex" bson:"code" json:"code"`
	Fee       int64     `gorm:"not null;default:0" bson:"fee" json:"fee"`
	Status    string    `gorm:"type:varchar(20);not null;default:'created';index" bson:"status" json:"status"`
	CreatedAt time.Time `gorm:"autoCreateTime" bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" bson:"updatedAt" json:"updatedAt"`
}

func (Shipment) TableName() string { return "shipments" }

// ShippingAddress is the part of an address the fee estimate depends on.
type ShippingAddress struct {
	Province string `json:"province"`
	District string `json:"district,omitempty"`
	Ward     string `json:"ward,omitempty"`
}

// ShippingItem is one weighed line of a shipment estimate.
type ShippingItem struct {
	ProductID string  `json:"productId,omitempty"`
	Qty       int     `json:"qty" binding:"gte=0"`
	WeightKg  float64 `json:"weightKg,omitempty" binding:"gte=0"`
}

// ShippingQuote is the estimator's answer.
type ShippingQuote struct {
	Fee     int64  `json:"fee"`
	Carrier string `json:"carrier"`
	Method  string `json:"method"`
}

// ShippingEstimateRequest is the payload of the estimate endpoint.
type ShippingEstimateRequest struct {
	Address ShippingAddress `json:"address"`
	Items   []ShippingItem  `json:"items" binding:"dive"`
}
