package models

import "time"

// PaymentStatus is a state of a payment.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentCaptured PaymentStatus = "captured"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// ProviderMock is the only payment provider; capture is simulated.
const ProviderMock = "mock"

// Payment is created for non-COD orders.
type Payment struct {
	ID         string        `gorm:"type:varchar(36);primaryKey" bson:"_id" json:"_id"`
	OrderID    string        `gorm:"type:varchar(36);not null;index" bson:"orderId" json:"orderId"`
	Provider   string        `gorm:"type:varchar(32);not null;default:'mock'" bson:"provider" json:"provider"`
	Amount     int64         `gorm:"not null" bson:"amount" json:"amount"`
	Status     PaymentStatus `gorm:"type:varchar(20);not null;default:'pending';index" bson:"status" json:"status"`
	TransID    string        `gorm:"type:varchar(128)" bson:"transId,omitempty" json:"transId,omitempty"`
	CapturedAt *time.Time    `bson:"capturedAt,omitempty" json:"capturedAt,omitempty"`
	FailedAt   *time.Time    `bson:"failedAt,omitempty" json:"failedAt,omitempty"`
	CreatedAt  time.Time     `gorm:"autoCreateTime" bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time     `gorm:"autoUpdateTime" bson:"updatedAt" json:"updatedAt"`
}

func (Payment) TableName() string { return "payments" }

// PaymentEvent is the message a payment provider callback delivers through SQS.
type PaymentEvent struct {
	EventType string `json:"event_type"`
	PaymentID string `json:"payment_id"`
	TransID   string `json:"trans_id"`
}

// Payment event types.
const (
	PaymentEventCaptured = "payment.captured"
	PaymentEventFailed   = "payment.failed"
)
