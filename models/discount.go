package models

import "time"

// DiscountTarget selects the amount a voucher discounts.
type DiscountTarget string

const (
	TargetOrder    DiscountTarget = "order"
	TargetShipping DiscountTarget = "shipping"
)

// DiscountType selects how the discount amount is computed.
type DiscountType string

const (
	DiscountPercent DiscountType = "percent"
	DiscountFixed   DiscountType = "fixed"
)

// Discount is a voucher. Code is stored upper-cased and matched case-insensitively.
type Discount struct {
	ID           string         `gorm:"type:varchar(36);primaryKey" bson:"_id" json:"_id"`
	Code         string         `gorm:"type:varchar(64);uniqueIndex;not null" bson:"code" json:"code"`
	Type         DiscountType   `gorm:"type:varchar(16);not null" bson:"type" json:"type"`
	Value        float64        `gorm:"not null" bson:"value" json:"value"`
	MaxDiscount  *int64         `bson:"maxDiscount,omitempty" json:"maxDiscount,omitempty"`
	MinOrder     int64          `gorm:"not null;default:0" bson:"minOrder" json:"minOrder"`
	StartAt      *time.Time     `bson:"startAt,omitempty" json:"startAt,omitempty"`
	EndAt        *time.Time     `bson:"endAt,omitempty" json:"endAt,omitempty"`
	UsageLimit   int            `gorm:"not null;default:0" bson:"usageLimit" json:"usageLimit"` // 0 = unlimited
	UsedCount    int            `gorm:"not null;default:0" bson:"usedCount" json:"usedCount"`
	Target       DiscountTarget `gorm:"type:varchar(16);not null;default:'order';index" bson:"target" json:"target"`
	IsPublic     bool           `gorm:"not null;default:false;index" bson:"isPublic" json:"isPublic"`
	PerUserLimit int            `gorm:"not null;default:0" bson:"perUserLimit" json:"perUserLimit"` // 0 = unlimited
	Active       bool           `gorm:"not null;default:true;index" bson:"active" json:"active"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime" bson:"updatedAt" json:"updatedAt"`
}

func (Discount) TableName() string { return "discounts" }

// InWindow reports whether now falls inside the optional [StartAt, EndAt] window.
func (d *Discount) InWindow(now time.Time) bool {
	if d.StartAt != nil && now.Before(*d.StartAt) {
		return false
	}
	if d.EndAt != nil && now.After(*d.EndAt) {
		return false
	}
	return true
}

// Exhausted reports whether the global usage cap has been reached.
func (d *Discount) Exhausted() bool {
	return d.UsageLimit > 0 && d.UsedCount >= d.UsageLimit
}

// DiscountUsage records one successful application of a voucher.
type DiscountUsage struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" bson:"_id" json:"_id"`
	Code      string    `gorm:"type:varchar(64);not null;index:idx_discount_usages_code_user,priority:1" bson:"code" json:"code"`
	UserID    string    `gorm:"type:varchar(64);not null;index:idx_discount_usages_code_user,priority:2" bson:"userId" json:"userId"`
	OrderID   string    `gorm:"type:varchar(36);index" bson:"orderId" json:"orderId"`
	Amount    int64     `gorm:"not null;default:0" bson:"amount" json:"amount"`
	CreatedAt time.Time `gorm:"autoCreateTime" bson:"createdAt" json:"createdAt"`
}

func (DiscountUsage) TableName() string { return "discount_usages" }

// CreateDiscountRequest is the admin payload for a new voucher.
type CreateDiscountRequest struct {
	Code         string         `json:"code" binding:"required,min=3,max=64"`
	Type         DiscountType   `json:"type" binding:"required,oneof=percent fixed"`
	Value        float64        `json:"value" binding:"gte=0"`
	MaxDiscount  *int64         `json:"maxDiscount" binding:"omitempty,gte=0"`
	MinOrder     int64          `json:"minOrder" binding:"gte=0"`
	StartAt      *time.Time     `json:"startAt"`
	EndAt        *time.Time     `json:"endAt"`
	UsageLimit   int            `json:"usageLimit" binding:"gte=0"`
	PerUserLimit int            `json:"perUserLimit" binding:"gte=0"`
	Target       DiscountTarget `json:"target" binding:"omitempty,oneof=order shipping"`
	IsPublic     bool           `json:"isPublic"`
}

// ValidateDiscountRequest asks whether a code applies to the given amounts.
type ValidateDiscountRequest struct {
	Code           string         `json:"code" binding:"required"`
	Kind           DiscountTarget `json:"kind" binding:"omitempty,oneof=order shipping"`
	Amount         int64          `json:"amount" binding:"gte=0"`
	OrderAmount    int64          `json:"orderAmount" binding:"gte=0"`
	ShippingAmount int64          `json:"shippingAmount" binding:"gte=0"`
}

// DiscountResult is the outcome of validating one code. It never mutates state.
type DiscountResult struct {
	Valid    bool           `json:"valid"`
	Code     string         `json:"code"`
	Discount int64          `json:"discount"`
	Reason   string         `json:"reason,omitempty"`
	Message  string         `json:"message,omitempty"`
	Target   DiscountTarget `json:"target,omitempty"`
	Voucher  *Discount      `json:"-"`
}

// VoucherSuggestion is one entry of the vouchers offered to a user.
type VoucherSuggestion struct {
	Code     string         `json:"code"`
	Type     DiscountType   `json:"type"`
	Target   DiscountTarget `json:"target"`
	Label    string         `json:"label"`
	Preview  int64          `json:"preview"`
	MinOrder int64          `json:"minOrder"`
	Missing  int64          `json:"missing,omitempty"`
}

// QuoteRequest prices a subtotal and shipping fee with optional codes.
type QuoteRequest struct {
	Subtotal     int64  `json:"subtotal" binding:"gte=0"`
	ShippingFee  int64  `json:"shippingFee" binding:"gte=0"`
	DiscountCode string `json:"discountCode"`
	FreeShipCode string `json:"freeShipCode"`
}

// Quote is the priced result of a QuoteRequest.
type Quote struct {
	Subtotal      int64  `json:"subtotal"`
	ShippingFee   int64  `json:"shippingFee"`
	OrderDiscount int64  `json:"orderDiscount"`
	ShipDiscount  int64  `json:"shipDiscount"`
	OrderError    string `json:"orderError,omitempty"`
	ShipError     string `json:"shipError,omitempty"`
	Total         int64  `json:"total"`
}
