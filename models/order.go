package models

import "time"

// OrderStatus is a state of the order lifecycle.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderShipping  OrderStatus = "shipping"
	OrderDelivered OrderStatus = "delivered"
	OrderFailed    OrderStatus = "failed"
	OrderCancelled OrderStatus = "cancelled"
)

// PaymentMethodCOD is the cash-on-delivery payment method.
const PaymentMethodCOD = "cod"

// OrderItem is a frozen copy of a product line taken when the order was created.
type OrderItem struct {
	ID        string `gorm:"type:varchar(36);primaryKey" bson:"-" json:"-"`
	OrderID   string `gorm:"type:varchar(36);not null;index" bson:"-" json:"-"`
	ProductID string `gorm:"type:varchar(36);not null" bson:"productId" json:"productId"`
	Name      string `gorm:"type:varchar(255)" bson:"ten" json:"ten"`
	Price     int64  `gorm:"not null" bson:"gia" json:"gia"`
	Qty       int    `gorm:"not null" bson:"qty" json:"qty"`
	Image     string `gorm:"type:varchar(1024)" bson:"hinhAnh" json:"hinhAnh"`
}

func (OrderItem) TableName() string { return "order_items" }

// ShipInfo is the normalised delivery address snapshot.
type ShipInfo struct {
	Name    string `gorm:"type:varchar(255)" bson:"ten" json:"ten"`
	Phone   string `gorm:"type:varchar(32)" bson:"sdt" json:"sdt"`
	Address string `gorm:"type:text" bson:"diaChi" json:"diaChi"`
	Note    string `gorm:"type:text" bson:"ghiChu" json:"ghiChu"`
}

// Order has an immutable item snapshot and a mutable status.
type Order struct {
	ID             string      `gorm:"type:varchar(36);primaryKey" bson:"_id" json:"_id"`
	UserID         string      `gorm:"type:varchar(64);not null;index" bson:"userId" json:"userId"`
	Items          []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" bson:"items" json:"items"`
	Subtotal       int64       `gorm:"not null;default:0" bson:"tongTien" json:"tongTien"`
	DiscountCode   string      `gorm:"type:varchar(64)" bson:"discountCode,omitempty" json:"discountCode,omitempty"`
	DiscountAmount int64       `gorm:"not null;default:0" bson:"discountAmount" json:"discountAmount"`
	FreeShipCode   string      `gorm:"type:varchar(64)" bson:"freeShipCode,omitempty" json:"freeShipCode,omitempty"`
	ShippingFee    int64       `gorm:"not null;default:0" bson:"shippingFee" json:"shippingFee"`
	PaymentMethod  string      `gorm:"type:varchar(32);not null;default:'cod'" bson:"paymentMethod" json:"paymentMethod"`
	ShipInfo       ShipInfo    `gorm:"embedded;embeddedPrefix:ship_" bson:"thongTinNhanHang" json:"thongTinNhanHang"`
	Status         OrderStatus `gorm:"type:varchar(20);not null;default:'pending';index" bson:"status" json:"status"`
	CreatedAt      time.Time   `gorm:"autoCreateTime;index" bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time   `gorm:"autoUpdateTime" bson:"updatedAt" json:"updatedAt"`
}

func (Order) TableName() string { return "orders" }

// Payable is the amount owed: subtotal minus discount plus shipping, floored at zero.
func (o *Order) Payable() int64 {
	p := o.Subtotal - o.DiscountAmount + o.ShippingFee
	if p < 0 {
		return 0
	}
	return p
}

// ItemsCount is the total quantity over all lines.
func (o *Order) ItemsCount() int {
	n := 0
	for _, it := range o.Items {
		n += it.Qty
	}
	return n
}

// OrderView is an order with its derived payable amount.
type OrderView struct {
	*Order
	Payable int64 `json:"payable"`
}

// NewOrderView computes the payable amount for a response.
func NewOrderView(o *Order) OrderView {
	return OrderView{Order: o, Payable: o.Payable()}
}

// OrderSummary is one row of the admin order list.
type OrderSummary struct {
	ID             string      `json:"_id"`
	UserID         string      `json:"userId"`
	CreatedAt      time.Time   `json:"createdAt"`
	Status         OrderStatus `json:"status"`
	PaymentMethod  string      `json:"paymentMethod"`
	Subtotal       int64       `json:"tongTien"`
	DiscountAmount int64       `json:"discountAmount"`
	ShippingFee    int64       `json:"shippingFee"`
	ItemsCount     int         `json:"itemsCount"`
	ShippingTo     ShipInfo    `json:"shippingTo"`
	Payable        int64       `json:"payable"`
}

// NewOrderSummary builds the admin list row for o.
func NewOrderSummary(o *Order) OrderSummary {
	return OrderSummary{
		ID:             o.ID,
		UserID:         o.UserID,
		CreatedAt:      o.CreatedAt,
		Status:         o.Status,
		PaymentMethod:  o.PaymentMethod,
		Subtotal:       o.Subtotal,
		DiscountAmount: o.DiscountAmount,
		ShippingFee:    o.ShippingFee,
		ItemsCount:     o.ItemsCount(),
		ShippingTo:     o.ShipInfo,
		Payable:        o.Payable(),
	}
}

// OrderDetail is the admin view of one order.
type OrderDetail struct {
	OrderView
	ShippingTo ShipInfo  `json:"shippingTo"`
	Payments   []Payment `json:"payments"`
	Shipment   *Shipment `json:"shipment"`
}

// AddressInput accepts both the saved-address shape and free-form checkout fields.
type AddressInput struct {
	Receiver    string `json:"receiver"`
	Phone       string `json:"phone"`
	AddressLine string `json:"address_line"`
	Ward        string `json:"ward"`
	District    string `json:"district"`
	Province    string `json:"province"`
	Note        string `json:"note"`

	Ten     string `json:"ten"`
	Name    string `json:"name"`
	Sdt     string `json:"sdt"`
	DiaChi  string `json:"diaChi"`
	Address string `json:"address"`
	GhiChu  string `json:"ghiChu"`
}

// CreateOrderRequest is the checkout payload.
type CreateOrderRequest struct {
	DiscountCode  string        `json:"discountCode" binding:"max=64"`
	FreeShipCode  string        `json:"freeShipCode" binding:"max=64"`
	ShippingFee   int64         `json:"shippingFee" binding:"gte=0"`
	PaymentMethod string        `json:"paymentMethod" binding:"omitempty,max=32"`
	ShipInfo      *AddressInput `json:"thongTinNhanHang"`
	Address       *AddressInput `json:"address"`
}

// OrderFilter narrows the admin order list.
type OrderFilter struct {
	Query  string
	Status OrderStatus
	Page   int
	Limit  int
}

// PageMeta is the pagination block returned by list endpoints.
type PageMeta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
	HasMore    bool  `json:"has_more"`
}

// NewPageMeta computes total pages and whether more pages follow.
func NewPageMeta(page, limit int, total int64) PageMeta {
	var pages int64
	if limit > 0 {
		pages = (total + int64(limit) - 1) / int64(limit)
	}
	return PageMeta{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: pages,
		HasMore:    total > int64(page*limit),
	}
}
