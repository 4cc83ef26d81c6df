package models

import "time"

// Inventory holds the stock counters of one product. Available is derived, never stored.
type Inventory struct {
	ProductID         string    `gorm:"type:varchar(36);primaryKey" bson:"productId" json:"productId"`
	Stock             int       `gorm:"not null;default:0" bson:"stock" json:"stock"`
	Reserved          int       `gorm:"not null;default:0" bson:"reserved" json:"reserved"`
	LowStockThreshold int       `gorm:"not null;default:0" bson:"lowStockThreshold" json:"lowStockThreshold"`
	CreatedAt         time.Time `gorm:"autoCreateTime" bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime;index" bson:"updatedAt" json:"updatedAt"`
}

func (Inventory) TableName() string { return "inventories" }

// Available is the quantity that can still be reserved.
func (i Inventory) Available() int {
	return i.Stock - i.Reserved
}

// IsLow reports whether stock fell under the configured threshold.
func (i Inventory) IsLow() bool {
	return i.Stock < i.LowStockThreshold
}

// InventoryView is the read shape of an inventory record, joined with product metadata on lists.
type InventoryView struct {
	Inventory
	Available int      `json:"available"`
	Name      string   `json:"ten,omitempty"`
	Price     int64    `json:"gia,omitempty"`
	Images    []string `json:"hinhAnh,omitempty"`
	Active    *bool    `json:"active,omitempty"`
}

// NewInventoryView derives the available quantity for responses.
func NewInventoryView(inv Inventory) InventoryView {
	return InventoryView{Inventory: inv, Available: inv.Available()}
}

// InventorySummary aggregates counters over the products matching a filter.
type InventorySummary struct {
	TotalSku       int64 `json:"totalSku"`
	TotalStock     int64 `json:"totalStock"`
	TotalReserved  int64 `json:"totalReserved"`
	TotalAvailable int64 `json:"totalAvailable"`
	LowCount       int64 `json:"lowCount"`
}

// StockMoveRequest is the admin payload for manual movements.
type StockMoveRequest struct {
	Qty  *int   `json:"qty" binding:"required"`
	Note string `json:"note" binding:"max=500"`
	Mode string `json:"mode"`
}

// ThresholdRequest updates the low stock threshold.
type ThresholdRequest struct {
	LowStockThreshold int `json:"lowStockThreshold"`
}
