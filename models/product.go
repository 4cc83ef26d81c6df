package models

import "time"

// DefaultItemWeightKg is used by the shipping estimator when a product has no weight.
const DefaultItemWeightKg = 0.2

// Product is the catalogue entry that carts, inventory and order snapshots point at.
type Product struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" bson:"_id" json:"_id"`
	Name      string    `gorm:"type:varchar(255);not null;index" bson:"ten" json:"ten"`
	Price     int64     `gorm:"not null" bson:"gia" json:"gia"`
	Images    []string  `gorm:"type:jsonb;serializer:json" bson:"hinhAnh" json:"hinhAnh"`
	WeightKg  float64   `gorm:"not null;default:0" bson:"weightKg,omitempty" json:"weightKg,omitempty"`
	Active    bool      `gorm:"not null;default:true;index" bson:"active" json:"active"`
	CreatedAt time.Time `gorm:"autoCreateTime" bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" bson:"updatedAt" json:"updatedAt"`
}

func (Product) TableName() string { return "products" }

// FirstImage returns the image copied into order snapshots.
func (p *Product) FirstImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// ProductRequest is the admin payload for creating or updating a product.
type ProductRequest struct {
	Name     string   `json:"ten" binding:"required,min=1,max=255"`
	Price    int64    `json:"gia" binding:"gte=0"`
	Images   []string `json:"hinhAnh"`
	WeightKg float64  `json:"weightKg" binding:"gte=0"`
	Active   *bool    `json:"active"`
}
