package models

import "time"

// CartItem is one line of a cart. A product appears at most once per cart.
type CartItem struct {
	UserID    string `gorm:"type:varchar(64);primaryKey" bson:"-" json:"-"`
	ProductID string `gorm:"type:varchar(36);primaryKey" bson:"productId" json:"productId"`
	Qty       int    `gorm:"not null" bson:"qty" json:"qty"`
	Position  int    `gorm:"not null;default:0" bson:"-" json:"-"`
}

func (CartItem) TableName() string { return "cart_items" }

// Cart is the per-user list of lines. It is emptied, never deleted, after checkout.
type Cart struct {
	UserID    string     `gorm:"type:varchar(64);primaryKey" bson:"userId" json:"userId"`
	Items     []CartItem `gorm:"foreignKey:UserID;references:UserID" bson:"items" json:"items"`
	CreatedAt time.Time  `gorm:"autoCreateTime" bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" bson:"updatedAt" json:"updatedAt"`
}

func (Cart) TableName() string { return "carts" }

// IndexOf returns the position of productID in the cart, or -1.
func (c *Cart) IndexOf(productID string) int {
	for i, it := range c.Items {
		if it.ProductID == productID {
			return i
		}
	}
	return -1
}

// CartLine is a cart line joined with live product data.
type CartLine struct {
	ProductID string   `json:"productId"`
	Qty       int      `json:"qty"`
	Product   *Product `json:"product"`
	Available int      `json:"available"`
	LineTotal int64    `json:"lineTotal"`
}

// CartView is the response of the cart read operation.
type CartView struct {
	Items    []CartLine `json:"items"`
	Subtotal int64      `json:"subtotal"`
}

// AddCartItemRequest adds qty of a product to the cart.
type AddCartItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Qty       *int   `json:"qty"`
}

// UpdateCartItemRequest sets the quantity of a line; zero removes it.
type UpdateCartItemRequest struct {
	Qty *int `json:"qty" binding:"required"`
}
