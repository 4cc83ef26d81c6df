package models

// PreviewRequest asks for a priced preview of the current cart.
type PreviewRequest struct {
	Address      ShippingAddress `json:"address"`
	DiscountCode string          `json:"discountCode"`
	FreeShipCode string          `json:"freeShipCode"`
}

// CheckoutPreview is the read-only pricing of a cart before ordering.
type CheckoutPreview struct {
	Items          []CartLine         `json:"items"`
	Subtotal       int64              `json:"subtotal"`
	Shipping       ShippingQuote      `json:"shipping"`
	OrderVoucher   *VoucherSuggestion `json:"orderVoucher,omitempty"`
	ShipVoucher    *VoucherSuggestion `json:"shipVoucher,omitempty"`
	OrderDiscount  int64              `json:"orderDiscount"`
	ShipDiscount   int64              `json:"shipDiscount"`
	OrderError     string             `json:"orderError,omitempty"`
	ShipError      string             `json:"shipError,omitempty"`
	NetShippingFee int64              `json:"netShippingFee"`
	Total          int64              `json:"total"`
}
