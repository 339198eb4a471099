package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductSnapshot is a catalog item frozen at the moment it was added to a cart.
type ProductSnapshot struct {
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	ImageRef  string          `json:"image_ref,omitempty"`
	Category  string          `json:"category,omitempty"`
	Notes     string          `json:"notes,omitempty"`
}

// CartLine is one entry in a cart. Product is nil when the snapshot could not be resolved.
type CartLine struct {
	ID       string           `json:"id"`
	Product  *ProductSnapshot `json:"product"`
	Quantity int              `json:"quantity"`
}

// CartTotals holds the derived money values of a cart.
type CartTotals struct {
	Subtotal  decimal.Decimal `json:"subtotal"`
	Tax       decimal.Decimal `json:"tax"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"item_count"`
}

// Cart is the persisted form of a session cart.
type Cart struct {
	SessionID string     `json:"session_id"`
	Lines     []CartLine `json:"lines"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// CartView is what the cart endpoints return.
type CartView struct {
	Lines    []CartLine `json:"lines"`
	Totals   CartTotals `json:"totals"`
	Currency string     `json:"currency"`
}

// AddCartItemRequest adds a catalog product to the cart.
type AddCartItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity"`
}

// AddCustomItemRequest adds an ad-hoc item such as a custom cake.
type AddCustomItemRequest struct {
	Name     string          `json:"name" binding:"required"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	Category string          `json:"category"`
	ImageRef string          `json:"image_ref"`
	Notes    string          `json:"notes"`
}

// UpdateCartItemRequest sets a line quantity. Zero or less removes the line.
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity"`
}
