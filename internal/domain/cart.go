package domain

import (
	"time"

	"github.com/google/uuid"
)

// CartItem is one line of a user's cart. A user has at most one line per
// product; adding the same product again merges by summing quantities.
type CartItem struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	ProductID uuid.UUID `json:"product_id" db:"product_id"`
	Quantity  int       `json:"quantity" db:"quantity"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CartLine is a cart item joined with live product data. Line totals are
// always computed from the current product price, unlike order lines which
// snapshot the price at purchase time.
type CartLine struct {
	ItemID      uuid.UUID `json:"item_id"`
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name"`
	UnitPrice   float64   `json:"unit_price"`
	Quantity    int       `json:"quantity"`
	Stock       int       `json:"-"`
	LineTotal   float64   `json:"line_total"`
}

// CartView is the computed view of a user's cart
type CartView struct {
	Lines []CartLine `json:"lines"`
	Total float64    `json:"total"`
}
