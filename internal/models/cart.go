package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineItem is one product entry within a cart. Cost is the accumulated
// base-currency cost captured at add time, not recomputed from the catalog.
// At most one LineItem exists per (cart, product) pair.
type LineItem struct {
	ID        uuid.UUID       `json:"id"`
	CartID    uuid.UUID       `json:"cart_id"`
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  int64           `json:"quantity"`
	Cost      decimal.Decimal `json:"cost"`
	Selected  bool            `json:"selected"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type Cart struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	Items     []LineItem `json:"items"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// LineItemView is a line item joined to catalog data, with its cost converted
// to the viewing user's regional currency.
type LineItemView struct {
	ID            uuid.UUID       `json:"id"`
	ProductID     uuid.UUID       `json:"product_id"`
	ProductName   string          `json:"product_name"`
	Quantity      int64           `json:"quantity"`
	StockQuantity int64           `json:"stock_quantity"`
	Cost          decimal.Decimal `json:"cost"`
	Currency      string          `json:"currency"`
	Selected      bool            `json:"selected"`
}

type CartView struct {
	ID       uuid.UUID       `json:"id"`
	UserID   uuid.UUID       `json:"user_id"`
	Currency string          `json:"currency"`
	Items    []LineItemView  `json:"items"`
	Total    decimal.Decimal `json:"total"`
}
