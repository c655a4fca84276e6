package payloads

import "time"

// OrderLine is a single placed line with the price captured at add time.
type OrderLine struct {
	LineID            int64  `json:"line_id"`
	VariantID         int64  `json:"variant_id"`
	Quantity          int    `json:"quantity"`
	UnitPriceCents    int64  `json:"unit_price_cents"`
	UnitDiscountCents *int64 `json:"unit_discount_cents,omitempty"`
}

// OrderPlacedEvent is emitted when a cart transitions to PLACED.
type OrderPlacedEvent struct {
	OrderID    int64       `json:"order_id"`
	Code       string      `json:"code"`
	UserID     int64       `json:"user_id"`
	ItemCount  int         `json:"item_count"`
	TotalCents int64       `json:"total_cents"`
	PlacedAt   time.Time   `json:"placed_at"`
	Lines      []OrderLine `json:"lines"`
}

// CartMergedEvent is emitted when a guest cart is folded into a user cart.
type CartMergedEvent struct {
	GuestCartID int64 `json:"guest_cart_id"`
	UserCartID  int64 `json:"user_cart_id"`
	UserID      int64 `json:"user_id"`
	LinesMerged int   `json:"lines_merged"`
}
