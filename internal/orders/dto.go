package orders

import (
	"time"

	"github.com/angelmondragon/wardrobe-backend/pkg/enums"
	"github.com/angelmondragon/wardrobe-backend/pkg/money"
)

const guestName = "Guest"

// OrderSummary is one row of a user's order history.
type OrderSummary struct {
	OrderID   int64            `json:"order_id"`
	Code      *string          `json:"code"`
	Status    enums.CartStatus `json:"status"`
	PlacedAt  *time.Time       `json:"placed_at"`
	ItemCount int              `json:"item_count"`
	Total     money.Cents      `json:"total"`
}

// OrderList is a page of order summaries, newest first.
type OrderList struct {
	Orders     []OrderSummary `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

type OrderLineView struct {
	LineID       int64        `json:"line_id"`
	ItemID       int64        `json:"item_id"`
	VariantID    int64        `json:"variant_id"`
	ProductName  string       `json:"product_name"`
	Color        string       `json:"color"`
	Size         string       `json:"size"`
	ImageURL     *string      `json:"image_url"`
	Quantity     int          `json:"quantity"`
	UnitPrice    money.Cents  `json:"unit_price"`
	UnitDiscount *money.Cents `json:"unit_discount"`
	LineTotal    money.Cents  `json:"line_total"`
}

// OrderDetail is a single placed order with its lines.
type OrderDetail struct {
	OrderID   int64            `json:"order_id"`
	Code      *string          `json:"code"`
	Status    enums.CartStatus `json:"status"`
	PlacedAt  *time.Time       `json:"placed_at"`
	UserName  string           `json:"user_name"`
	Lines     []OrderLineView  `json:"lines"`
	ItemCount int              `json:"item_count"`
	Total     money.Cents      `json:"total"`
}
