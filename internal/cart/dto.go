package cart

import "github.com/angelmondragon/wardrobe-backend/pkg/money"

const (
	MessageItemAdded   = "Item added to your bag!"
	MessageLineUpdated = "Cart updated."
	MessageLineRemoved = "Item removed from your bag."

	notAvailable = "N/A"
)

// Resolution is the outcome of resolving an actor's writable cart.
// GuestToken is set only when a new guest token was minted.
type Resolution struct {
	CartID     int64
	GuestToken string
	Created    bool
}

// AddLineInput names a variant by item and option names.
type AddLineInput struct {
	ItemID   int64
	Color    string
	Size     string
	Quantity int
}

// MutationResult is returned by every line operation.
type MutationResult struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	CartID     int64  `json:"cart_id"`
	GuestToken string `json:"-"`
}

type CartLineView struct {
	LineID         int64        `json:"line_id"`
	ItemID         int64        `json:"item_id"`
	VariantID      int64        `json:"variant_id"`
	ProductName    string       `json:"product_name"`
	Quantity       int          `json:"quantity"`
	UnitPrice      money.Cents  `json:"unit_price"`
	UnitDiscount   *money.Cents `json:"unit_discount"`
	Color          string       `json:"color"`
	Size           string       `json:"size"`
	ImageURL       *string      `json:"image_url"`
	CategoryName   string       `json:"category_name"`
	AvailableStock *int         `json:"available_stock"`
	LineTotal      money.Cents  `json:"line_total"`
}

// CartView is the read model of a cart. CartID is nil when the actor has no
// active cart yet.
type CartView struct {
	CartID    *int64         `json:"cart_id"`
	Lines     []CartLineView `json:"lines"`
	ItemCount int            `json:"item_count"`
	Subtotal  money.Cents    `json:"subtotal"`
	Discount  money.Cents    `json:"discount"`
	Total     money.Cents    `json:"total"`
}

// MergeResult reports what a guest cart merge did.
type MergeResult struct {
	GuestCartID int64 `json:"guest_cart_id"`
	UserCartID  int64 `json:"user_cart_id"`
	LinesMerged int   `json:"lines_merged"`
	Merged      bool  `json:"merged"`
}
