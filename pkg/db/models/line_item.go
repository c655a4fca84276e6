package models

import "time"

// LineItem is one variant's quantity inside a cart plus the price snapshot
// taken when the variant was first added.
type LineItem struct {
	ID                int64     `gorm:"column:id;primaryKey;autoIncrement"`
	CartID            int64     `gorm:"column:cart_id;not null;uniqueIndex:ux_line_items_cart_variant,priority:1"`
	VariantID         int64     `gorm:"column:variant_id;not null;uniqueIndex:ux_line_items_cart_variant,priority:2"`
	Quantity          int       `gorm:"column:quantity;not null;check:chk_line_items_quantity,quantity > 0"`
	UnitPriceCents    int64     `gorm:"column:unit_price_cents;not null"`
	UnitDiscountCents *int64    `gorm:"column:unit_discount_cents"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
