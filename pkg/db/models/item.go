package models

import "time"

// Item is a shop item. Price and discount live here and are copied onto line
// items when a variant is added to a cart.
type Item struct {
	ID            int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Code          *string   `gorm:"column:code;type:text"`
	Name          *string   `gorm:"column:name;type:text"`
	Description   *string   `gorm:"column:description;type:text"`
	Image         *string   `gorm:"column:image;type:text"`
	PriceCents    int64     `gorm:"column:price_cents;not null"`
	DiscountCents *int64    `gorm:"column:discount_cents"`
	CategoryID    *int64    `gorm:"column:category_id;index"`
	BrandID       *int64    `gorm:"column:brand_id;index"`
	MaterialID    *int64    `gorm:"column:material_id;index"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
