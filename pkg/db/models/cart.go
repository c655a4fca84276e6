package models

import (
	"time"

	"github.com/angelmondragon/wardrobe-backend/pkg/enums"
)

// Cart is the shared cart and order row. Status CART is mutable; PLACED and
// MERGED are terminal.
type Cart struct {
	ID        int64            `gorm:"column:id;primaryKey;autoIncrement"`
	UserID    *int64           `gorm:"column:user_id;index"`
	Status    enums.CartStatus `gorm:"column:status;type:text;not null;default:'CART'"`
	Code      *string          `gorm:"column:code;type:text;uniqueIndex:ux_carts_code"`
	PlacedAt  *time.Time       `gorm:"column:placed_at"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time        `gorm:"column:updated_at;autoUpdateTime"`
	Lines     []LineItem       `gorm:"foreignKey:CartID"`
}
