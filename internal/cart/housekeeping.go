package cart

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/wardrobe-backend/pkg/db/models"
	"github.com/angelmondragon/wardrobe-backend/pkg/enums"
)

// Housekeeping removes cart rows that no guest token can reach anymore.
type Housekeeping struct {
	db *gorm.DB
}

func NewHousekeeping(db *gorm.DB) *Housekeeping {
	return &Housekeeping{db: db}
}

func (h *Housekeeping) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return h.db
}

// DeleteStaleGuestCarts drops anonymous CART rows idle since before cutoff,
// lines first. It returns the number of carts and lines removed.
func (h *Housekeeping) DeleteStaleGuestCarts(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, int64, error) {
	conn := h.conn(tx).WithContext(ctx)
	stale := conn.Model(&models.Cart{}).
		Select("id").
		Where("user_id IS NULL AND status = ? AND updated_at < ?", enums.CartStatusCart, cutoff)

	lines := conn.Where("cart_id IN (?)", stale).Delete(&models.LineItem{})
	if lines.Error != nil {
		return 0, 0, lines.Error
	}
	carts := conn.
		Where("user_id IS NULL AND status = ? AND updated_at < ?", enums.CartStatusCart, cutoff).
		Delete(&models.Cart{})
	if carts.Error != nil {
		return 0, lines.RowsAffected, carts.Error
	}
	return carts.RowsAffected, lines.RowsAffected, nil
}

// PurgeMergedLines removes the leftover lines of guest carts merged before cutoff.
func (h *Housekeeping) PurgeMergedLines(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	conn := h.conn(tx).WithContext(ctx)
	merged := conn.Model(&models.Cart{}).
		Select("id").
		Where("status = ? AND updated_at < ?", enums.CartStatusMerged, cutoff)
	res := conn.Where("cart_id IN (?)", merged).Delete(&models.LineItem{})
	return res.RowsAffected, res.Error
}
