package checkout

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/wardrobe-backend/pkg/db"
	"github.com/angelmondragon/wardrobe-backend/pkg/db/models"
	"github.com/angelmondragon/wardrobe-backend/pkg/enums"
)

// Repository exposes the queries used while placing an order.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindActiveCart(ctx context.Context, userID int64) (*models.Cart, error)
	LockCart(ctx context.Context, cartID int64) (bool, error)
	CountLines(ctx context.Context, cartID int64) (int64, error)
	PlacementLines(ctx context.Context, cartID int64) ([]PlacementLine, error)
	LockVariants(ctx context.Context, variantIDs []int64) (map[int64]models.Variant, error)
	DecrementStock(ctx context.Context, variantID int64, qty int) (int64, error)
	MarkPlaced(ctx context.Context, cartID int64, code string, placedAt time.Time) (int64, error)
}

// PlacementLine is a cart line with the item name used in stock errors.
type PlacementLine struct {
	LineID            int64
	VariantID         int64
	Quantity          int
	UnitPriceCents    int64
	UnitDiscountCents *int64
	ItemName          *string
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a checkout repository backed by the provided DB.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{db: conn}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindActiveCart(ctx context.Context, userID int64) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, enums.CartStatusCart).
		Order("id ASC").
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// LockCart locks the cart row for the rest of the transaction and reports
// whether it is still CART. Line writers take the same lock.
func (r *repository) LockCart(ctx context.Context, cartID int64) (bool, error) {
	var carts []models.Cart
	err := db.ForUpdate(r.db.WithContext(ctx)).
		Where("id = ? AND status = ?", cartID, enums.CartStatusCart).
		Limit(1).
		Find(&carts).Error
	return len(carts) == 1, err
}

func (r *repository) CountLines(ctx context.Context, cartID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.LineItem{}).
		Where("cart_id = ?", cartID).
		Count(&count).Error
	return count, err
}

func (r *repository) PlacementLines(ctx context.Context, cartID int64) ([]PlacementLine, error) {
	var lines []PlacementLine
	err := r.db.WithContext(ctx).
		Table("line_items AS li").
		Select(`li.id AS line_id, li.variant_id, li.quantity, li.unit_price_cents,
			li.unit_discount_cents, i.name AS item_name`).
		Joins("JOIN variants v ON v.id = li.variant_id").
		Joins("JOIN items i ON i.id = v.item_id").
		Where("li.cart_id = ?", cartID).
		Order("li.variant_id ASC").
		Scan(&lines).Error
	return lines, err
}

// LockVariants reads the variants with row locks taken in id order so
// concurrent placements acquire them in the same sequence.
func (r *repository) LockVariants(ctx context.Context, variantIDs []int64) (map[int64]models.Variant, error) {
	out := make(map[int64]models.Variant, len(variantIDs))
	if len(variantIDs) == 0 {
		return out, nil
	}
	var rows []models.Variant
	err := db.ForUpdate(r.db.WithContext(ctx)).
		Where("id IN ?", variantIDs).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

// DecrementStock subtracts qty only while enough stock remains. Zero rows
// affected means the stock is no longer sufficient.
func (r *repository) DecrementStock(ctx context.Context, variantID int64, qty int) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Variant{}).
		Where("id = ? AND stock IS NOT NULL AND stock >= ?", variantID, qty).
		Update("stock", gorm.Expr("stock - ?", qty))
	return res.RowsAffected, res.Error
}

func (r *repository) MarkPlaced(ctx context.Context, cartID int64, code string, placedAt time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ? AND status = ?", cartID, enums.CartStatusCart).
		Updates(map[string]any{
			"status":     enums.CartStatusPlaced,
			"code":       code,
			"placed_at":  placedAt,
			"updated_at": placedAt,
		})
	return res.RowsAffected, res.Error
}
