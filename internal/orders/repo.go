package orders

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/wardrobe-backend/internal/repo"
	"github.com/angelmondragon/wardrobe-backend/pkg/db/models"
	"github.com/angelmondragon/wardrobe-backend/pkg/enums"
	"github.com/angelmondragon/wardrobe-backend/pkg/pagination"
)

// Repository reads placed orders. Orders are cart rows that left the CART state.
type Repository interface {
	ListOrders(ctx context.Context, userID int64, cursor *pagination.Cursor, limit int) ([]models.Cart, error)
	OrderTotals(ctx context.Context, orderIDs []int64) (map[int64]OrderTotals, error)
	FindOrder(ctx context.Context, userID, orderID int64) (*models.Cart, error)
	OrderLines(ctx context.Context, orderID int64) ([]LineRecord, error)
	UserName(ctx context.Context, userID int64) (string, error)
}

// OrderTotals aggregates the lines of one order.
type OrderTotals struct {
	OrderID    int64
	ItemCount  int
	TotalCents int64
}

type LineRecord struct {
	LineID            int64
	ItemID            int64
	VariantID         int64
	ItemName          *string
	Image             *string
	Color             *string
	Size              *string
	Quantity          int
	UnitPriceCents    int64
	UnitDiscountCents *int64
}

type repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) ListOrders(ctx context.Context, userID int64, cursor *pagination.Cursor, limit int) ([]models.Cart, error) {
	query := r.DB(ctx).
		Model(&models.Cart{}).
		Where("user_id = ? AND status <> ?", userID, enums.CartStatusCart)
	if cursor != nil {
		query = query.Where("(placed_at < ?) OR (placed_at = ? AND id < ?)", cursor.At, cursor.At, cursor.ID)
	}
	var rows []models.Cart
	err := query.
		Order("placed_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) OrderTotals(ctx context.Context, orderIDs []int64) (map[int64]OrderTotals, error) {
	out := make(map[int64]OrderTotals, len(orderIDs))
	if len(orderIDs) == 0 {
		return out, nil
	}
	var rows []OrderTotals
	err := r.DB(ctx).
		Table("line_items").
		Select(`cart_id AS order_id, COALESCE(SUM(quantity), 0) AS item_count,
			COALESCE(SUM(quantity * (unit_price_cents - COALESCE(unit_discount_cents, 0))), 0) AS total_cents`).
		Where("cart_id IN ?", orderIDs).
		Group("cart_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.OrderID] = row
	}
	return out, nil
}

func (r *repository) FindOrder(ctx context.Context, userID, orderID int64) (*models.Cart, error) {
	var cart models.Cart
	err := r.DB(ctx).
		Where("id = ? AND user_id = ? AND status <> ?", orderID, userID, enums.CartStatusCart).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *repository) OrderLines(ctx context.Context, orderID int64) ([]LineRecord, error) {
	var rows []LineRecord
	err := r.DB(ctx).
		Table("line_items AS li").
		Select(`li.id AS line_id, v.item_id, li.variant_id, i.name AS item_name, i.image,
			co.name AS color, s.name AS size, li.quantity, li.unit_price_cents, li.unit_discount_cents`).
		Joins("JOIN variants v ON v.id = li.variant_id").
		Joins("JOIN items i ON i.id = v.item_id").
		Joins("LEFT JOIN colors co ON co.id = v.color_id").
		Joins("LEFT JOIN sizes s ON s.id = v.size_id").
		Where("li.cart_id = ?", orderID).
		Order("li.id ASC").
		Scan(&rows).Error
	return rows, err
}

func (r *repository) UserName(ctx context.Context, userID int64) (string, error) {
	var user models.User
	err := r.DB(ctx).
		Select("id", "name").
		First(&user, userID).Error
	if err != nil {
		return "", err
	}
	return user.Name, nil
}
