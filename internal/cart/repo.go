package cart

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/wardrobe-backend/pkg/db"
	"github.com/angelmondragon/wardrobe-backend/pkg/db/models"
	"github.com/angelmondragon/wardrobe-backend/pkg/enums"
)

// Repository is the cart persistence surface.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindActiveByUser(ctx context.Context, userID int64) (*models.Cart, error)
	FindActiveGuest(ctx context.Context, cartID int64) (*models.Cart, error)
	LockActive(ctx context.Context, cartID int64) (*models.Cart, error)
	Create(ctx context.Context, cart *models.Cart) error
	UpsertLine(ctx context.Context, line *models.LineItem) error
	UpdateLineQuantity(ctx context.Context, cartID, lineID int64, quantity int) (int64, error)
	DeleteLine(ctx context.Context, cartID, lineID int64) (int64, error)
	ListLines(ctx context.Context, cartID int64) ([]models.LineItem, error)
	LineRecords(ctx context.Context, cartID int64) ([]LineRecord, error)
	MarkMerged(ctx context.Context, guestCartID int64) (int64, error)
	Touch(ctx context.Context, cartID int64) error
}

// LineRecord is a line joined with its variant, item and option names.
type LineRecord struct {
	LineID            int64
	VariantID         int64
	Quantity          int
	UnitPriceCents    int64
	UnitDiscountCents *int64
	ItemID            int64
	ItemName          *string
	Image             *string
	CategoryName      *string
	Color             *string
	Size              *string
	Stock             *int
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindActiveByUser(ctx context.Context, userID int64) (*models.Cart, error) {
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

func (r *repository) FindActiveGuest(ctx context.Context, cartID int64) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id IS NULL AND status = ?", cartID, enums.CartStatusCart).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// LockActive takes the row lock on a cart that is still CART. Line writes hold
// it until commit so placement and merge wait for them, and vice versa.
func (r *repository) LockActive(ctx context.Context, cartID int64) (*models.Cart, error) {
	var cart models.Cart
	err := db.ForUpdate(r.db.WithContext(ctx)).
		Where("id = ? AND status = ?", cartID, enums.CartStatusCart).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// Create inserts the cart inside a savepoint so a unique violation on the
// active-cart index leaves an enclosing transaction usable.
func (r *repository) Create(ctx context.Context, cart *models.Cart) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(cart).Error
	})
}

// UpsertLine inserts the line or, when the cart already holds the variant,
// adds the quantity to the existing row. The stored price snapshot is kept.
// The existing quantity is table-qualified; Postgres has both line_items and
// excluded in scope inside DO UPDATE.
func (r *repository) UpsertLine(ctx context.Context, line *models.LineItem) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "cart_id"}, {Name: "variant_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"quantity":   gorm.Expr("line_items.quantity + excluded.quantity"),
				"updated_at": time.Now().UTC(),
			}),
		}).
		Create(line).Error
}

func (r *repository) UpdateLineQuantity(ctx context.Context, cartID, lineID int64, quantity int) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.LineItem{}).
		Where("id = ? AND cart_id = ?", lineID, cartID).
		Updates(map[string]any{"quantity": quantity, "updated_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}

func (r *repository) DeleteLine(ctx context.Context, cartID, lineID int64) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND cart_id = ?", lineID, cartID).
		Delete(&models.LineItem{})
	return res.RowsAffected, res.Error
}

func (r *repository) ListLines(ctx context.Context, cartID int64) ([]models.LineItem, error) {
	var lines []models.LineItem
	err := r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Order("id ASC").
		Find(&lines).Error
	return lines, err
}

func (r *repository) LineRecords(ctx context.Context, cartID int64) ([]LineRecord, error) {
	var rows []LineRecord
	err := r.db.WithContext(ctx).
		Table("line_items AS li").
		Select(`li.id AS line_id, li.variant_id, li.quantity, li.unit_price_cents, li.unit_discount_cents,
			v.item_id, i.name AS item_name, i.image, c.name AS category_name,
			co.name AS color, s.name AS size, v.stock`).
		Joins("JOIN variants v ON v.id = li.variant_id").
		Joins("JOIN items i ON i.id = v.item_id").
		Joins("LEFT JOIN categories c ON c.id = i.category_id").
		Joins("LEFT JOIN colors co ON co.id = v.color_id").
		Joins("LEFT JOIN sizes s ON s.id = v.size_id").
		Where("li.cart_id = ?", cartID).
		Order("li.id ASC").
		Scan(&rows).Error
	return rows, err
}

// MarkMerged moves an anonymous CART to MERGED. Zero rows means the cart was
// already merged, placed, owned by a user or never existed.
func (r *repository) MarkMerged(ctx context.Context, guestCartID int64) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ? AND user_id IS NULL AND status = ?", guestCartID, enums.CartStatusCart).
		Updates(map[string]any{"status": enums.CartStatusMerged, "updated_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}

func (r *repository) Touch(ctx context.Context, cartID int64) error {
	return r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", cartID).
		Update("updated_at", time.Now().UTC()).Error
}
