package catalog

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/wardrobe-backend/internal/repo"
	"github.com/angelmondragon/wardrobe-backend/pkg/enums"
)

// Repository reads the catalog tables. It never writes.
type Repository interface {
	FindVariant(ctx context.Context, itemID int64, color, size string) (*VariantRecord, error)
	ListItems(ctx context.Context, audience enums.Audience, filters ProductFilters, limit, offset int) ([]ItemRecord, error)
	FindItem(ctx context.Context, itemID int64) (*ItemRecord, error)
	ItemOptions(ctx context.Context, itemID int64) (colors []string, sizes []string, err error)
	CategoryNames(ctx context.Context, audience enums.Audience) ([]string, error)
	FilterOptions(ctx context.Context, audience enums.Audience, category string) (*FilterOptions, error)
}

// VariantRecord is the joined variant, item, color and size row.
type VariantRecord struct {
	VariantID     int64
	ItemID        int64
	ItemName      *string
	Color         string
	Size          string
	PriceCents    int64
	DiscountCents *int64
	Stock         *int
}

// ItemRecord is an item with its category and brand names.
type ItemRecord struct {
	ID            int64
	Code          *string
	Name          *string
	Description   *string
	Image         *string
	PriceCents    int64
	DiscountCents *int64
	CategoryName  *string
	BrandName     *string
}

type repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

const itemColumns = "i.id, i.code, i.name, i.description, i.image, i.price_cents, i.discount_cents, c.name AS category_name, b.name AS brand_name"

func (r *repository) FindVariant(ctx context.Context, itemID int64, color, size string) (*VariantRecord, error) {
	var row VariantRecord
	res := r.DB(ctx).
		Table("variants AS v").
		Select("v.id AS variant_id, v.item_id, i.name AS item_name, co.name AS color, s.name AS size, i.price_cents, i.discount_cents, v.stock").
		Joins("JOIN items i ON i.id = v.item_id").
		Joins("JOIN colors co ON co.id = v.color_id").
		Joins("JOIN sizes s ON s.id = v.size_id").
		Where("v.item_id = ? AND co.name = ? AND s.name = ?", itemID, color, size).
		Limit(1).
		Scan(&row)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &row, nil
}

// withAudience keeps rows whose category targets the audience, UNISEX, or no
// audience at all. Items without a category count as unscoped.
func withAudience(db *gorm.DB, audience enums.Audience) *gorm.DB {
	return db.Where("(c.audience IN ? OR c.audience IS NULL)",
		[]string{string(audience), string(enums.AudienceUnisex)})
}

func (r *repository) itemsQuery(ctx context.Context, audience enums.Audience, filters ProductFilters) *gorm.DB {
	q := withAudience(r.DB(ctx).
		Table("items AS i").
		Joins("LEFT JOIN categories c ON c.id = i.category_id").
		Joins("LEFT JOIN brands b ON b.id = i.brand_id").
		Joins("LEFT JOIN materials m ON m.id = i.material_id"), audience)

	if filters.Category != "" {
		q = q.Where("c.name = ?", filters.Category)
	}
	if filters.Brand != "" {
		q = q.Where("b.name = ?", filters.Brand)
	}
	if filters.Material != "" {
		q = q.Where("m.name = ?", filters.Material)
	}
	if filters.Color != "" || filters.Size != "" {
		var sb strings.Builder
		args := []any{}
		sb.WriteString("EXISTS (SELECT 1 FROM variants v JOIN colors co ON co.id = v.color_id JOIN sizes s ON s.id = v.size_id WHERE v.item_id = i.id")
		if filters.Color != "" {
			sb.WriteString(" AND co.name = ?")
			args = append(args, filters.Color)
		}
		if filters.Size != "" {
			sb.WriteString(" AND s.name = ?")
			args = append(args, filters.Size)
		}
		sb.WriteString(")")
		q = q.Where(sb.String(), args...)
	}
	return q
}

func (r *repository) ListItems(ctx context.Context, audience enums.Audience, filters ProductFilters, limit, offset int) ([]ItemRecord, error) {
	var rows []ItemRecord
	err := r.itemsQuery(ctx, audience, filters).
		Select(itemColumns).
		Order("i.id ASC").
		Limit(limit).
		Offset(offset).
		Scan(&rows).Error
	return rows, err
}

func (r *repository) FindItem(ctx context.Context, itemID int64) (*ItemRecord, error) {
	var row ItemRecord
	res := r.DB(ctx).
		Table("items AS i").
		Select(itemColumns).
		Joins("LEFT JOIN categories c ON c.id = i.category_id").
		Joins("LEFT JOIN brands b ON b.id = i.brand_id").
		Where("i.id = ?", itemID).
		Limit(1).
		Scan(&row)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &row, nil
}

func (r *repository) ItemOptions(ctx context.Context, itemID int64) ([]string, []string, error) {
	type optionRow struct {
		Color string
		Size  string
	}
	var rows []optionRow
	err := r.DB(ctx).
		Table("variants AS v").
		Select("co.name AS color, s.name AS size").
		Joins("JOIN colors co ON co.id = v.color_id").
		Joins("JOIN sizes s ON s.id = v.size_id").
		Where("v.item_id = ?", itemID).
		Order("v.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, nil, err
	}

	colors, sizes := []string{}, []string{}
	seenColor, seenSize := map[string]struct{}{}, map[string]struct{}{}
	for _, row := range rows {
		if _, ok := seenColor[row.Color]; !ok && row.Color != "" {
			seenColor[row.Color] = struct{}{}
			colors = append(colors, row.Color)
		}
		if _, ok := seenSize[row.Size]; !ok && row.Size != "" {
			seenSize[row.Size] = struct{}{}
			sizes = append(sizes, row.Size)
		}
	}
	return colors, sizes, nil
}

func (r *repository) CategoryNames(ctx context.Context, audience enums.Audience) ([]string, error) {
	names := []string{}
	err := withAudience(r.DB(ctx).Table("categories AS c"), audience).
		Distinct("c.name").
		Where("c.name <> ''").
		Order("c.name ASC").
		Pluck("c.name", &names).Error
	return names, err
}

// FilterOptions collects the brands, materials, sizes and colors used by the
// audience's items. Categories are filled by the caller.
func (r *repository) FilterOptions(ctx context.Context, audience enums.Audience, category string) (*FilterOptions, error) {
	matching := func(column string) *gorm.DB {
		return r.itemsQuery(ctx, audience, ProductFilters{Category: category}).Select(column)
	}
	variantsOf := func(column string) *gorm.DB {
		return r.DB(ctx).Table("variants").Select(column).Where("item_id IN (?)", matching("i.id"))
	}

	out := &FilterOptions{Brands: []string{}, Sizes: []string{}, Materials: []string{}, Colors: []ColorOption{}}
	if err := r.DB(ctx).Table("brands").
		Where("id IN (?)", matching("i.brand_id")).
		Order("name ASC").
		Pluck("name", &out.Brands).Error; err != nil {
		return nil, err
	}
	if err := r.DB(ctx).Table("materials").
		Where("id IN (?)", matching("i.material_id")).
		Order("name ASC").
		Pluck("name", &out.Materials).Error; err != nil {
		return nil, err
	}
	if err := r.DB(ctx).Table("sizes").
		Where("id IN (?)", variantsOf("size_id")).
		Order("sort_order ASC").
		Order("id ASC").
		Pluck("name", &out.Sizes).Error; err != nil {
		return nil, err
	}
	if err := r.DB(ctx).Table("colors").
		Select("name, rgb").
		Where("id IN (?)", variantsOf("color_id")).
		Order("name ASC").
		Scan(&out.Colors).Error; err != nil {
		return nil, err
	}
	return out, nil
}
