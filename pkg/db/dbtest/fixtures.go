package dbtest

import (
	"testing"

	"gorm.io/gorm"

	"github.com/angelmondragon/wardrobe-backend/pkg/db/models"
	"github.com/angelmondragon/wardrobe-backend/pkg/enums"
)

// ItemFixture describes a catalog item and the variants to create for it.
type ItemFixture struct {
	Name          string
	Code          string
	Image         *string
	PriceCents    int64
	DiscountCents *int64
	Category      string
	Audience      *enums.Audience
	Brand         string
	Material      string
	Variants      []VariantFixture
}

type VariantFixture struct {
	Color string
	Size  string
	Stock *int
}

// Seeded carries the ids created by SeedItem, variants in fixture order.
type Seeded struct {
	Item     models.Item
	Variants []models.Variant
}

// SeedItem inserts the item with its lookup rows, reusing lookups that
// already exist by name.
func SeedItem(t testing.TB, conn *gorm.DB, fx ItemFixture) Seeded {
	t.Helper()

	item := models.Item{
		PriceCents:    fx.PriceCents,
		DiscountCents: fx.DiscountCents,
		Image:         fx.Image,
	}
	if fx.Name != "" {
		item.Name = &fx.Name
	}
	if fx.Code != "" {
		item.Code = &fx.Code
	}
	if fx.Category != "" {
		category := models.Category{Name: fx.Category, Audience: fx.Audience}
		must(t, conn.Where("name = ?", fx.Category).FirstOrCreate(&category).Error)
		item.CategoryID = &category.ID
	}
	if fx.Brand != "" {
		brand := models.Brand{Name: fx.Brand}
		must(t, conn.Where("name = ?", fx.Brand).FirstOrCreate(&brand).Error)
		item.BrandID = &brand.ID
	}
	if fx.Material != "" {
		material := models.Material{Name: fx.Material}
		must(t, conn.Where("name = ?", fx.Material).FirstOrCreate(&material).Error)
		item.MaterialID = &material.ID
	}
	must(t, conn.Create(&item).Error)

	out := Seeded{Item: item}
	for i, vf := range fx.Variants {
		color := models.Color{Name: vf.Color}
		must(t, conn.Where("name = ?", vf.Color).FirstOrCreate(&color).Error)
		size := models.Size{Name: vf.Size, SortOrder: i}
		must(t, conn.Where("name = ?", vf.Size).FirstOrCreate(&size).Error)

		variant := models.Variant{ItemID: item.ID, ColorID: color.ID, SizeID: size.ID, Stock: vf.Stock}
		must(t, conn.Create(&variant).Error)
		out.Variants = append(out.Variants, variant)
	}
	return out
}

// SeedUser inserts an active user with a placeholder password hash.
func SeedUser(t testing.TB, conn *gorm.DB, name, email string) models.User {
	t.Helper()
	user := models.User{Name: name, Email: email, PasswordHash: "x", IsActive: true}
	must(t, conn.Create(&user).Error)
	return user
}

// IntPtr and Int64Ptr keep fixture literals short.
func IntPtr(v int) *int { return &v }

func Int64Ptr(v int64) *int64 { return &v }

func must(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}
