package catalog

import (
	"strings"

	"github.com/angelmondragon/wardrobe-backend/pkg/money"
)

const (
	defaultItemName     = "No Name"
	defaultCategoryName = "Uncategorized"
	imagePrefix         = "/images/"
)

// VariantView is the purchasable (item, color, size) combination with the
// item's current price.
type VariantView struct {
	VariantID    int64        `json:"variant_id"`
	ItemID       int64        `json:"item_id"`
	ItemName     string       `json:"item_name"`
	Color        string       `json:"color"`
	Size         string       `json:"size"`
	UnitPrice    money.Cents  `json:"unit_price"`
	UnitDiscount *money.Cents `json:"unit_discount,omitempty"`
	Stock        *int         `json:"stock"`
}

// ProductFilters narrows a product listing. Empty fields are ignored.
type ProductFilters struct {
	Category string
	Size     string
	Brand    string
	Material string
	Color    string
}

// ListProductsInput is one page request for an audience.
type ListProductsInput struct {
	Audience string
	Filters  ProductFilters
	Page     int
}

// ProductSummary is a product card.
type ProductSummary struct {
	ItemID       int64        `json:"item_id"`
	Name         string       `json:"name"`
	BrandName    *string      `json:"brand_name"`
	Description  *string      `json:"description"`
	Price        money.Cents  `json:"price"`
	Discount     *money.Cents `json:"discount"`
	ImageURL     *string      `json:"image_url"`
	CategoryName string       `json:"category_name"`
}

type ProductPage struct {
	Products []ProductSummary `json:"products"`
	Page     int              `json:"page"`
	HasMore  bool             `json:"has_more"`
}

// ProductDetail adds the code and the distinct variant options.
type ProductDetail struct {
	ProductSummary
	Code            *string  `json:"code"`
	AvailableColors []string `json:"available_colors"`
	AvailableSizes  []string `json:"available_sizes"`
}

type ColorOption struct {
	Name string  `json:"name"`
	RGB  *string `json:"rgb"`
}

// FilterOptions lists the values a shopper can narrow an audience listing by.
type FilterOptions struct {
	Categories []string      `json:"categories"`
	Brands     []string      `json:"brands"`
	Sizes      []string      `json:"sizes"`
	Materials  []string      `json:"materials"`
	Colors     []ColorOption `json:"colors"`
}

// FormatImageURL keeps absolute and rooted paths, and roots bare file names
// under the images prefix.
func FormatImageURL(path *string) *string {
	if path == nil || *path == "" {
		return nil
	}
	if strings.HasPrefix(*path, "/") || strings.HasPrefix(*path, "http") {
		out := *path
		return &out
	}
	out := imagePrefix + *path
	return &out
}

func nameOr(value *string, fallback string) string {
	if value == nil || *value == "" {
		return fallback
	}
	return *value
}
