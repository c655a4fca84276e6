package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/wardrobe-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/wardrobe-backend/pkg/errors"
	"github.com/angelmondragon/wardrobe-backend/pkg/logger"
	"github.com/angelmondragon/wardrobe-backend/pkg/money"
	"github.com/angelmondragon/wardrobe-backend/pkg/redis"
)

const defaultPageSize = 12

// Service exposes the read-only catalog.
type Service interface {
	FindVariant(ctx context.Context, itemID int64, color, size string) (*VariantView, error)
	ListProducts(ctx context.Context, input ListProductsInput) (*ProductPage, error)
	ProductDetail(ctx context.Context, itemID int64) (*ProductDetail, error)
	Categories(ctx context.Context, audience string) ([]string, error)
	Filters(ctx context.Context, audience, category string) (*FilterOptions, error)
}

// Cache stores JSON snapshots of slow-changing catalog lookups.
type Cache interface {
	CacheKey(scope string, parts ...string) string
	GetJSON(ctx context.Context, key string, dest any) error
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}

// ServiceParams wires the catalog service.
type ServiceParams struct {
	Repo     Repository
	Cache    Cache
	CacheTTL time.Duration
	PageSize int
	Logger   *logger.Logger
}

type service struct {
	repo     Repository
	cache    Cache
	cacheTTL time.Duration
	pageSize int
	logg     *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	pageSize := params.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &service{
		repo:     params.Repo,
		cache:    params.Cache,
		cacheTTL: params.CacheTTL,
		pageSize: pageSize,
		logg:     params.Logger,
	}, nil
}

func (s *service) FindVariant(ctx context.Context, itemID int64, color, size string) (*VariantView, error) {
	if itemID <= 0 || color == "" || size == "" {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product variant not found")
	}
	row, err := s.repo.FindVariant(ctx, itemID, color, size)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product variant not found").
				WithDetails(map[string]any{"item_id": itemID, "color": color, "size": size})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product variant")
	}
	return &VariantView{
		VariantID:    row.VariantID,
		ItemID:       row.ItemID,
		ItemName:     nameOr(row.ItemName, defaultItemName),
		Color:        row.Color,
		Size:         row.Size,
		UnitPrice:    money.Cents(row.PriceCents),
		UnitDiscount: money.Ptr(row.DiscountCents),
		Stock:        row.Stock,
	}, nil
}

func (s *service) ListProducts(ctx context.Context, input ListProductsInput) (*ProductPage, error) {
	page := input.Page
	if page < 1 {
		page = 1
	}
	out := &ProductPage{Products: []ProductSummary{}, Page: page}
	if input.Audience == "" {
		return out, nil
	}
	audience, err := enums.ParseAudience(input.Audience)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown audience").
			WithDetails(map[string]any{"audience": input.Audience})
	}

	rows, err := s.repo.ListItems(ctx, audience, input.Filters, s.pageSize+1, (page-1)*s.pageSize)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	if len(rows) > s.pageSize {
		out.HasMore = true
		rows = rows[:s.pageSize]
	}
	for _, row := range rows {
		out.Products = append(out.Products, summaryFrom(row))
	}
	return out, nil
}

func (s *service) ProductDetail(ctx context.Context, itemID int64) (*ProductDetail, error) {
	row, err := s.repo.FindItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	colors, sizes, err := s.repo.ItemOptions(ctx, itemID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product options")
	}
	return &ProductDetail{
		ProductSummary:  summaryFrom(*row),
		Code:            row.Code,
		AvailableColors: colors,
		AvailableSizes:  sizes,
	}, nil
}

func (s *service) Categories(ctx context.Context, audience string) ([]string, error) {
	parsed, err := enums.ParseAudience(audience)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown audience")
	}

	var names []string
	key := s.cacheKey("categories", string(parsed))
	if s.readCache(ctx, key, &names) {
		return names, nil
	}
	names, err = s.repo.CategoryNames(ctx, parsed)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	s.writeCache(ctx, key, names)
	return names, nil
}

func (s *service) Filters(ctx context.Context, audience, category string) (*FilterOptions, error) {
	parsed, err := enums.ParseAudience(audience)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown audience")
	}

	var cached FilterOptions
	key := s.cacheKey("filters", string(parsed), category)
	if s.readCache(ctx, key, &cached) {
		return &cached, nil
	}

	options, err := s.repo.FilterOptions(ctx, parsed, category)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list filters")
	}
	categories, err := s.Categories(ctx, audience)
	if err != nil {
		return nil, err
	}
	options.Categories = categories
	s.writeCache(ctx, key, options)
	return options, nil
}

func (s *service) cacheKey(scope string, parts ...string) string {
	if s.cache == nil {
		return ""
	}
	return s.cache.CacheKey("catalog:"+scope, parts...)
}

// readCache reports a hit. Misses and cache errors both fall through to the
// database; errors are only logged.
func (s *service) readCache(ctx context.Context, key string, dest any) bool {
	if s.cache == nil || key == "" {
		return false
	}
	if err := s.cache.GetJSON(ctx, key, dest); err != nil {
		if !isCacheMiss(err) && s.logg != nil {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"cache_key": key, "error": err.Error()}), "catalog.cache_read_failed")
		}
		return false
	}
	return true
}

func (s *service) writeCache(ctx context.Context, key string, value any) {
	if s.cache == nil || key == "" {
		return
	}
	if err := s.cache.SetJSON(ctx, key, value, s.cacheTTL); err != nil && s.logg != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"cache_key": key, "error": err.Error()}), "catalog.cache_write_failed")
	}
}

func summaryFrom(row ItemRecord) ProductSummary {
	return ProductSummary{
		ItemID:       row.ID,
		Name:         nameOr(row.Name, defaultItemName),
		BrandName:    row.BrandName,
		Description:  row.Description,
		Price:        money.Cents(row.PriceCents),
		Discount:     money.Ptr(row.DiscountCents),
		ImageURL:     FormatImageURL(row.Image),
		CategoryName: nameOr(row.CategoryName, defaultCategoryName),
	}
}

func isCacheMiss(err error) bool {
	return errors.Is(err, redis.ErrCacheMiss)
}
