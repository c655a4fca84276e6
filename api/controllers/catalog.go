package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/wardrobe-backend/api/responses"
	"github.com/angelmondragon/wardrobe-backend/api/validators"
	"github.com/angelmondragon/wardrobe-backend/internal/catalog"
	pkgerrors "github.com/angelmondragon/wardrobe-backend/pkg/errors"
	"github.com/angelmondragon/wardrobe-backend/pkg/logger"
)

const (
	filterValueMaxLen = 64
	maxCatalogPage    = 10000
)

// CatalogProducts lists one page of products for the audience in the path.
// Filters come from the query string: category, size, brand, material, color.
func CatalogProducts(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		page, err := validators.ParseQueryInt(r, "page", 1, 1, maxCatalogPage)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ListProducts(r.Context(), catalog.ListProductsInput{
			Audience: chi.URLParam(r, "audience"),
			Filters:  productFilters(r),
			Page:     page,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func CatalogCategories(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		names, err := svc.Categories(r.Context(), chi.URLParam(r, "audience"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if names == nil {
			names = []string{}
		}
		responses.WriteSuccess(w, names)
	}
}

func CatalogFilters(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		category := queryFilter(r, "category")
		options, err := svc.Filters(r.Context(), chi.URLParam(r, "audience"), category)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, options)
	}
}

func CatalogItem(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		itemID, err := validators.ParsePathID(chi.URLParam(r, "itemId"), "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		detail, err := svc.ProductDetail(r.Context(), itemID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}

func productFilters(r *http.Request) catalog.ProductFilters {
	return catalog.ProductFilters{
		Category: queryFilter(r, "category"),
		Size:     queryFilter(r, "size"),
		Brand:    queryFilter(r, "brand"),
		Material: queryFilter(r, "material"),
		Color:    queryFilter(r, "color"),
	}
}

func queryFilter(r *http.Request, key string) string {
	return validators.SanitizeString(strings.TrimSpace(r.URL.Query().Get(key)), filterValueMaxLen)
}
