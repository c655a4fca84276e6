package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/wardrobe-backend/api/middleware"
	"github.com/angelmondragon/wardrobe-backend/api/responses"
	"github.com/angelmondragon/wardrobe-backend/api/validators"
	"github.com/angelmondragon/wardrobe-backend/internal/cart"
	pkgerrors "github.com/angelmondragon/wardrobe-backend/pkg/errors"
	"github.com/angelmondragon/wardrobe-backend/pkg/logger"
)

type addLineRequest struct {
	ItemID   int64  `json:"item_id" validate:"required,gt=0"`
	Color    string `json:"color" validate:"required,max=64"`
	Size     string `json:"size" validate:"required,max=64"`
	Quantity int    `json:"quantity"`
}

// Quantity is a pointer so an omitted field is rejected while zero still
// means "remove the line".
type setQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

// CartFetch returns the caller's active cart, or an empty view when none
// exists yet. It never creates a cart.
func CartFetch(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		view, err := svc.GetCart(r.Context(), actorFromRequest(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// CartAddLine adds a variant to the caller's cart, creating the cart on first
// use. A newly minted guest token is returned in the X-Guest-Token header.
func CartAddLine(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		var body addLineRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.AddLine(r.Context(), actorFromRequest(r), cart.AddLineInput{
			ItemID:   body.ItemID,
			Color:    validators.SanitizeString(body.Color, 64),
			Size:     validators.SanitizeString(body.Size, 64),
			Quantity: body.Quantity,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeMutation(w, http.StatusCreated, result)
	}
}

func CartSetLineQuantity(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		lineID, err := validators.ParsePathID(chi.URLParam(r, "lineId"), "lineId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body setQuantityRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.SetLineQuantity(r.Context(), actorFromRequest(r), lineID, *body.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeMutation(w, http.StatusOK, result)
	}
}

func CartRemoveLine(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		lineID, err := validators.ParsePathID(chi.URLParam(r, "lineId"), "lineId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.RemoveLine(r.Context(), actorFromRequest(r), lineID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeMutation(w, http.StatusOK, result)
	}
}

func actorFromRequest(r *http.Request) cart.Actor {
	return cart.Actor{
		UserID:     middleware.UserIDFromContext(r.Context()),
		GuestToken: middleware.GuestTokenFromContext(r.Context()),
	}
}

func writeMutation(w http.ResponseWriter, status int, result *cart.MutationResult) {
	if result.GuestToken != "" {
		w.Header().Set(middleware.GuestTokenHeader, result.GuestToken)
	}
	responses.WriteSuccessStatus(w, status, result)
}
