package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/mieldesol/modhu-backend/api/responses"
	"github.com/mieldesol/modhu-backend/api/validators"
	"github.com/mieldesol/modhu-backend/internal/cart"
	"github.com/mieldesol/modhu-backend/internal/shipping"
	"github.com/mieldesol/modhu-backend/pkg/db/models"
	pkgerrors "github.com/mieldesol/modhu-backend/pkg/errors"
	"github.com/mieldesol/modhu-backend/pkg/logger"
)

// parcelFallbackWeightGrams keeps carrier quoting possible for carts whose
// products carry no weight.
const parcelFallbackWeightGrams = 500

type productWeigher interface {
	FindProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}

type shippingQuoteRequest struct {
	PostalCode string `json:"postal_code" validate:"required,min=3,max=16"`
	Country    string `json:"country" validate:"omitempty,len=2"`
}

// ShippingQuotes prices the session cart for a destination. Weight and
// subtotal come from the cart itself so the client cannot understate them.
func ShippingQuotes(quotes shipping.Service, carts cart.Service, products productWeigher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if quotes == nil || carts == nil || products == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shipping service unavailable"))
			return
		}

		sessionID, err := requireSessionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body shippingQuoteRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		current, err := carts.Get(r.Context(), sessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if len(current.Items) == 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty"))
			return
		}

		weightGrams, subtotalCents, err := parcelFromCart(r.Context(), products, current)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := quotes.Quotes(r.Context(), shipping.QuoteRequest{
			PostalCode:    body.PostalCode,
			Country:       body.Country,
			WeightGrams:   weightGrams,
			SubtotalCents: subtotalCents,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"quotes": result})
	}
}

func parcelFromCart(ctx context.Context, products productWeigher, current *cart.Cart) (int, int64, error) {
	ids := make([]uuid.UUID, 0, len(current.Items))
	for _, item := range current.Items {
		ids = append(ids, item.ProductID)
	}

	rows, err := products.FindProductsByIDs(ctx, ids)
	if err != nil {
		return 0, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart products")
	}
	weights := make(map[uuid.UUID]int, len(rows))
	for i := range rows {
		weights[rows[i].ID] = rows[i].WeightGrams
	}

	weightGrams := 0
	var subtotalCents int64
	for _, item := range current.Items {
		weightGrams += weights[item.ProductID] * item.Quantity
		subtotalCents += item.UnitPriceCents * int64(item.Quantity)
	}
	if weightGrams <= 0 {
		weightGrams = parcelFallbackWeightGrams
	}
	return weightGrams, subtotalCents, nil
}
