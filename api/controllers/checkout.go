package controllers

import (
	"net/http"

	"github.com/mieldesol/modhu-backend/api/responses"
	"github.com/mieldesol/modhu-backend/api/validators"
	"github.com/mieldesol/modhu-backend/internal/checkout"
	pkgerrors "github.com/mieldesol/modhu-backend/pkg/errors"
	"github.com/mieldesol/modhu-backend/pkg/logger"
	"github.com/mieldesol/modhu-backend/pkg/types"
)

type checkoutAddressRequest struct {
	Name       string  `json:"name" validate:"required,max=120"`
	Line1      string  `json:"line1" validate:"required,max=200"`
	Line2      *string `json:"line2" validate:"omitempty,max=200"`
	City       string  `json:"city" validate:"required,max=120"`
	Region     string  `json:"region" validate:"omitempty,max=120"`
	PostalCode string  `json:"postal_code" validate:"required,min=3,max=16"`
	Country    string  `json:"country" validate:"required,len=2"`
	Phone      *string `json:"phone" validate:"omitempty,max=32"`
}

type checkoutRequest struct {
	Email           string                 `json:"email" validate:"required,email"`
	ShippingAddress checkoutAddressRequest `json:"shipping_address" validate:"required"`
	ShippingCode    string                 `json:"shipping_code" validate:"omitempty,max=64"`
	PromotionCode   string                 `json:"promotion_code" validate:"omitempty,max=64"`
}

// Checkout converts the session cart into a pending order and hands back the
// payment redirect. Guests check out with just an email; signed-in shoppers
// get the order attached to their account.
func Checkout(svc checkout.Service, customers customerLoader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		sessionID, err := requireSessionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body checkoutRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Execute(r.Context(), checkout.Input{
			SessionID: sessionID,
			Customer:  maybeLoadCustomer(r, customers, logg),
			Email:     body.Email,
			ShippingAddress: types.Address{
				Name:       body.ShippingAddress.Name,
				Line1:      body.ShippingAddress.Line1,
				Line2:      body.ShippingAddress.Line2,
				City:       body.ShippingAddress.City,
				Region:     body.ShippingAddress.Region,
				PostalCode: body.ShippingAddress.PostalCode,
				Country:    body.ShippingAddress.Country,
				Phone:      body.ShippingAddress.Phone,
			},
			ShippingCode:  body.ShippingCode,
			PromotionCode: body.PromotionCode,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
