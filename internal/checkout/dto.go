package checkout

import (
	"github.com/google/uuid"

	"github.com/mieldesol/modhu-backend/pkg/db/models"
	"github.com/mieldesol/modhu-backend/pkg/types"
)

// Input carries everything the storefront submits to start a checkout. The
// controller resolves the session id and, for logged-in shoppers, the
// customer record before calling the service.
type Input struct {
	SessionID       string
	Customer        *models.Customer
	Email           string
	ShippingAddress types.Address
	// ShippingCode selects one of the quoted options. Blank means the
	// cheapest quote.
	ShippingCode string
	// PromotionCode forces an explicitly entered code instead of the
	// automatic best-promotion selection.
	PromotionCode string
}

// Result is returned to the storefront so it can redirect the shopper to the
// payment page and show the totals that were locked in.
type Result struct {
	OrderID           uuid.UUID `json:"order_id"`
	OrderNumber       int64     `json:"order_number"`
	CheckoutSessionID string    `json:"checkout_session_id"`
	RedirectURL       string    `json:"redirect_url"`
	SubtotalCents     int64     `json:"subtotal_cents"`
	DiscountCents     int64     `json:"discount_cents"`
	ShippingCents     int64     `json:"shipping_cents"`
	TotalCents        int64     `json:"total_cents"`
	PromotionName     *string   `json:"promotion_name,omitempty"`
}
