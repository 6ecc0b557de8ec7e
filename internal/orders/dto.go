package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/mieldesol/modhu-backend/pkg/db/models"
	"github.com/mieldesol/modhu-backend/pkg/enums"
	"github.com/mieldesol/modhu-backend/pkg/pagination"
	"github.com/mieldesol/modhu-backend/pkg/types"
)

// OrderDTO is the API representation of an order for both the storefront
// lookup and the back office.
type OrderDTO struct {
	ID              uuid.UUID           `json:"id"`
	Number          int64               `json:"number"`
	CustomerID      *uuid.UUID          `json:"customer_id,omitempty"`
	Email           string              `json:"email"`
	Status          enums.OrderStatus   `json:"status"`
	SubtotalCents   int64               `json:"subtotal_cents"`
	DiscountCents   int64               `json:"discount_cents"`
	ShippingCents   int64               `json:"shipping_cents"`
	TotalCents      int64               `json:"total_cents"`
	PromotionID     *uuid.UUID          `json:"promotion_id,omitempty"`
	PromotionName   *string             `json:"promotion_name,omitempty"`
	ShippingAddress *types.Address      `json:"shipping_address,omitempty"`
	ShippingLine    *types.ShippingLine `json:"shipping_line,omitempty"`
	TrackingNumber  *string             `json:"tracking_number,omitempty"`
	Items           []LineItemDTO       `json:"items"`
	PaidAt          *time.Time          `json:"paid_at,omitempty"`
	FulfilledAt     *time.Time          `json:"fulfilled_at,omitempty"`
	CancelledAt     *time.Time          `json:"cancelled_at,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
}

// LineItemDTO is the priced snapshot of one cart line inside an order.
type LineItemDTO struct {
	ProductID      *uuid.UUID `json:"product_id,omitempty"`
	Name           string     `json:"name"`
	UnitPriceCents int64      `json:"unit_price_cents"`
	Qty            int        `json:"qty"`
	TotalCents     int64      `json:"total_cents"`
}

// NewOrderDTO converts an order row with its line items.
func NewOrderDTO(order *models.Order) *OrderDTO {
	if order == nil {
		return nil
	}
	items := make([]LineItemDTO, 0, len(order.Items))
	for i := range order.Items {
		item := order.Items[i]
		items = append(items, LineItemDTO{
			ProductID:      item.ProductID,
			Name:           item.Name,
			UnitPriceCents: item.UnitPriceCents,
			Qty:            item.Qty,
			TotalCents:     item.TotalCents,
		})
	}
	return &OrderDTO{
		ID:              order.ID,
		Number:          order.Number,
		CustomerID:      order.CustomerID,
		Email:           order.Email,
		Status:          order.Status,
		SubtotalCents:   order.SubtotalCents,
		DiscountCents:   order.DiscountCents,
		ShippingCents:   order.ShippingCents,
		TotalCents:      order.TotalCents,
		PromotionID:     order.PromotionID,
		PromotionName:   order.PromotionName,
		ShippingAddress: order.ShippingAddress,
		ShippingLine:    order.ShippingLine,
		TrackingNumber:  order.TrackingNumber,
		Items:           items,
		PaidAt:          order.PaidAt,
		FulfilledAt:     order.FulfilledAt,
		CancelledAt:     order.CancelledAt,
		CreatedAt:       order.CreatedAt,
	}
}

// AdminListInput filters the back-office order list.
type AdminListInput struct {
	Pagination pagination.Params
	Status     string
	Email      string
}

// ListResult is one cursor page of orders.
type ListResult struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"next_cursor,omitempty"`
}
