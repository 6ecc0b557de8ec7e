package payloads

import (
	"time"

	"github.com/google/uuid"
)

// OrderEventItem is the line-item snapshot shared by the order events.
type OrderEventItem struct {
	ProductID      *uuid.UUID `json:"product_id,omitempty"`
	Name           string     `json:"name"`
	UnitPriceCents int64      `json:"unit_price_cents"`
	Qty            int        `json:"qty"`
	TotalCents     int64      `json:"total_cents"`
}

// OrderCreatedEvent signals a checkout produced a pending order.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID        `json:"order_id"`
	Number        int64            `json:"number"`
	Email         string           `json:"email"`
	SubtotalCents int64            `json:"subtotal_cents"`
	DiscountCents int64            `json:"discount_cents"`
	ShippingCents int64            `json:"shipping_cents"`
	TotalCents    int64            `json:"total_cents"`
	PromotionID   *uuid.UUID       `json:"promotion_id,omitempty"`
	Items         []OrderEventItem `json:"items"`
}

// OrderPaidEvent is emitted once the payment provider confirms a session.
type OrderPaidEvent struct {
	OrderID       uuid.UUID  `json:"order_id"`
	Number        int64      `json:"number"`
	CustomerID    *uuid.UUID `json:"customer_id,omitempty"`
	Email         string     `json:"email"`
	TotalCents    int64      `json:"total_cents"`
	DiscountCents int64      `json:"discount_cents"`
	PromotionID   *uuid.UUID `json:"promotion_id,omitempty"`
	PromotionName *string    `json:"promotion_name,omitempty"`
	PaidAt        time.Time  `json:"paid_at"`
}

// OrderPaymentFailedEvent reports an expired or rejected checkout session.
type OrderPaymentFailedEvent struct {
	OrderID  uuid.UUID `json:"order_id"`
	Number   int64     `json:"number"`
	Email    string    `json:"email"`
	Reason   string    `json:"reason,omitempty"`
	FailedAt time.Time `json:"failed_at"`
}

// OrderFulfilledEvent is emitted when an admin ships the order.
type OrderFulfilledEvent struct {
	OrderID        uuid.UUID `json:"order_id"`
	Number         int64     `json:"number"`
	Email          string    `json:"email"`
	Carrier        string    `json:"carrier,omitempty"`
	Service        string    `json:"service,omitempty"`
	TrackingNumber string    `json:"tracking_number,omitempty"`
	FulfilledAt    time.Time `json:"fulfilled_at"`
}

// OrderCancelledEvent is emitted when an order is cancelled and its stock
// released.
type OrderCancelledEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	Number      int64     `json:"number"`
	Email       string    `json:"email"`
	Reason      string    `json:"reason,omitempty"`
	CancelledAt time.Time `json:"cancelled_at"`
}

// PromotionAppliedEvent records a promotion consumed by a paid order.
type PromotionAppliedEvent struct {
	PromotionID   uuid.UUID  `json:"promotion_id"`
	PromotionName string     `json:"promotion_name"`
	OrderID       uuid.UUID  `json:"order_id"`
	CustomerID    *uuid.UUID `json:"customer_id,omitempty"`
	DiscountCents int64      `json:"discount_cents"`
}

// InventoryLowStockEvent fires when committed stock crosses the threshold.
type InventoryLowStockEvent struct {
	ProductID    uuid.UUID `json:"product_id"`
	ProductName  string    `json:"product_name"`
	AvailableQty int       `json:"available_qty"`
	Threshold    int       `json:"threshold"`
}

// CustomerRegisteredEvent is emitted when a shopper creates an account.
type CustomerRegisteredEvent struct {
	CustomerID uuid.UUID `json:"customer_id"`
	Email      string    `json:"email"`
}
