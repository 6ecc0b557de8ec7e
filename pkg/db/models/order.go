package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mieldesol/modhu-backend/pkg/enums"
	"github.com/mieldesol/modhu-backend/pkg/types"
)

// Order represents one storefront purchase, pending until the payment
// provider confirms it.
type Order struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Number            int64               `gorm:"column:number;not null;uniqueIndex"`
	CustomerID        *uuid.UUID          `gorm:"column:customer_id;type:uuid"`
	Email             string              `gorm:"column:email;not null"`
	SessionID         string              `gorm:"column:session_id;not null;default:''"`
	Status            enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'pending'"`
	SubtotalCents     int64               `gorm:"column:subtotal_cents;not null"`
	DiscountCents     int64               `gorm:"column:discount_cents;not null;default:0"`
	ShippingCents     int64               `gorm:"column:shipping_cents;not null;default:0"`
	TotalCents        int64               `gorm:"column:total_cents;not null"`
	PromotionID       *uuid.UUID          `gorm:"column:promotion_id;type:uuid"`
	PromotionName     *string             `gorm:"column:promotion_name"`
	ShippingAddress   *types.Address      `gorm:"column:shipping_address;type:jsonb"`
	ShippingLine      *types.ShippingLine `gorm:"column:shipping_line;type:jsonb"`
	TrackingNumber    *string             `gorm:"column:tracking_number"`
	CheckoutSessionID *string             `gorm:"column:checkout_session_id;uniqueIndex"`
	Items             []OrderLineItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	PaidAt            *time.Time          `gorm:"column:paid_at"`
	FulfilledAt       *time.Time          `gorm:"column:fulfilled_at"`
	CancelledAt       *time.Time          `gorm:"column:cancelled_at"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns the ID so inserts behave the same on Postgres and
// SQLite.
func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
