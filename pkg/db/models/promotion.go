package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	dbtypes "github.com/mieldesol/modhu-backend/pkg/db/types"
	"github.com/mieldesol/modhu-backend/pkg/enums"
	"github.com/mieldesol/modhu-backend/pkg/types"
)

// Promotion is one configured discount. Scope arrays empty means the
// promotion covers the whole catalog. Type-specific config lives in the
// dedicated columns; the engine ignores columns foreign to the type.
type Promotion struct {
	ID                 uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name               string               `gorm:"column:name;not null"`
	Code               *string              `gorm:"column:code;uniqueIndex"`
	Type               enums.PromotionType  `gorm:"column:type;type:text;not null"`
	DiscountType       enums.DiscountType   `gorm:"column:discount_type;type:text;not null;default:'percentage'"`
	DiscountPercent    float64              `gorm:"column:discount_percent;type:numeric(5,2);not null;default:0"`
	DiscountValueCents int64                `gorm:"column:discount_value_cents;not null;default:0"`
	MaxDiscountCents   *int64               `gorm:"column:max_discount_cents"`
	ProductIDs         dbtypes.UUIDArray    `gorm:"column:product_ids;type:uuid[];not null;default:'{}'"`
	CategoryIDs        dbtypes.UUIDArray    `gorm:"column:category_ids;type:uuid[];not null;default:'{}'"`
	StartsAt           time.Time            `gorm:"column:starts_at;not null"`
	EndsAt             *time.Time           `gorm:"column:ends_at"`
	DaysOfWeek         pq.StringArray       `gorm:"column:days_of_week;type:text[];not null;default:'{}'"`
	MaxUses            *int                 `gorm:"column:max_uses"`
	MaxUsesPerCustomer *int                 `gorm:"column:max_uses_per_customer"`
	CurrentUses        int                  `gorm:"column:current_uses;not null;default:0"`
	Priority           int                  `gorm:"column:priority;not null;default:0"`
	Stackable          bool                 `gorm:"column:stackable;not null;default:false"`
	IsActive           bool                 `gorm:"column:is_active;not null;default:true"`
	BundleProductIDs   dbtypes.UUIDArray    `gorm:"column:bundle_product_ids;type:uuid[];not null;default:'{}'"`
	BundlePriceCents   int64                `gorm:"column:bundle_price_cents;not null;default:0"`
	BuyQuantity        int                  `gorm:"column:buy_quantity;not null;default:0"`
	GetQuantity        int                  `gorm:"column:get_quantity;not null;default:0"`
	Tiers              types.PromotionTiers `gorm:"column:tiers;type:jsonb"`
	MinCartValueCents  int64                `gorm:"column:min_cart_value_cents;not null;default:0"`
	CreatedAt          time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// PromotionUsage is the audit row written when a paid order consumed a
// promotion.
type PromotionUsage struct {
	ID            uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PromotionID   uuid.UUID  `gorm:"column:promotion_id;type:uuid;not null;index"`
	OrderID       uuid.UUID  `gorm:"column:order_id;type:uuid;not null"`
	CustomerID    *uuid.UUID `gorm:"column:customer_id;type:uuid"`
	DiscountCents int64      `gorm:"column:discount_cents;not null"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
}
