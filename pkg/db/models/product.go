package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Product represents one storefront listing.
type Product struct {
	ID                  uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Slug                string         `gorm:"column:slug;not null;uniqueIndex"`
	Name                string         `gorm:"column:name;not null"`
	Description         *string        `gorm:"column:description"`
	CategoryID          uuid.UUID      `gorm:"column:category_id;type:uuid;not null"`
	Category            *Category      `gorm:"foreignKey:CategoryID"`
	PriceCents          int64          `gorm:"column:price_cents;not null"`
	CompareAtPriceCents *int64         `gorm:"column:compare_at_price_cents"`
	WeightGrams         int            `gorm:"column:weight_grams;not null;default:0"`
	Tags                pq.StringArray `gorm:"column:tags;type:text[];not null;default:'{}'"`
	ImageURL            *string        `gorm:"column:image_url"`
	IsActive            bool           `gorm:"column:is_active;not null;default:true"`
	IsFeatured          bool           `gorm:"column:is_featured;not null;default:false"`
	Inventory           *InventoryItem `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt           time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
