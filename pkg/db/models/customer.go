package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mieldesol/modhu-backend/pkg/types"
)

// Customer represents a shopper account. Guest checkouts create a row with a
// nil password hash so repeat purchases still accrue to one identity.
type Customer struct {
	ID               uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	Email            string         `gorm:"column:email;type:text;not null;uniqueIndex"`
	PasswordHash     *string        `gorm:"column:password_hash"`
	FirstName        string         `gorm:"column:first_name;not null;default:''"`
	LastName         string         `gorm:"column:last_name;not null;default:''"`
	TotalOrders      int            `gorm:"column:total_orders;not null;default:0"`
	AcceptsMarketing bool           `gorm:"column:accepts_marketing;not null;default:false"`
	DefaultAddress   *types.Address `gorm:"column:default_address;type:jsonb"`
	LastLoginAt      *time.Time     `gorm:"column:last_login_at"`
	CreatedAt        time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns the ID so inserts behave the same on Postgres and
// SQLite.
func (c *Customer) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// AdminUser represents a back-office operator.
type AdminUser struct {
	ID           uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	Email        string     `gorm:"column:email;type:text;not null;uniqueIndex"`
	PasswordHash string     `gorm:"column:password_hash;not null"`
	Name         string     `gorm:"column:name;not null"`
	Role         string     `gorm:"column:role;not null;default:'staff'"`
	IsActive     bool       `gorm:"column:is_active;not null;default:true"`
	LastLoginAt  *time.Time `gorm:"column:last_login_at"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *AdminUser) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
