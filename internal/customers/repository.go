package customers

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mieldesol/modhu-backend/pkg/db/models"
	pkgerrors "github.com/mieldesol/modhu-backend/pkg/errors"
)

// Repository persists shopper and back-office accounts.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a customers repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts a customer row.
func (r *Repository) Create(ctx context.Context, customer *models.Customer) (*models.Customer, error) {
	customer.Email = NormalizeEmail(customer.Email)
	if err := r.db.WithContext(ctx).Create(customer).Error; err != nil {
		return nil, err
	}
	return customer, nil
}

// FindByID loads a customer row.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	if err := r.db.WithContext(ctx).First(&customer, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

// FindByEmail loads a customer by normalized email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.Customer, error) {
	var customer models.Customer
	if err := r.db.WithContext(ctx).First(&customer, "email = ?", NormalizeEmail(email)).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

// Update saves the full customer row.
func (r *Repository) Update(ctx context.Context, customer *models.Customer) (*models.Customer, error) {
	if err := r.db.WithContext(ctx).Save(customer).Error; err != nil {
		return nil, err
	}
	return customer, nil
}

// IncrementTotalOrdersTx bumps the counter gating first_purchase/loyalty
// promotions. Runs as an atomic data-layer increment inside the payment
// confirmation transaction.
func (r *Repository) IncrementTotalOrdersTx(ctx context.Context, tx *gorm.DB, customerID uuid.UUID) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for order counter")
	}
	res := tx.WithContext(ctx).Exec(`
		UPDATE customers
		SET total_orders = total_orders + 1,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, customerID)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "increment total orders")
	}
	return nil
}

// TouchLastLogin stamps the most recent successful login.
func (r *Repository) TouchLastLogin(ctx context.Context, customerID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Customer{}).
		Where("id = ?", customerID).
		Update("last_login_at", gorm.Expr("CURRENT_TIMESTAMP")).
		Error
}

// FindAdminByEmail loads a back-office account by normalized email.
func (r *Repository) FindAdminByEmail(ctx context.Context, email string) (*models.AdminUser, error) {
	var admin models.AdminUser
	if err := r.db.WithContext(ctx).First(&admin, "email = ?", NormalizeEmail(email)).Error; err != nil {
		return nil, err
	}
	return &admin, nil
}

// FindAdminByID loads a back-office account.
func (r *Repository) FindAdminByID(ctx context.Context, id uuid.UUID) (*models.AdminUser, error) {
	var admin models.AdminUser
	if err := r.db.WithContext(ctx).First(&admin, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &admin, nil
}

// CreateAdmin inserts a back-office account row.
func (r *Repository) CreateAdmin(ctx context.Context, admin *models.AdminUser) (*models.AdminUser, error) {
	admin.Email = NormalizeEmail(admin.Email)
	if err := r.db.WithContext(ctx).Create(admin).Error; err != nil {
		return nil, err
	}
	return admin, nil
}

// TouchAdminLastLogin stamps the most recent successful admin login.
func (r *Repository) TouchAdminLastLogin(ctx context.Context, adminID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.AdminUser{}).
		Where("id = ?", adminID).
		Update("last_login_at", gorm.Expr("CURRENT_TIMESTAMP")).
		Error
}

// NormalizeEmail lowercases and trims an address so the unique index treats
// user variants as one identity.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
