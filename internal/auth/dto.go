package auth

import (
	"github.com/google/uuid"

	"github.com/mieldesol/modhu-backend/pkg/db/models"
)

// LoginRequest captures the credentials sent to the storefront and
// back-office login endpoints.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest contains the payload for creating a shopper account.
type RegisterRequest struct {
	Email            string `json:"email" validate:"required,email"`
	Password         string `json:"password" validate:"required,min=8"`
	FirstName        string `json:"first_name" validate:"required"`
	LastName         string `json:"last_name" validate:"required"`
	AcceptsMarketing bool   `json:"accepts_marketing"`
}

// CustomerSummary is the account shape returned by register and login.
type CustomerSummary struct {
	ID               uuid.UUID `json:"id"`
	Email            string    `json:"email"`
	FirstName        string    `json:"first_name"`
	LastName         string    `json:"last_name"`
	TotalOrders      int       `json:"total_orders"`
	AcceptsMarketing bool      `json:"accepts_marketing"`
}

// LoginResponse contains the token pair and the authenticated shopper.
type LoginResponse struct {
	AccessToken  string           `json:"access_token"`
	RefreshToken string           `json:"refresh_token"`
	Customer     *CustomerSummary `json:"customer"`
}

// AdminSummary is the back-office account shape returned by admin login.
type AdminSummary struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Name  string    `json:"name"`
	Role  string    `json:"role"`
}

// AdminLoginResponse mirrors LoginResponse while exposing the operator.
type AdminLoginResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	User         *AdminSummary `json:"user"`
}

func newCustomerSummary(customer *models.Customer) *CustomerSummary {
	if customer == nil {
		return nil
	}
	return &CustomerSummary{
		ID:               customer.ID,
		Email:            customer.Email,
		FirstName:        customer.FirstName,
		LastName:         customer.LastName,
		TotalOrders:      customer.TotalOrders,
		AcceptsMarketing: customer.AcceptsMarketing,
	}
}

func newAdminSummary(admin *models.AdminUser) *AdminSummary {
	if admin == nil {
		return nil
	}
	return &AdminSummary{
		ID:    admin.ID,
		Email: admin.Email,
		Name:  admin.Name,
		Role:  admin.Role,
	}
}
