package auth

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/mieldesol/modhu-backend/internal/customers"
	"github.com/mieldesol/modhu-backend/pkg/config"
	dbpkg "github.com/mieldesol/modhu-backend/pkg/db"
	"github.com/mieldesol/modhu-backend/pkg/db/models"
	"github.com/mieldesol/modhu-backend/pkg/enums"
	pkgerrors "github.com/mieldesol/modhu-backend/pkg/errors"
	"github.com/mieldesol/modhu-backend/pkg/security"
)

// AdminRegisterRequest contains the payload for creating a back-office account.
type AdminRegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role"`
}

// AdminRegisterService creates back-office operator accounts. It backs the
// demo seeder and the bootstrap CLI path rather than a public endpoint.
type AdminRegisterService interface {
	Register(ctx context.Context, req AdminRegisterRequest) (*AdminSummary, error)
}

// AdminRegisterServiceParams names the dependencies for the admin register flow.
type AdminRegisterServiceParams struct {
	DB             *gorm.DB
	PasswordConfig config.PasswordConfig
}

type adminRegisterService struct {
	db          *gorm.DB
	passwordCfg config.PasswordConfig
}

// NewAdminRegisterService builds an operator registration service.
func NewAdminRegisterService(params AdminRegisterServiceParams) (AdminRegisterService, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "database handle required")
	}
	return &adminRegisterService{
		db:          params.DB,
		passwordCfg: params.PasswordConfig,
	}, nil
}

func (s *adminRegisterService) Register(ctx context.Context, req AdminRegisterRequest) (*AdminSummary, error) {
	email := customers.NormalizeEmail(req.Email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if len(req.Password) < minPasswordLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password must be at least 8 characters")
	}

	role := strings.TrimSpace(req.Role)
	if role == "" {
		role = string(enums.ActorRoleStaff)
	}
	parsed, err := enums.ParseActorRole(role)
	if err != nil || parsed == enums.ActorRoleCustomer {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "role must be admin or staff")
	}

	passwordHash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	var created *models.AdminUser
	err = s.db.Transaction(func(tx *gorm.DB) error {
		repo := customers.NewRepository(tx)

		if _, err := repo.FindAdminByEmail(ctx, email); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check admin email")
		}

		admin, err := repo.CreateAdmin(ctx, &models.AdminUser{
			Email:        email,
			PasswordHash: passwordHash,
			Name:         name,
			Role:         string(parsed),
			IsActive:     true,
		})
		if err != nil {
			if dbpkg.IsUniqueViolation(err, "ux_admin_users_email") {
				return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create admin")
		}
		created = admin
		return nil
	})
	if err != nil {
		return nil, err
	}
	return newAdminSummary(created), nil
}
