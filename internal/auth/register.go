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
	"github.com/mieldesol/modhu-backend/pkg/outbox"
	"github.com/mieldesol/modhu-backend/pkg/outbox/payloads"
	"github.com/mieldesol/modhu-backend/pkg/security"
)

const minPasswordLength = 8

// RegisterService handles shopper account creation.
type RegisterService interface {
	Register(ctx context.Context, req RegisterRequest) (*CustomerSummary, error)
}

type registrationEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// RegisterServiceParams packages the dependencies for the registration flow.
type RegisterServiceParams struct {
	DB             *gorm.DB
	Events         registrationEmitter
	PasswordConfig config.PasswordConfig
}

type registerService struct {
	db          *gorm.DB
	events      registrationEmitter
	passwordCfg config.PasswordConfig
}

// NewRegisterService builds a registration service with the provided dependencies.
func NewRegisterService(params RegisterServiceParams) (RegisterService, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "database handle required")
	}
	if params.Events == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "event emitter required")
	}
	return &registerService{
		db:          params.DB,
		events:      params.Events,
		passwordCfg: params.PasswordConfig,
	}, nil
}

func (s *registerService) Register(ctx context.Context, req RegisterRequest) (*CustomerSummary, error) {
	email := customers.NormalizeEmail(req.Email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if len(req.Password) < minPasswordLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password must be at least 8 characters")
	}

	passwordHash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	var customer *models.Customer
	err = s.db.Transaction(func(tx *gorm.DB) error {
		repo := customers.NewRepository(tx)

		existing, err := repo.FindByEmail(ctx, email)
		switch {
		case err == nil && existing.PasswordHash != nil:
			return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		case err == nil:
			// A guest checkout already created this identity. Registration
			// attaches credentials to it so prior orders keep counting
			// toward loyalty promotions.
			existing.PasswordHash = &passwordHash
			existing.FirstName = strings.TrimSpace(req.FirstName)
			existing.LastName = strings.TrimSpace(req.LastName)
			existing.AcceptsMarketing = req.AcceptsMarketing
			updated, err := repo.Update(ctx, existing)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "attach credentials")
			}
			customer = updated
		case errors.Is(err, gorm.ErrRecordNotFound):
			created, err := repo.Create(ctx, &models.Customer{
				Email:            email,
				PasswordHash:     &passwordHash,
				FirstName:        strings.TrimSpace(req.FirstName),
				LastName:         strings.TrimSpace(req.LastName),
				AcceptsMarketing: req.AcceptsMarketing,
			})
			if err != nil {
				// A concurrent registration can slip between the lookup and
				// the insert; the email index reports it.
				if dbpkg.IsUniqueViolation(err, "ux_customers_email") {
					return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
				}
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create customer")
			}
			customer = created
		default:
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check customer email")
		}

		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCustomerRegistered,
			AggregateType: enums.AggregateCustomer,
			AggregateID:   customer.ID,
			Data: payloads.CustomerRegisteredEvent{
				CustomerID: customer.ID,
				Email:      customer.Email,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	return newCustomerSummary(customer), nil
}
