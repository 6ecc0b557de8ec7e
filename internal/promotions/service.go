package promotions

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mieldesol/modhu-backend/internal/cart"
	"github.com/mieldesol/modhu-backend/pkg/db/models"
	dbtypes "github.com/mieldesol/modhu-backend/pkg/db/types"
	"github.com/mieldesol/modhu-backend/pkg/enums"
	pkgerrors "github.com/mieldesol/modhu-backend/pkg/errors"
	"github.com/mieldesol/modhu-backend/pkg/types"
)

// Service exposes promotion evaluation for the storefront and CRUD for admin.
type Service interface {
	// BestForCart picks the highest-discount applicable promotion for the
	// cart, or nil when nothing applies.
	BestForCart(ctx context.Context, c *cart.Cart, customer *models.Customer) (*Selection, error)
	// ResolveCode evaluates one explicitly entered promotion code and
	// rejects it with a validation error when it does not apply.
	ResolveCode(ctx context.Context, code string, c *cart.Cart, customer *models.Customer) (*Selection, error)
	// Preview is the storefront cart-promotion endpoint payload.
	Preview(ctx context.Context, c *cart.Cart, customer *models.Customer) (*PreviewDTO, error)
	// EvaluateSample runs one promotion against a hypothetical cart so an
	// administrator can test a rule before shoppers see it.
	EvaluateSample(ctx context.Context, id uuid.UUID, input EvaluateSampleInput) (*SampleEvaluation, error)

	// RecordUsageTx bumps the usage counter and writes the audit row inside
	// the caller's payment-confirmation transaction.
	RecordUsageTx(ctx context.Context, tx *gorm.DB, usage UsageRecord) error

	Get(ctx context.Context, id uuid.UUID) (*PromotionDTO, error)
	List(ctx context.Context, input ListInput) (*ListResult, error)
	Create(ctx context.Context, input CreatePromotionInput) (*PromotionDTO, error)
	Update(ctx context.Context, id uuid.UUID, input UpdatePromotionInput) (*PromotionDTO, error)
	// Delete removes a promotion, or only disables it when usage history
	// references it.
	Delete(ctx context.Context, id uuid.UUID) error
}

// UsageRecord captures one redemption for the audit trail.
type UsageRecord struct {
	PromotionID   uuid.UUID
	OrderID       uuid.UUID
	CustomerID    *uuid.UUID
	DiscountCents int64
}

// CreatePromotionInput holds the validated payload to create a promotion.
type CreatePromotionInput struct {
	Name               string
	Code               *string
	Type               string
	DiscountType       string
	DiscountPercent    float64
	DiscountValueCents int64
	MaxDiscountCents   *int64
	ProductIDs         []uuid.UUID
	CategoryIDs        []uuid.UUID
	StartsAt           time.Time
	EndsAt             *time.Time
	DaysOfWeek         []string
	MaxUses            *int
	MaxUsesPerCustomer *int
	Priority           int
	Stackable          bool
	IsActive           bool
	BundleProductIDs   []uuid.UUID
	BundlePriceCents   int64
	BuyQuantity        int
	GetQuantity        int
	Tiers              []TierInput
	MinCartValueCents  int64
}

// TierInput is one quantity threshold in a tiered promotion payload.
type TierInput struct {
	MinQuantity     int
	DiscountPercent float64
}

// SampleLine is one line of an admin preview cart.
type SampleLine struct {
	ProductID      uuid.UUID
	CategoryID     uuid.UUID
	UnitPriceCents int64
	Quantity       int
}

// EvaluateSampleInput describes the hypothetical cart a promotion is
// previewed against. A nil CustomerTotalOrders means a guest shopper; a nil
// At means the current clock.
type EvaluateSampleInput struct {
	Lines               []SampleLine
	CustomerTotalOrders *int
	At                  *time.Time
}

// UpdatePromotionInput holds optional mutation values. Nil means unchanged;
// an empty code string clears the code.
type UpdatePromotionInput struct {
	Name               *string
	Code               *string
	DiscountType       *string
	DiscountPercent    *float64
	DiscountValueCents *int64
	MaxDiscountCents   *int64
	ProductIDs         *[]uuid.UUID
	CategoryIDs        *[]uuid.UUID
	StartsAt           *time.Time
	EndsAt             *time.Time
	DaysOfWeek         *[]string
	MaxUses            *int
	MaxUsesPerCustomer *int
	Priority           *int
	Stackable          *bool
	IsActive           *bool
	BundleProductIDs   *[]uuid.UUID
	BundlePriceCents   *int64
	BuyQuantity        *int
	GetQuantity        *int
	Tiers              *[]TierInput
	MinCartValueCents  *int64
}

type service struct {
	store  Store
	engine Engine
	now    func() time.Time
}

// NewService constructs the promotions service.
func NewService(store Store, engine Engine) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("promotion store required")
	}
	return &service{store: store, engine: engine, now: time.Now}, nil
}

var codePattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9_-]{2,31}$`)

// BestForCart evaluates every active promotion against the cart.
func (s *service) BestForCart(ctx context.Context, c *cart.Cart, customer *models.Customer) (*Selection, error) {
	if c == nil || c.IsEmpty() {
		return nil, nil
	}
	now := s.now().UTC()
	candidates, err := s.store.ListActive(ctx, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list active promotions")
	}
	snapshot, err := s.snapshot(ctx, customer)
	if err != nil {
		return nil, err
	}
	return s.engine.BestPromotion(candidates, c, snapshot, now), nil
}

// ResolveCode loads and evaluates one promotion code.
func (s *service) ResolveCode(ctx context.Context, code string, c *cart.Cart, customer *models.Customer) (*Selection, error) {
	normalized := normalizeCode(code)
	if normalized == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "promotion code is required")
	}
	promotion, err := s.store.FindByCode(ctx, normalized)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "promotion code is not valid")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load promotion code")
	}
	snapshot, err := s.snapshot(ctx, customer)
	if err != nil {
		return nil, err
	}
	eval := s.engine.Evaluate(promotion, c, snapshot, s.now().UTC())
	if !eval.Applicable {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "promotion code cannot be applied").
			WithDetails(map[string]any{"reason": eval.Reason})
	}
	return &Selection{Promotion: promotion, DiscountCents: eval.DiscountCents}, nil
}

// Preview maps the best selection to the storefront payload. A cart with no
// applicable promotion previews as nil, not an error.
func (s *service) Preview(ctx context.Context, c *cart.Cart, customer *models.Customer) (*PreviewDTO, error) {
	selection, err := s.BestForCart(ctx, c, customer)
	if err != nil {
		return nil, err
	}
	return NewPreviewDTO(selection), nil
}

// EvaluateSample loads the promotion (active or not) and runs the engine
// against the sample cart exactly as the storefront would, so the verdict
// reflects what a shopper would see, inactive state and all.
func (s *service) EvaluateSample(ctx context.Context, id uuid.UUID, input EvaluateSampleInput) (*SampleEvaluation, error) {
	promotion, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	at := s.now().UTC()
	if input.At != nil {
		at = input.At.UTC()
	}
	sample := &cart.Cart{Items: make([]cart.Item, 0, len(input.Lines))}
	for _, line := range input.Lines {
		sample.Items = append(sample.Items, cart.Item{
			ProductID:      line.ProductID,
			CategoryID:     line.CategoryID,
			UnitPriceCents: line.UnitPriceCents,
			Quantity:       line.Quantity,
		})
	}
	var snapshot *CustomerSnapshot
	if input.CustomerTotalOrders != nil {
		snapshot = &CustomerSnapshot{TotalOrders: *input.CustomerTotalOrders}
	}
	eval := s.engine.Evaluate(promotion, sample, snapshot, at)
	return &SampleEvaluation{
		PromotionID:   promotion.ID,
		Name:          promotion.Name,
		EvaluatedAt:   at,
		SubtotalCents: sample.SubtotalCents(),
		Evaluation:    eval,
	}, nil
}

// RecordUsageTx must run inside the same transaction that marks the order
// paid so the counter and the audit trail move together.
func (s *service) RecordUsageTx(ctx context.Context, tx *gorm.DB, usage UsageRecord) error {
	if usage.PromotionID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "promotion_id is required")
	}
	if err := s.store.IncrementUsageTx(ctx, tx, usage.PromotionID); err != nil {
		return err
	}
	row := &models.PromotionUsage{
		ID:            uuid.New(),
		PromotionID:   usage.PromotionID,
		OrderID:       usage.OrderID,
		CustomerID:    usage.CustomerID,
		DiscountCents: usage.DiscountCents,
	}
	if err := s.store.CreateUsageTx(ctx, tx, row); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: create promotion usage")
	}
	return nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*PromotionDTO, error) {
	promotion, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return NewPromotionDTO(promotion), nil
}

func (s *service) List(ctx context.Context, input ListInput) (*ListResult, error) {
	result, err := s.store.List(ctx, input)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list promotions")
	}
	return result, nil
}

// Create validates the type-specific configuration before persisting, so a
// stored promotion can always be evaluated without surprises.
func (s *service) Create(ctx context.Context, input CreatePromotionInput) (*PromotionDTO, error) {
	kind, err := enums.ParsePromotionType(input.Type)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
	}
	discountType := enums.DiscountTypePercentage
	if strings.TrimSpace(input.DiscountType) != "" {
		discountType, err = enums.ParseDiscountType(input.DiscountType)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
		}
	}

	startsAt := input.StartsAt
	if startsAt.IsZero() {
		startsAt = s.now().UTC()
	}

	promotion := &models.Promotion{
		Name:               strings.TrimSpace(input.Name),
		Type:               kind,
		DiscountType:       discountType,
		DiscountPercent:    input.DiscountPercent,
		DiscountValueCents: input.DiscountValueCents,
		MaxDiscountCents:   input.MaxDiscountCents,
		ProductIDs:         dbtypes.UUIDArray(input.ProductIDs),
		CategoryIDs:        dbtypes.UUIDArray(input.CategoryIDs),
		StartsAt:           startsAt,
		EndsAt:             input.EndsAt,
		MaxUses:            input.MaxUses,
		MaxUsesPerCustomer: input.MaxUsesPerCustomer,
		Priority:           input.Priority,
		Stackable:          input.Stackable,
		IsActive:           input.IsActive,
		BundleProductIDs:   dbtypes.UUIDArray(input.BundleProductIDs),
		BundlePriceCents:   input.BundlePriceCents,
		BuyQuantity:        input.BuyQuantity,
		GetQuantity:        input.GetQuantity,
		Tiers:              tiersFromInput(input.Tiers),
		MinCartValueCents:  input.MinCartValueCents,
	}
	if input.Code != nil {
		if code := normalizeCode(*input.Code); code != "" {
			promotion.Code = &code
		}
	}
	days, err := normalizeDays(input.DaysOfWeek)
	if err != nil {
		return nil, err
	}
	promotion.DaysOfWeek = days
	if err := validatePromotion(promotion); err != nil {
		return nil, err
	}

	created, err := s.store.Create(ctx, promotion)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: create promotion")
	}
	return NewPromotionDTO(created), nil
}

// Update applies the provided fields and re-validates the whole definition.
func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdatePromotionInput) (*PromotionDTO, error) {
	promotion, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyPromotionUpdate(promotion, input); err != nil {
		return nil, err
	}
	if err := validatePromotion(promotion); err != nil {
		return nil, err
	}
	updated, err := s.store.Update(ctx, promotion)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update promotion")
	}
	return NewPromotionDTO(updated), nil
}

// Delete hard-deletes unused promotions. Once usage history references the
// row it is only ever disabled, preserving the audit trail.
func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	promotion, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	used, err := s.store.CountUsage(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count promotion usage")
	}
	if used > 0 {
		promotion.IsActive = false
		if _, err := s.store.Update(ctx, promotion); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: disable promotion")
		}
		return nil
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: delete promotion")
	}
	return nil
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*models.Promotion, error) {
	promotion, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "promotion not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load promotion")
	}
	return promotion, nil
}

// snapshot reduces a customer row to what the engine needs, including the
// per-promotion redemption counts for per-customer caps.
func (s *service) snapshot(ctx context.Context, customer *models.Customer) (*CustomerSnapshot, error) {
	if customer == nil {
		return nil, nil
	}
	uses, err := s.store.UsageCountsForCustomer(ctx, customer.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load promotion usage counts")
	}
	return &CustomerSnapshot{
		ID:            customer.ID,
		TotalOrders:   customer.TotalOrders,
		PromotionUses: uses,
	}, nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func normalizeDays(days []string) ([]string, error) {
	if len(days) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(days))
	for _, raw := range days {
		day, err := enums.ParseWeekday(raw)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
		}
		out = append(out, day.String())
	}
	return out, nil
}

func tiersFromInput(tiers []TierInput) types.PromotionTiers {
	if len(tiers) == 0 {
		return nil
	}
	out := make(types.PromotionTiers, 0, len(tiers))
	for _, tier := range tiers {
		out = append(out, types.PromotionTier{
			MinQuantity:     tier.MinQuantity,
			DiscountPercent: tier.DiscountPercent,
		})
	}
	return out
}

func validatePromotion(p *models.Promotion) error {
	if p.Name == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if p.Code != nil && !codePattern.MatchString(*p.Code) {
		return pkgerrors.New(pkgerrors.CodeValidation, "code must be 3-32 characters of A-Z, 0-9, dash or underscore")
	}
	if p.EndsAt != nil && !p.EndsAt.After(p.StartsAt) {
		return pkgerrors.New(pkgerrors.CodeValidation, "ends_at must be after starts_at")
	}
	if p.MaxUses != nil && *p.MaxUses <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "max_uses must be positive")
	}
	if p.MaxUsesPerCustomer != nil && *p.MaxUsesPerCustomer <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "max_uses_per_customer must be positive")
	}
	if p.MaxDiscountCents != nil && *p.MaxDiscountCents <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "max_discount_cents must be positive")
	}

	switch p.Type {
	case enums.PromotionTypeBundle:
		if len(p.BundleProductIDs) < 2 {
			return pkgerrors.New(pkgerrors.CodeValidation, "bundle needs at least two products")
		}
		if p.BundlePriceCents <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "bundle_price_cents must be positive")
		}
		return nil
	case enums.PromotionTypeBOGO:
		if p.BuyQuantity < 1 || p.GetQuantity < 1 {
			return pkgerrors.New(pkgerrors.CodeValidation, "buy_quantity and get_quantity must be at least 1")
		}
		return validatePercent(p.DiscountPercent)
	case enums.PromotionTypeTiered:
		if len(p.Tiers) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "tiered promotion needs at least one tier")
		}
		seen := make(map[int]bool, len(p.Tiers))
		for _, tier := range p.Tiers {
			if tier.MinQuantity < 1 {
				return pkgerrors.New(pkgerrors.CodeValidation, "tier min_quantity must be at least 1")
			}
			if seen[tier.MinQuantity] {
				return pkgerrors.New(pkgerrors.CodeValidation, "tier min_quantity values must be unique")
			}
			seen[tier.MinQuantity] = true
			if err := validatePercent(tier.DiscountPercent); err != nil {
				return err
			}
		}
		return nil
	case enums.PromotionTypeCartValue:
		if p.MinCartValueCents <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "min_cart_value_cents must be positive")
		}
	}

	// Remaining types discount by shape: percentage or fixed amount.
	if p.DiscountType == enums.DiscountTypeFixed {
		if p.DiscountValueCents <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "discount_value_cents must be positive")
		}
		return nil
	}
	return validatePercent(p.DiscountPercent)
}

func validatePercent(percent float64) error {
	if percent <= 0 || percent > 100 {
		return pkgerrors.New(pkgerrors.CodeValidation, "discount_percent must be between 0 and 100")
	}
	return nil
}

func applyPromotionUpdate(p *models.Promotion, input UpdatePromotionInput) error {
	if input.Name != nil {
		p.Name = strings.TrimSpace(*input.Name)
	}
	if input.Code != nil {
		if code := normalizeCode(*input.Code); code == "" {
			p.Code = nil
		} else {
			p.Code = &code
		}
	}
	if input.DiscountType != nil {
		parsed, err := enums.ParseDiscountType(*input.DiscountType)
		if err != nil {
			return pkgerrors.New(pkgerrors.CodeValidation, err.Error())
		}
		p.DiscountType = parsed
	}
	if input.DiscountPercent != nil {
		p.DiscountPercent = *input.DiscountPercent
	}
	if input.DiscountValueCents != nil {
		p.DiscountValueCents = *input.DiscountValueCents
	}
	if input.MaxDiscountCents != nil {
		p.MaxDiscountCents = input.MaxDiscountCents
	}
	if input.ProductIDs != nil {
		p.ProductIDs = dbtypes.UUIDArray(*input.ProductIDs)
	}
	if input.CategoryIDs != nil {
		p.CategoryIDs = dbtypes.UUIDArray(*input.CategoryIDs)
	}
	if input.StartsAt != nil {
		p.StartsAt = *input.StartsAt
	}
	if input.EndsAt != nil {
		p.EndsAt = input.EndsAt
	}
	if input.DaysOfWeek != nil {
		days, err := normalizeDays(*input.DaysOfWeek)
		if err != nil {
			return err
		}
		p.DaysOfWeek = days
	}
	if input.MaxUses != nil {
		p.MaxUses = input.MaxUses
	}
	if input.MaxUsesPerCustomer != nil {
		p.MaxUsesPerCustomer = input.MaxUsesPerCustomer
	}
	if input.Priority != nil {
		p.Priority = *input.Priority
	}
	if input.Stackable != nil {
		p.Stackable = *input.Stackable
	}
	if input.IsActive != nil {
		p.IsActive = *input.IsActive
	}
	if input.BundleProductIDs != nil {
		p.BundleProductIDs = dbtypes.UUIDArray(*input.BundleProductIDs)
	}
	if input.BundlePriceCents != nil {
		p.BundlePriceCents = *input.BundlePriceCents
	}
	if input.BuyQuantity != nil {
		p.BuyQuantity = *input.BuyQuantity
	}
	if input.GetQuantity != nil {
		p.GetQuantity = *input.GetQuantity
	}
	if input.Tiers != nil {
		p.Tiers = tiersFromInput(*input.Tiers)
	}
	if input.MinCartValueCents != nil {
		p.MinCartValueCents = *input.MinCartValueCents
	}
	return nil
}
