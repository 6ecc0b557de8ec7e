package promotions

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mieldesol/modhu-backend/pkg/db/models"
	dbtypes "github.com/mieldesol/modhu-backend/pkg/db/types"
	"github.com/mieldesol/modhu-backend/pkg/enums"
	pkgerrors "github.com/mieldesol/modhu-backend/pkg/errors"
	"github.com/mieldesol/modhu-backend/pkg/pagination"
	"github.com/mieldesol/modhu-backend/pkg/types"
)

// SeedRefs carries the catalog IDs sample promotions are scoped to. Wiring
// builds it from the seeded demo catalog so scopes line up across stores.
type SeedRefs struct {
	CategoryIDsBySlug map[string]uuid.UUID
	ProductIDsBySlug  map[string]uuid.UUID
}

// FixtureStore is the in-memory promotion store used in demo mode.
type FixtureStore struct {
	mu         sync.RWMutex
	promotions map[uuid.UUID]*models.Promotion
	usage      []*models.PromotionUsage
}

// NewFixtureStore returns an empty in-memory store.
func NewFixtureStore() *FixtureStore {
	return &FixtureStore{promotions: make(map[uuid.UUID]*models.Promotion)}
}

// NewSeededFixtureStore returns the demo store pre-loaded with sample
// promotions scoped against the provided catalog references.
func NewSeededFixtureStore(refs SeedRefs) *FixtureStore {
	s := NewFixtureStore()
	s.seed(refs)
	return s
}

// WithTx is a no-op: the fixture store has no transactions.
func (s *FixtureStore) WithTx(_ *gorm.DB) Store {
	return s
}

func (s *FixtureStore) Create(_ context.Context, promotion *models.Promotion) (*models.Promotion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if promotion.ID == uuid.Nil {
		promotion.ID = uuid.New()
	}
	now := time.Now().UTC()
	promotion.CreatedAt = now
	promotion.UpdatedAt = now
	clone := clonePromotion(promotion)
	s.promotions[promotion.ID] = clone
	return clonePromotion(clone), nil
}

func (s *FixtureStore) Update(_ context.Context, promotion *models.Promotion) (*models.Promotion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.promotions[promotion.ID]; !ok {
		return nil, gorm.ErrRecordNotFound
	}
	promotion.UpdatedAt = time.Now().UTC()
	clone := clonePromotion(promotion)
	s.promotions[promotion.ID] = clone
	return clonePromotion(clone), nil
}

func (s *FixtureStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.promotions, id)
	return nil
}

func (s *FixtureStore) FindByID(_ context.Context, id uuid.UUID) (*models.Promotion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	promotion, ok := s.promotions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return clonePromotion(promotion), nil
}

func (s *FixtureStore) FindByCode(_ context.Context, code string) (*models.Promotion, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, promotion := range s.promotions {
		if promotion.Code != nil && strings.ToUpper(*promotion.Code) == normalized {
			return clonePromotion(promotion), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *FixtureStore) List(_ context.Context, input ListInput) (*ListResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cursor, err := pagination.ParseCursor(input.Pagination.Cursor)
	if err != nil {
		return nil, err
	}
	pageSize := pagination.NormalizeLimit(input.Pagination.Limit)

	rows := make([]*models.Promotion, 0, len(s.promotions))
	for _, promotion := range s.promotions {
		if !input.IncludeInactive && !promotion.IsActive {
			continue
		}
		rows = append(rows, promotion)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].ID.String() > rows[j].ID.String()
		}
		return rows[i].CreatedAt.After(rows[j].CreatedAt)
	})

	if cursor != nil {
		filtered := rows[:0]
		for _, promotion := range rows {
			if promotion.CreatedAt.Before(cursor.CreatedAt) ||
				(promotion.CreatedAt.Equal(cursor.CreatedAt) && promotion.ID.String() < cursor.ID.String()) {
				filtered = append(filtered, promotion)
			}
		}
		rows = filtered
	}

	nextCursor := ""
	if len(rows) > pageSize {
		rows = rows[:pageSize]
		last := rows[len(rows)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}

	promotions := make([]PromotionDTO, 0, len(rows))
	for _, promotion := range rows {
		promotions = append(promotions, *NewPromotionDTO(clonePromotion(promotion)))
	}
	return &ListResult{Promotions: promotions, NextCursor: nextCursor}, nil
}

func (s *FixtureStore) ListActive(_ context.Context, now time.Time) ([]*models.Promotion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Promotion, 0, len(s.promotions))
	for _, promotion := range s.promotions {
		if !promotion.IsActive {
			continue
		}
		if now.Before(promotion.StartsAt) {
			continue
		}
		if promotion.EndsAt != nil && now.After(*promotion.EndsAt) {
			continue
		}
		out = append(out, clonePromotion(promotion))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority == out[j].Priority {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Priority > out[j].Priority
	})
	return out, nil
}

func (s *FixtureStore) IncrementUsageTx(_ context.Context, _ *gorm.DB, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	promotion, ok := s.promotions[id]
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "promotion not found")
	}
	promotion.CurrentUses++
	promotion.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *FixtureStore) CreateUsageTx(_ context.Context, _ *gorm.DB, usage *models.PromotionUsage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if usage.ID == uuid.Nil {
		usage.ID = uuid.New()
	}
	usage.CreatedAt = time.Now().UTC()
	clone := *usage
	s.usage = append(s.usage, &clone)
	return nil
}

func (s *FixtureStore) CountUsage(_ context.Context, promotionID uuid.UUID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int64
	for _, row := range s.usage {
		if row.PromotionID == promotionID {
			count++
		}
	}
	return count, nil
}

func (s *FixtureStore) UsageCountsForCustomer(_ context.Context, customerID uuid.UUID) (map[uuid.UUID]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[uuid.UUID]int)
	for _, row := range s.usage {
		if row.CustomerID != nil && *row.CustomerID == customerID {
			counts[row.PromotionID]++
		}
	}
	return counts, nil
}

func (s *FixtureStore) DeactivateEnded(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var changed int64
	for _, promotion := range s.promotions {
		if promotion.IsActive && promotion.EndsAt != nil && promotion.EndsAt.Before(now) {
			promotion.IsActive = false
			promotion.UpdatedAt = time.Now().UTC()
			changed++
		}
	}
	return changed, nil
}

func clonePromotion(p *models.Promotion) *models.Promotion {
	clone := *p
	clone.ProductIDs = append(dbtypes.UUIDArray(nil), p.ProductIDs...)
	clone.CategoryIDs = append(dbtypes.UUIDArray(nil), p.CategoryIDs...)
	clone.BundleProductIDs = append(dbtypes.UUIDArray(nil), p.BundleProductIDs...)
	clone.DaysOfWeek = append([]string(nil), p.DaysOfWeek...)
	clone.Tiers = append(types.PromotionTiers(nil), p.Tiers...)
	if p.Code != nil {
		code := *p.Code
		clone.Code = &code
	}
	if p.MaxDiscountCents != nil {
		v := *p.MaxDiscountCents
		clone.MaxDiscountCents = &v
	}
	if p.MaxUses != nil {
		v := *p.MaxUses
		clone.MaxUses = &v
	}
	if p.MaxUsesPerCustomer != nil {
		v := *p.MaxUsesPerCustomer
		clone.MaxUsesPerCustomer = &v
	}
	if p.EndsAt != nil {
		v := *p.EndsAt
		clone.EndsAt = &v
	}
	return &clone
}

// seed loads the demo promotions. Scoped entries whose catalog references
// are missing are skipped rather than seeded unscoped.
func (s *FixtureStore) seed(refs SeedRefs) {
	now := time.Now().UTC()
	intp := func(v int) *int { return &v }
	int64p := func(v int64) *int64 { return &v }
	strp := func(v string) *string { return &v }
	timep := func(v time.Time) *time.Time { return &v }

	seedAt := func(p *models.Promotion, offset time.Duration) {
		p.ID = uuid.New()
		p.CreatedAt = now.Add(offset)
		p.UpdatedAt = p.CreatedAt
		s.promotions[p.ID] = p
	}

	if varietals, ok := refs.CategoryIDsBySlug["varietals"]; ok {
		seedAt(&models.Promotion{
			Name:            "Golden Hour Flash Sale",
			Type:            enums.PromotionTypeFlashSale,
			DiscountType:    enums.DiscountTypePercentage,
			DiscountPercent: 15,
			CategoryIDs:     dbtypes.UUIDArray{varietals},
			StartsAt:        now.Add(-7 * 24 * time.Hour),
			EndsAt:          timep(now.Add(21 * 24 * time.Hour)),
			MaxUses:         intp(500),
			Priority:        10,
			IsActive:        true,
		}, -6*time.Hour)

		seedAt(&models.Promotion{
			Name:         "Sweet Dozen",
			Type:         enums.PromotionTypeTiered,
			DiscountType: enums.DiscountTypePercentage,
			CategoryIDs:  dbtypes.UUIDArray{varietals},
			StartsAt:     now.Add(-30 * 24 * time.Hour),
			Tiers: types.PromotionTiers{
				{MinQuantity: 3, DiscountPercent: 5},
				{MinQuantity: 6, DiscountPercent: 10},
				{MinQuantity: 12, DiscountPercent: 15},
			},
			Priority: 5,
			IsActive: true,
		}, -5*time.Hour)
	}

	sampler, okSampler := refs.ProductIDsBySlug["honeymoon-sampler"]
	dipper, okDipper := refs.ProductIDsBySlug["wooden-honey-dipper"]
	candles, okCandles := refs.ProductIDsBySlug["beeswax-candle-pair"]
	if okSampler && okDipper && okCandles {
		seedAt(&models.Promotion{
			Name:             "Honeymoon Gift Bundle",
			Type:             enums.PromotionTypeBundle,
			DiscountType:     enums.DiscountTypeFixed,
			BundleProductIDs: dbtypes.UUIDArray{sampler, dipper, candles},
			BundlePriceCents: 3999,
			StartsAt:         now.Add(-14 * 24 * time.Hour),
			Priority:         8,
			IsActive:         true,
		}, -4*time.Hour)
	}

	seedAt(&models.Promotion{
		Name:             "First Taste",
		Code:             strp("FIRSTTASTE"),
		Type:             enums.PromotionTypeFirstPurchase,
		DiscountType:     enums.DiscountTypePercentage,
		DiscountPercent:  10,
		MaxDiscountCents: int64p(500),
		StartsAt:         now.Add(-90 * 24 * time.Hour),
		Priority:         3,
		IsActive:         true,
	}, -3*time.Hour)

	seedAt(&models.Promotion{
		Name:            "Weekend Harvest",
		Type:            enums.PromotionTypeSeasonal,
		DiscountType:    enums.DiscountTypePercentage,
		DiscountPercent: 8,
		DaysOfWeek:      []string{"saturday", "sunday"},
		StartsAt:        now.Add(-30 * 24 * time.Hour),
		Priority:        4,
		IsActive:        true,
	}, -2*time.Hour)

	seedAt(&models.Promotion{
		Name:               "Hive Five",
		Code:               strp("HIVE5"),
		Type:               enums.PromotionTypeCartValue,
		DiscountType:       enums.DiscountTypeFixed,
		DiscountValueCents: 500,
		MinCartValueCents:  5000,
		StartsAt:           now.Add(-30 * 24 * time.Hour),
		MaxUsesPerCustomer: intp(1),
		Priority:           6,
		IsActive:           true,
	}, -time.Hour)

	seedAt(&models.Promotion{
		Name:             "Queen Bee Club",
		Type:             enums.PromotionTypeLoyalty,
		DiscountType:     enums.DiscountTypePercentage,
		DiscountPercent:  5,
		MaxDiscountCents: int64p(2000),
		StartsAt:         now.Add(-60 * 24 * time.Hour),
		Priority:         2,
		IsActive:         true,
	}, -30*time.Minute)
}
