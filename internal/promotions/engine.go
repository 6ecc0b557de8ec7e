// Package promotions hosts the discount engine and the admin surface for
// managing promotion definitions. Evaluation is pure: callers pass the cart,
// an optional customer snapshot, and the clock reading, and get back an
// applicability verdict plus the discount in cents. Selection and usage
// recording are the only places promotions touch storage.
package promotions

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mieldesol/modhu-backend/internal/cart"
	"github.com/mieldesol/modhu-backend/pkg/db/models"
	"github.com/mieldesol/modhu-backend/pkg/enums"
	"github.com/mieldesol/modhu-backend/pkg/money"
)

// DefaultLoyaltyMinOrders gates loyalty promotions when no minimum is
// configured.
const DefaultLoyaltyMinOrders = 3

// CustomerSnapshot carries the slice of customer state the engine needs.
// A nil snapshot means a guest shopper.
type CustomerSnapshot struct {
	ID          uuid.UUID
	TotalOrders int
	// PromotionUses maps promotion ID to how many paid orders of this
	// customer already redeemed it.
	PromotionUses map[uuid.UUID]int
}

// Evaluation is the outcome of running one promotion against one cart.
// Reason is set whenever the promotion does not apply.
type Evaluation struct {
	Applicable    bool   `json:"applicable"`
	DiscountCents int64  `json:"discount_cents"`
	Reason        string `json:"reason,omitempty"`
}

// Selection pairs the winning promotion with its computed discount.
type Selection struct {
	Promotion     *models.Promotion
	DiscountCents int64
}

// Engine evaluates promotions. It holds only configuration, never state.
type Engine struct {
	loyaltyMinOrders int
}

// NewEngine builds an Engine. A non-positive loyalty minimum falls back to
// DefaultLoyaltyMinOrders.
func NewEngine(loyaltyMinOrders int) Engine {
	if loyaltyMinOrders <= 0 {
		loyaltyMinOrders = DefaultLoyaltyMinOrders
	}
	return Engine{loyaltyMinOrders: loyaltyMinOrders}
}

// Evaluate runs the eligibility pre-checks in order and, when they pass,
// computes the type-specific discount. The promotion applies iff the
// discount is strictly positive. Malformed configuration degrades to a zero
// discount instead of an error.
func (e Engine) Evaluate(p *models.Promotion, c *cart.Cart, customer *CustomerSnapshot, now time.Time) Evaluation {
	if p == nil || c == nil {
		return Evaluation{Reason: "nothing to evaluate"}
	}
	if !p.IsActive {
		return Evaluation{Reason: "promotion is not active"}
	}
	if now.Before(p.StartsAt) {
		return Evaluation{Reason: "promotion has not started"}
	}
	if p.EndsAt != nil && now.After(*p.EndsAt) {
		return Evaluation{Reason: "promotion has ended"}
	}
	if len(p.DaysOfWeek) > 0 && !matchesWeekday(p.DaysOfWeek, now) {
		return Evaluation{Reason: "promotion is not available today"}
	}
	if p.MaxUses != nil && p.CurrentUses >= *p.MaxUses {
		return Evaluation{Reason: "promotion usage limit reached"}
	}
	if p.MaxUsesPerCustomer != nil && customer != nil &&
		customer.PromotionUses[p.ID] >= *p.MaxUsesPerCustomer {
		return Evaluation{Reason: "promotion already used the maximum number of times"}
	}
	if p.Type.RequiresCustomer() && customer == nil {
		return Evaluation{Reason: "sign in to use this promotion"}
	}
	if p.Type == enums.PromotionTypeFirstPurchase && customer.TotalOrders > 0 {
		return Evaluation{Reason: "available on a first order only"}
	}
	if p.Type == enums.PromotionTypeLoyalty && customer.TotalOrders < e.loyaltyMinOrders {
		return Evaluation{Reason: fmt.Sprintf("requires at least %d prior orders", e.loyaltyMinOrders)}
	}

	discount, reason := e.computeDiscount(p, c)
	if discount <= 0 {
		if reason == "" {
			reason = "promotion does not apply to this cart"
		}
		return Evaluation{Reason: reason}
	}
	return Evaluation{Applicable: true, DiscountCents: discount}
}

// BestPromotion evaluates every candidate and returns the one with the
// strictly greatest discount. Equal discounts fall back to the higher
// priority; equal priorities fall back to the lexically smaller promotion
// ID, so the pick is deterministic regardless of input order. Returns nil
// when nothing applies.
func (e Engine) BestPromotion(candidates []*models.Promotion, c *cart.Cart, customer *CustomerSnapshot, now time.Time) *Selection {
	var best *Selection
	for _, p := range candidates {
		if p == nil {
			continue
		}
		eval := e.Evaluate(p, c, customer, now)
		if !eval.Applicable {
			continue
		}
		if best == nil || beats(p, eval.DiscountCents, best) {
			best = &Selection{Promotion: p, DiscountCents: eval.DiscountCents}
		}
	}
	return best
}

func beats(p *models.Promotion, discount int64, best *Selection) bool {
	if discount != best.DiscountCents {
		return discount > best.DiscountCents
	}
	if p.Priority != best.Promotion.Priority {
		return p.Priority > best.Promotion.Priority
	}
	return strings.Compare(p.ID.String(), best.Promotion.ID.String()) < 0
}

func (e Engine) computeDiscount(p *models.Promotion, c *cart.Cart) (int64, string) {
	switch p.Type {
	case enums.PromotionTypeFlashSale, enums.PromotionTypeSeasonal:
		return itemScopedDiscount(p, c)
	case enums.PromotionTypeBundle:
		return bundleDiscount(p, c)
	case enums.PromotionTypeBOGO:
		return bogoDiscount(p, c)
	case enums.PromotionTypeTiered:
		return tieredDiscount(p, c)
	case enums.PromotionTypeCartValue:
		return cartValueDiscount(p, c)
	case enums.PromotionTypeFirstPurchase, enums.PromotionTypeLoyalty:
		return subtotalDiscount(p, c)
	default:
		return 0, "unknown promotion type"
	}
}

// itemEligible implements the scope test: an unrestricted promotion covers
// every item, otherwise the item's product or category must be listed.
func itemEligible(p *models.Promotion, item cart.Item) bool {
	if len(p.ProductIDs) == 0 && len(p.CategoryIDs) == 0 {
		return true
	}
	if p.ProductIDs.Contains(item.ProductID) {
		return true
	}
	return p.CategoryIDs.Contains(item.CategoryID)
}

func eligibleItems(p *models.Promotion, c *cart.Cart) []cart.Item {
	out := make([]cart.Item, 0, len(c.Items))
	for _, item := range c.Items {
		if itemEligible(p, item) {
			out = append(out, item)
		}
	}
	return out
}

func itemScopedDiscount(p *models.Promotion, c *cart.Cart) (int64, string) {
	var subtotal int64
	for _, item := range eligibleItems(p, c) {
		subtotal += item.TotalCents()
	}
	if subtotal <= 0 {
		return 0, "no eligible items in cart"
	}
	if p.DiscountType == enums.DiscountTypeFixed {
		return money.ClampToBase(p.DiscountValueCents, subtotal), ""
	}
	return money.ApplyPercent(subtotal, money.PercentFromFloat(p.DiscountPercent)), ""
}

func bundleDiscount(p *models.Promotion, c *cart.Cart) (int64, string) {
	if len(p.BundleProductIDs) == 0 {
		return 0, "bundle has no products configured"
	}
	prices := make(map[uuid.UUID]int64, len(c.Items))
	for _, item := range c.Items {
		if item.Quantity > 0 {
			prices[item.ProductID] = item.UnitPriceCents
		}
	}
	var sum int64
	for _, productID := range p.BundleProductIDs {
		price, ok := prices[productID]
		if !ok {
			return 0, "cart is missing a bundle item"
		}
		sum += price
	}
	discount := sum - p.BundlePriceCents
	if discount <= 0 {
		return 0, "bundle price does not save anything"
	}
	return discount, ""
}

func bogoDiscount(p *models.Promotion, c *cart.Cart) (int64, string) {
	if p.BuyQuantity <= 0 {
		return 0, "promotion is misconfigured"
	}
	items := eligibleItems(p, c)
	var qty int
	lowest := int64(-1)
	for _, item := range items {
		if item.Quantity <= 0 {
			continue
		}
		qty += item.Quantity
		if lowest < 0 || item.UnitPriceCents < lowest {
			lowest = item.UnitPriceCents
		}
	}
	sets := qty / p.BuyQuantity
	freeUnits := sets * p.GetQuantity
	if freeUnits <= 0 || lowest <= 0 {
		return 0, "not enough eligible items in cart"
	}
	base := int64(freeUnits) * lowest
	return money.ApplyPercent(base, money.PercentFromFloat(p.DiscountPercent)), ""
}

func tieredDiscount(p *models.Promotion, c *cart.Cart) (int64, string) {
	if len(p.Tiers) == 0 {
		return 0, "promotion is misconfigured"
	}
	var qty int
	var subtotal int64
	for _, item := range eligibleItems(p, c) {
		qty += item.Quantity
		subtotal += item.TotalCents()
	}
	for _, tier := range p.Tiers.SortedDesc() {
		if qty >= tier.MinQuantity {
			return money.ApplyPercent(subtotal, money.PercentFromFloat(tier.DiscountPercent)), ""
		}
	}
	return 0, "not enough eligible items in cart"
}

func cartValueDiscount(p *models.Promotion, c *cart.Cart) (int64, string) {
	subtotal := c.SubtotalCents()
	if subtotal < p.MinCartValueCents {
		return 0, "cart subtotal is below the promotion minimum"
	}
	if p.DiscountType == enums.DiscountTypeFixed {
		return money.ClampToBase(p.DiscountValueCents, subtotal), ""
	}
	return money.ApplyPercent(subtotal, money.PercentFromFloat(p.DiscountPercent)), ""
}

func subtotalDiscount(p *models.Promotion, c *cart.Cart) (int64, string) {
	subtotal := c.SubtotalCents()
	if subtotal <= 0 {
		return 0, "cart is empty"
	}
	if p.DiscountType == enums.DiscountTypeFixed {
		return money.ClampToBase(p.DiscountValueCents, subtotal), ""
	}
	discount := money.ApplyPercent(subtotal, money.PercentFromFloat(p.DiscountPercent))
	if p.MaxDiscountCents != nil && *p.MaxDiscountCents > 0 && discount > *p.MaxDiscountCents {
		discount = *p.MaxDiscountCents
	}
	return discount, ""
}

func matchesWeekday(days []string, now time.Time) bool {
	today := now.Weekday()
	for _, raw := range days {
		day, err := enums.ParseWeekday(raw)
		if err != nil {
			continue
		}
		if parsed, ok := day.Time(); ok && parsed == today {
			return true
		}
	}
	return false
}
