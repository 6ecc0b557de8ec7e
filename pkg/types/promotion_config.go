package types

import (
	"database/sql/driver"
	"encoding/json"
	"sort"
)

// PromotionTier is one quantity threshold inside a tiered promotion.
type PromotionTier struct {
	MinQuantity     int     `json:"min_quantity"`
	DiscountPercent float64 `json:"discount_percent"`
}

// PromotionTiers is the tier ladder marshaled as JSONB.
type PromotionTiers []PromotionTier

// SortedDesc returns the tiers ordered by MinQuantity descending, so the
// first tier whose threshold fits the quantity is the highest match.
func (p PromotionTiers) SortedDesc() PromotionTiers {
	out := make(PromotionTiers, len(p))
	copy(out, p)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MinQuantity > out[j].MinQuantity
	})
	return out
}

// Value serializes the tiers to JSON.
func (p PromotionTiers) Value() (driver.Value, error) {
	if p == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(p)
}

// Scan decodes JSONB into the tier slice.
func (p *PromotionTiers) Scan(value interface{}) error {
	if value == nil {
		*p = nil
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	var decoded PromotionTiers
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return err
	}
	*p = decoded
	return nil
}
