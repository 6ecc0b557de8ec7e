package enums

import "fmt"

// PromotionType selects the discount computation a promotion runs.
type PromotionType string

const (
	PromotionTypeFlashSale     PromotionType = "flash_sale"
	PromotionTypeSeasonal      PromotionType = "seasonal"
	PromotionTypeBundle        PromotionType = "bundle"
	PromotionTypeBOGO          PromotionType = "bogo"
	PromotionTypeTiered        PromotionType = "tiered"
	PromotionTypeCartValue     PromotionType = "cart_value"
	PromotionTypeFirstPurchase PromotionType = "first_purchase"
	PromotionTypeLoyalty       PromotionType = "loyalty"
)

var validPromotionTypes = []PromotionType{
	PromotionTypeFlashSale,
	PromotionTypeSeasonal,
	PromotionTypeBundle,
	PromotionTypeBOGO,
	PromotionTypeTiered,
	PromotionTypeCartValue,
	PromotionTypeFirstPurchase,
	PromotionTypeLoyalty,
}

// String implements fmt.Stringer.
func (p PromotionType) String() string {
	return string(p)
}

// RequiresCustomer reports whether the type can only apply to a known customer.
func (p PromotionType) RequiresCustomer() bool {
	return p == PromotionTypeFirstPurchase || p == PromotionTypeLoyalty
}

// ParsePromotionType converts raw input into a PromotionType.
func ParsePromotionType(value string) (PromotionType, error) {
	for _, candidate := range validPromotionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid promotion type %q", value)
}

// DiscountType selects between percentage and fixed-amount discounts.
type DiscountType string

const (
	DiscountTypePercentage DiscountType = "percentage"
	DiscountTypeFixed      DiscountType = "fixed"
)

// String implements fmt.Stringer.
func (d DiscountType) String() string {
	return string(d)
}

var validDiscountTypes = []DiscountType{
	DiscountTypePercentage,
	DiscountTypeFixed,
}

// ParseDiscountType converts raw input into a DiscountType.
func ParseDiscountType(value string) (DiscountType, error) {
	for _, candidate := range validDiscountTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid discount type %q", value)
}
