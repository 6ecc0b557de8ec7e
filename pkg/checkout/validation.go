package checkout

import (
	"fmt"

	"github.com/google/uuid"

	pkgerrors "github.com/mieldesol/modhu-backend/pkg/errors"
)

// StockValidationInput describes the data required to verify a line item
// against sellable inventory.
type StockValidationInput struct {
	ProductID   uuid.UUID
	ProductName string
	SellableQty int
	Quantity    int
}

// StockShortfallDetail exposes the data returned to callers when a validation fails.
type StockShortfallDetail struct {
	ProductID    uuid.UUID `json:"product_id"`
	ProductName  string    `json:"product_name,omitempty"`
	SellableQty  int       `json:"sellable_qty"`
	RequestedQty int       `json:"requested_qty"`
}

// ValidateStock ensures every provided line item can be covered by sellable
// stock. It reports all shortfalls at once so the storefront can show the
// full picture instead of failing item by item.
func ValidateStock(items []StockValidationInput) error {
	var shortfalls []StockShortfallDetail
	for _, item := range items {
		if item.Quantity <= item.SellableQty {
			continue
		}
		sellable := item.SellableQty
		if sellable < 0 {
			sellable = 0
		}
		shortfalls = append(shortfalls, StockShortfallDetail{
			ProductID:    item.ProductID,
			ProductName:  item.ProductName,
			SellableQty:  sellable,
			RequestedQty: item.Quantity,
		})
	}
	if len(shortfalls) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeOutOfStock, fmt.Sprintf("insufficient stock for %d item(s)", len(shortfalls))).WithDetails(map[string]any{
		"shortfalls": shortfalls,
	})
}
