package visibility

import (
	"github.com/mieldesol/modhu-backend/pkg/db/models"
	pkgerrors "github.com/mieldesol/modhu-backend/pkg/errors"
)

// ProductVisibilityInput drives the shared visibility checks for
// storefront-facing product lookups.
type ProductVisibilityInput struct {
	Product *models.Product
}

// EnsureProductVisible enforces canonical rules so hidden or retired catalog
// entries never leak through storefront queries. Admin queries skip this.
func EnsureProductVisible(input ProductVisibilityInput) error {
	if input.Product == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if !input.Product.IsActive {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return nil
}

// EnsurePurchasable extends the visibility check with a stock gate used by
// cart adds. Listing pages show zero-stock products; carts reject them.
func EnsurePurchasable(product *models.Product, requestedQty int) error {
	if err := EnsureProductVisible(ProductVisibilityInput{Product: product}); err != nil {
		return err
	}
	if requestedQty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if product.Inventory == nil {
		return pkgerrors.New(pkgerrors.CodeOutOfStock, "product is out of stock")
	}
	sellable := product.Inventory.AvailableQty - product.Inventory.ReservedQty
	if sellable < requestedQty {
		detailQty := sellable
		if detailQty < 0 {
			detailQty = 0
		}
		return pkgerrors.New(pkgerrors.CodeOutOfStock, "product is out of stock").WithDetails(map[string]any{
			"product_id":    product.ID,
			"requested_qty": requestedQty,
			"sellable_qty":  detailQty,
		})
	}
	return nil
}
