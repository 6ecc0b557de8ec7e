package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mieldesol/modhu-backend/api/responses"
	"github.com/mieldesol/modhu-backend/api/validators"
	"github.com/mieldesol/modhu-backend/internal/inventory"
	"github.com/mieldesol/modhu-backend/pkg/db/models"
	pkgerrors "github.com/mieldesol/modhu-backend/pkg/errors"
	"github.com/mieldesol/modhu-backend/pkg/logger"
)

type inventoryStore interface {
	Adjust(ctx context.Context, input inventory.AdjustInput) (*models.InventoryItem, error)
	ListLowStock(ctx context.Context) ([]inventory.LowStockRow, error)
}

// QtyDelta zero is allowed so a threshold-only change does not touch stock.
type inventoryAdjustRequest struct {
	QtyDelta          int  `json:"qty_delta" validate:"min=-1000000,max=1000000"`
	LowStockThreshold *int `json:"low_stock_threshold" validate:"omitempty,min=0"`
}

// InventoryAdjust applies a manual stock correction for one product.
func InventoryAdjust(repo inventoryStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory repository unavailable"))
			return
		}

		productID, err := uuid.Parse(chi.URLParam(r, "productId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id"))
			return
		}

		var body inventoryAdjustRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := repo.Adjust(r.Context(), inventory.AdjustInput{
			ProductID:         productID,
			QtyDelta:          body.QtyDelta,
			LowStockThreshold: body.LowStockThreshold,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, item)
	}
}

// InventoryLowStock lists products at or below their alert threshold.
func InventoryLowStock(repo inventoryStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory repository unavailable"))
			return
		}

		rows, err := repo.ListLowStock(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list low stock"))
			return
		}

		responses.WriteSuccess(w, map[string]any{"items": rows})
	}
}
