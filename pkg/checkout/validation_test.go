package checkout

import (
	"testing"

	"github.com/google/uuid"

	pkgerrors "github.com/mieldesol/modhu-backend/pkg/errors"
)

func TestValidateStock_NoShortfalls(t *testing.T) {
	items := []StockValidationInput{
		{
			ProductID:   uuid.New(),
			ProductName: "Wildflower Honey 500g",
			SellableQty: 10,
			Quantity:    10,
		},
		{
			ProductID:   uuid.New(),
			ProductName: "Acacia Honey 250g",
			SellableQty: 3,
			Quantity:    1,
		},
	}
	if err := ValidateStock(items); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidateStock_Shortfalls(t *testing.T) {
	shortItems := []StockValidationInput{
		{
			ProductID:   uuid.New(),
			ProductName: "Chestnut Honey 500g",
			SellableQty: 2,
			Quantity:    5,
		},
		{
			ProductID:   uuid.New(),
			ProductName: "Oversold Sampler",
			SellableQty: -1,
			Quantity:    1,
		},
	}
	err := ValidateStock(shortItems)
	if err == nil {
		t.Fatal("expected error for stock shortfall")
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected pkgerrors.Error, got %T", err)
	}
	if typed.Code() != pkgerrors.CodeOutOfStock {
		t.Fatalf("expected code %s, got %s", pkgerrors.CodeOutOfStock, typed.Code())
	}
	details, ok := typed.Details().(map[string]any)
	if !ok {
		t.Fatalf("expected details map, got %T", typed.Details())
	}
	rawShortfalls, ok := details["shortfalls"].([]StockShortfallDetail)
	if !ok {
		t.Fatalf("expected shortfalls slice, got %T", details["shortfalls"])
	}
	if len(rawShortfalls) != len(shortItems) {
		t.Fatalf("expected %d shortfalls, got %d", len(shortItems), len(rawShortfalls))
	}
	for i, shortfall := range rawShortfalls {
		input := shortItems[i]
		if shortfall.ProductID != input.ProductID {
			t.Fatalf("expected product id %s, got %s", input.ProductID, shortfall.ProductID)
		}
		if shortfall.ProductName != input.ProductName {
			t.Fatalf("expected product name %q, got %q", input.ProductName, shortfall.ProductName)
		}
		if shortfall.RequestedQty != input.Quantity {
			t.Fatalf("expected requested qty %d, got %d", input.Quantity, shortfall.RequestedQty)
		}
		if shortfall.SellableQty < 0 {
			t.Fatalf("expected sellable qty clamped to zero, got %d", shortfall.SellableQty)
		}
	}
}
