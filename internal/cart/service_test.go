package cart

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/mieldesol/modhu-backend/pkg/db/models"
	pkgerrors "github.com/mieldesol/modhu-backend/pkg/errors"
)

type fakeRedis struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) (string, error) {
	value, ok := f.data[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	f.ttls[key] = ttl
	return nil
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
		delete(f.ttls, key)
	}
	return nil
}

func (f *fakeRedis) CartKey(sessionID string) string {
	return "mh:cart:" + sessionID
}

type fakeProductLoader struct {
	products map[uuid.UUID]*models.Product
}

func (f *fakeProductLoader) FindProductByID(_ context.Context, id uuid.UUID) (*models.Product, error) {
	product, ok := f.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return product, nil
}

func testProduct(name string, price int64, available, reserved int) *models.Product {
	id := uuid.New()
	return &models.Product{
		ID:         id,
		Slug:       "p-" + id.String()[:8],
		Name:       name,
		CategoryID: uuid.New(),
		PriceCents: price,
		IsActive:   true,
		Inventory: &models.InventoryItem{
			ProductID:    id,
			AvailableQty: available,
			ReservedQty:  reserved,
		},
	}
}

func newCartService(t *testing.T, products ...*models.Product) (Service, *fakeRedis) {
	t.Helper()
	rds := newFakeRedis()
	store, err := NewStore(rds, time.Hour)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	loader := &fakeProductLoader{products: map[uuid.UUID]*models.Product{}}
	for _, p := range products {
		loader.products[p.ID] = p
	}
	svc, err := NewService(store, loader)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, rds
}

func TestServiceGetReturnsEmptyCartOnFirstTouch(t *testing.T) {
	svc, rds := newCartService(t)
	ctx := context.Background()

	cart, err := svc.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !cart.IsEmpty() {
		t.Fatalf("expected empty cart, got %d items", len(cart.Items))
	}
	if cart.SessionID != "sess-1" {
		t.Fatalf("expected session id, got %q", cart.SessionID)
	}
	if len(rds.data) != 0 {
		t.Fatal("first touch should not persist anything")
	}
}

func TestServiceAddItemRoundTrip(t *testing.T) {
	honey := testProduct("Wildflower Honey 500g", 1250, 10, 0)
	dipper := testProduct("Wooden Honey Dipper", 450, 60, 0)
	svc, rds := newCartService(t, honey, dipper)
	ctx := context.Background()

	cart, err := svc.AddItem(ctx, "sess-1", honey.ID, 2)
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if _, err := svc.AddItem(ctx, "sess-1", dipper.ID, 1); err != nil {
		t.Fatalf("AddItem dipper: %v", err)
	}
	// Adding the same product again tops up the existing line.
	cart, err = svc.AddItem(ctx, "sess-1", honey.ID, 3)
	if err != nil {
		t.Fatalf("AddItem top-up: %v", err)
	}

	if len(cart.Items) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(cart.Items))
	}
	if got := cart.ItemQuantity(honey.ID); got != 5 {
		t.Fatalf("expected combined qty 5, got %d", got)
	}
	if want := int64(5*1250 + 450); cart.SubtotalCents() != want {
		t.Fatalf("expected subtotal %d, got %d", want, cart.SubtotalCents())
	}

	// The blob survives a reload.
	reloaded, err := svc.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Get reload: %v", err)
	}
	if reloaded.SubtotalCents() != cart.SubtotalCents() {
		t.Fatalf("reload mismatch: %d vs %d", reloaded.SubtotalCents(), cart.SubtotalCents())
	}
	if ttl := rds.ttls[rds.CartKey("sess-1")]; ttl != time.Hour {
		t.Fatalf("expected ttl refresh to an hour, got %v", ttl)
	}
}

func TestServiceAddItemStockGuard(t *testing.T) {
	honey := testProduct("Acacia Honey 250g", 980, 5, 2)
	svc, _ := newCartService(t, honey)
	ctx := context.Background()

	// Sellable is 3: available 5 minus reserved 2.
	if _, err := svc.AddItem(ctx, "sess-1", honey.ID, 3); err != nil {
		t.Fatalf("AddItem at boundary: %v", err)
	}
	_, err := svc.AddItem(ctx, "sess-1", honey.ID, 1)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeOutOfStock {
		t.Fatalf("expected out of stock on top-up past sellable, got %v", err)
	}

	_, err = svc.AddItem(ctx, "sess-1", uuid.New(), 1)
	typed = pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for unknown product, got %v", err)
	}
}

func TestServiceUpdateItem(t *testing.T) {
	honey := testProduct("Chestnut Honey 500g", 1475, 10, 0)
	svc, _ := newCartService(t, honey)
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, "sess-1", honey.ID, 2); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	cart, err := svc.UpdateItem(ctx, "sess-1", honey.ID, 7)
	if err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	if got := cart.ItemQuantity(honey.ID); got != 7 {
		t.Fatalf("expected qty 7, got %d", got)
	}

	_, err = svc.UpdateItem(ctx, "sess-1", honey.ID, 0)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation for zero qty, got %v", err)
	}

	_, err = svc.UpdateItem(ctx, "sess-1", uuid.New(), 1)
	typed = pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for missing line, got %v", err)
	}
}

func TestServiceRemoveItemAndClear(t *testing.T) {
	honey := testProduct("Orange Blossom Honey 340g", 1120, 10, 0)
	candle := testProduct("Beeswax Candle Pair", 1600, 10, 0)
	svc, rds := newCartService(t, honey, candle)
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, "sess-1", honey.ID, 1); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if _, err := svc.AddItem(ctx, "sess-1", candle.ID, 1); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	cart, err := svc.RemoveItem(ctx, "sess-1", honey.ID)
	if err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	if len(cart.Items) != 1 || cart.Items[0].ProductID != candle.ID {
		t.Fatalf("expected only the candle left, got %+v", cart.Items)
	}

	if err := svc.Clear(ctx, "sess-1"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if len(rds.data) != 0 {
		t.Fatal("expected cart key deleted")
	}

	// Removing from a missing cart yields a fresh empty cart.
	cart, err = svc.RemoveItem(ctx, "sess-2", honey.ID)
	if err != nil {
		t.Fatalf("RemoveItem empty session: %v", err)
	}
	if !cart.IsEmpty() {
		t.Fatal("expected empty cart")
	}
}

func TestServiceRejectsBlankSession(t *testing.T) {
	svc, _ := newCartService(t)
	ctx := context.Background()

	_, err := svc.Get(ctx, "  ")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
