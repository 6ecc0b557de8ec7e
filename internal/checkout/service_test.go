package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mieldesol/modhu-backend/internal/cart"
	"github.com/mieldesol/modhu-backend/internal/inventory"
	"github.com/mieldesol/modhu-backend/internal/orders"
	"github.com/mieldesol/modhu-backend/internal/promotions"
	"github.com/mieldesol/modhu-backend/internal/shipping"
	"github.com/mieldesol/modhu-backend/pkg/config"
	"github.com/mieldesol/modhu-backend/pkg/db/models"
	"github.com/mieldesol/modhu-backend/pkg/enums"
	pkgerrors "github.com/mieldesol/modhu-backend/pkg/errors"
	"github.com/mieldesol/modhu-backend/pkg/logger"
	"github.com/mieldesol/modhu-backend/pkg/outbox"
	"github.com/mieldesol/modhu-backend/pkg/types"
)

type stubCartStore struct {
	cart *cart.Cart
	err  error
}

func (s *stubCartStore) Get(context.Context, string) (*cart.Cart, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.cart, nil
}

type stubProductFinder struct {
	products []models.Product
	err      error
}

func (s *stubProductFinder) FindProductsByIDs(context.Context, []uuid.UUID) ([]models.Product, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.products, nil
}

type stubPromotionResolver struct {
	best     *promotions.Selection
	bestErr  error
	coded    *promotions.Selection
	codedErr error
	lastCode string
}

func (s *stubPromotionResolver) BestForCart(context.Context, *cart.Cart, *models.Customer) (*promotions.Selection, error) {
	return s.best, s.bestErr
}

func (s *stubPromotionResolver) ResolveCode(_ context.Context, code string, _ *cart.Cart, _ *models.Customer) (*promotions.Selection, error) {
	s.lastCode = code
	return s.coded, s.codedErr
}

type stubQuoteProvider struct {
	quotes  []shipping.Quote
	err     error
	lastReq shipping.QuoteRequest
}

func (s *stubQuoteProvider) Quotes(_ context.Context, req shipping.QuoteRequest) ([]shipping.Quote, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return s.quotes, nil
}

type stubPaymentClient struct {
	session     *PaymentSession
	err         error
	createCalls int
	expireCalls int
	lastReq     SessionRequest
}

func (s *stubPaymentClient) CreateSession(_ context.Context, req SessionRequest) (*PaymentSession, error) {
	s.createCalls++
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return s.session, nil
}

func (s *stubPaymentClient) ExpireSession(context.Context, string) error {
	s.expireCalls++
	return nil
}

func setupCheckoutTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	ddl := []string{`
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  number INTEGER NOT NULL UNIQUE,
  customer_id TEXT,
  email TEXT NOT NULL,
  session_id TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'pending',
  subtotal_cents INTEGER NOT NULL,
  discount_cents INTEGER NOT NULL DEFAULT 0,
  shipping_cents INTEGER NOT NULL DEFAULT 0,
  total_cents INTEGER NOT NULL,
  promotion_id TEXT,
  promotion_name TEXT,
  shipping_address TEXT,
  shipping_line TEXT,
  tracking_number TEXT,
  checkout_session_id TEXT UNIQUE,
  paid_at DATETIME,
  fulfilled_at DATETIME,
  cancelled_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS order_line_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT,
  category_id TEXT,
  name TEXT NOT NULL,
  unit_price_cents INTEGER NOT NULL,
  qty INTEGER NOT NULL,
  total_cents INTEGER NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS inventory_items (
  product_id TEXT PRIMARY KEY,
  available_qty INTEGER NOT NULL DEFAULT 0,
  reserved_qty INTEGER NOT NULL DEFAULT 0,
  low_stock_threshold INTEGER NOT NULL DEFAULT 5,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`}
	for _, stmt := range ddl {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

type checkoutFixture struct {
	svc      Service
	db       *gorm.DB
	carts    *stubCartStore
	finder   *stubProductFinder
	promos   *stubPromotionResolver
	quotes   *stubQuoteProvider
	payments *stubPaymentClient
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()

	db := setupCheckoutTestDB(t)
	logg := logger.New(logger.Options{ServiceName: "checkout-test", Level: zerolog.Disabled})

	f := &checkoutFixture{
		db:     db,
		carts:  &stubCartStore{},
		finder: &stubProductFinder{},
		promos: &stubPromotionResolver{},
		quotes: &stubQuoteProvider{quotes: []shipping.Quote{
			{Carrier: "velocity", Service: "Ground", Code: "vel_ground", PriceCents: 599, EstimatedDays: 4},
			{Carrier: "velocity", Service: "Express", Code: "vel_express", PriceCents: 1499, EstimatedDays: 1},
		}},
		payments: &stubPaymentClient{session: &PaymentSession{
			ID:          "cs_test_checkout",
			RedirectURL: "https://pay.example.com/cs_test_checkout",
		}},
	}

	svc, err := NewService(
		db,
		f.carts,
		f.finder,
		f.promos,
		f.quotes,
		orders.NewRepository(db),
		inventory.NewManager(),
		outbox.NewService(outbox.NewRepository(db), logg),
		f.payments,
		config.CheckoutConfig{
			SuccessURL:      "https://shop.example.com/checkout/success",
			CancelURL:       "https://shop.example.com/checkout/cancel",
			PendingOrderTTL: 2 * time.Hour,
		},
		logg,
	)
	require.NoError(t, err)
	f.svc = svc
	return f
}

// seedCatalog wires a product, its stub catalog row, its inventory row, and a
// matching cart line in one call.
func (f *checkoutFixture) seedCatalog(t *testing.T, name string, priceCents int64, weightGrams, available, qty int) cart.Item {
	t.Helper()

	productID := uuid.New()
	product := models.Product{
		ID:          productID,
		CategoryID:  uuid.New(),
		Name:        name,
		PriceCents:  priceCents,
		WeightGrams: weightGrams,
		IsActive:    true,
		Inventory: &models.InventoryItem{
			ProductID:    productID,
			AvailableQty: available,
		},
	}
	f.finder.products = append(f.finder.products, product)

	require.NoError(t, f.db.Create(&models.InventoryItem{
		ProductID:         productID,
		AvailableQty:      available,
		LowStockThreshold: 5,
	}).Error)

	return cart.Item{
		ProductID:      productID,
		CategoryID:     product.CategoryID,
		Name:           name,
		UnitPriceCents: priceCents,
		Quantity:       qty,
	}
}

func (f *checkoutFixture) setCart(sessionID string, items ...cart.Item) {
	now := time.Now().UTC()
	f.carts.cart = &cart.Cart{
		ID:        uuid.New(),
		SessionID: sessionID,
		Items:     items,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func sylhetAddress() types.Address {
	return types.Address{
		Name:       "Anika Rahman",
		Line1:      "12 Keane Bridge Rd",
		City:       "Sylhet",
		Region:     "Sylhet",
		PostalCode: "3100",
		Country:    "BD",
	}
}

func checkoutEventCount(t *testing.T, db *gorm.DB, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&count).Error)
	return count
}

func reservedQty(t *testing.T, db *gorm.DB, productID uuid.UUID) int {
	t.Helper()
	var item models.InventoryItem
	require.NoError(t, db.First(&item, "product_id = ?", productID).Error)
	return item.ReservedQty
}

func TestServiceExecuteHappyPath(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()

	wildflower := f.seedCatalog(t, "Wildflower Honey 500g", 1250, 700, 10, 2)
	comb := f.seedCatalog(t, "Honeycomb Slab 200g", 1800, 300, 4, 1)
	f.setCart("sess-happy", wildflower, comb)

	promo := &models.Promotion{ID: uuid.New(), Name: "Harvest Week"}
	f.promos.best = &promotions.Selection{Promotion: promo, DiscountCents: 430}

	res, err := f.svc.Execute(ctx, Input{
		SessionID:       "sess-happy",
		Email:           "bee@example.com",
		ShippingAddress: sylhetAddress(),
	})
	require.NoError(t, err)

	// 2x1250 + 1800 = 4300, minus 430, plus cheapest quote 599.
	assert.Equal(t, int64(4300), res.SubtotalCents)
	assert.Equal(t, int64(430), res.DiscountCents)
	assert.Equal(t, int64(599), res.ShippingCents)
	assert.Equal(t, int64(4469), res.TotalCents)
	assert.Equal(t, int64(1), res.OrderNumber)
	assert.Equal(t, "cs_test_checkout", res.CheckoutSessionID)
	assert.Equal(t, "https://pay.example.com/cs_test_checkout", res.RedirectURL)
	require.NotNil(t, res.PromotionName)
	assert.Equal(t, "Harvest Week", *res.PromotionName)

	var order models.Order
	require.NoError(t, f.db.Preload("Items").First(&order, "id = ?", res.OrderID).Error)
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.Equal(t, "bee@example.com", order.Email)
	assert.Equal(t, "sess-happy", order.SessionID)
	require.NotNil(t, order.CheckoutSessionID)
	assert.Equal(t, "cs_test_checkout", *order.CheckoutSessionID)
	assert.Len(t, order.Items, 2)
	require.NotNil(t, order.ShippingLine)
	assert.Equal(t, "vel_ground", order.ShippingLine.Code)
	require.NotNil(t, order.PromotionID)
	assert.Equal(t, promo.ID, *order.PromotionID)

	assert.Equal(t, 2, reservedQty(t, f.db, wildflower.ProductID))
	assert.Equal(t, 1, reservedQty(t, f.db, comb.ProductID))
	assert.Equal(t, int64(1), checkoutEventCount(t, f.db, enums.EventOrderCreated))

	assert.Equal(t, 1, f.payments.createCalls)
	assert.Equal(t, int64(4469), f.payments.lastReq.TotalCents)
	assert.Equal(t, "bee@example.com", f.payments.lastReq.Email)
	assert.False(t, f.payments.lastReq.ExpiresAt.IsZero())

	// Parcel weight is the sum of line weights; the discounted subtotal
	// drives free-shipping eligibility.
	assert.Equal(t, 2*700+300, f.quotes.lastReq.WeightGrams)
	assert.Equal(t, int64(4300-430), f.quotes.lastReq.SubtotalCents)
	assert.Equal(t, "3100", f.quotes.lastReq.PostalCode)
}

func TestServiceExecuteCustomerCheckout(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()

	item := f.seedCatalog(t, "Forest Honey 250g", 950, 400, 5, 1)
	f.setCart("sess-customer", item)

	customer := &models.Customer{ID: uuid.New(), Email: "regular@example.com"}
	res, err := f.svc.Execute(ctx, Input{
		SessionID:       "sess-customer",
		Customer:        customer,
		ShippingAddress: sylhetAddress(),
	})
	require.NoError(t, err)

	var order models.Order
	require.NoError(t, f.db.First(&order, "id = ?", res.OrderID).Error)
	assert.Equal(t, "regular@example.com", order.Email)
	require.NotNil(t, order.CustomerID)
	assert.Equal(t, customer.ID, *order.CustomerID)
	assert.Nil(t, order.PromotionID)
	assert.Equal(t, int64(0), order.DiscountCents)
}

func TestServiceExecuteValidation(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()

	t.Run("empty cart", func(t *testing.T) {
		f.setCart("sess-empty")
		_, err := f.svc.Execute(ctx, Input{
			SessionID:       "sess-empty",
			Email:           "bee@example.com",
			ShippingAddress: sylhetAddress(),
		})
		typed := pkgerrors.As(err)
		require.NotNil(t, typed)
		assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	})

	t.Run("missing email", func(t *testing.T) {
		_, err := f.svc.Execute(ctx, Input{
			SessionID:       "sess-anon",
			ShippingAddress: sylhetAddress(),
		})
		typed := pkgerrors.As(err)
		require.NotNil(t, typed)
		assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	})

	t.Run("incomplete address", func(t *testing.T) {
		addr := sylhetAddress()
		addr.PostalCode = ""
		_, err := f.svc.Execute(ctx, Input{
			SessionID:       "sess-addr",
			Email:           "bee@example.com",
			ShippingAddress: addr,
		})
		typed := pkgerrors.As(err)
		require.NotNil(t, typed)
		assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	})

	t.Run("vanished product", func(t *testing.T) {
		orphan := cart.Item{
			ProductID:      uuid.New(),
			CategoryID:     uuid.New(),
			Name:           "Retired Blend 500g",
			UnitPriceCents: 999,
			Quantity:       1,
		}
		f.setCart("sess-orphan", orphan)
		_, err := f.svc.Execute(ctx, Input{
			SessionID:       "sess-orphan",
			Email:           "bee@example.com",
			ShippingAddress: sylhetAddress(),
		})
		typed := pkgerrors.As(err)
		require.NotNil(t, typed)
		assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
		assert.Contains(t, typed.Error(), "Retired Blend 500g")
	})
}

func TestServiceExecuteStockShortfall(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()

	scarce := f.seedCatalog(t, "Single Origin 1kg", 3200, 1000, 2, 5)
	plenty := f.seedCatalog(t, "Clover Honey 500g", 1100, 600, 20, 1)
	f.setCart("sess-short", scarce, plenty)

	_, err := f.svc.Execute(ctx, Input{
		SessionID:       "sess-short",
		Email:           "bee@example.com",
		ShippingAddress: sylhetAddress(),
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeOutOfStock, typed.Code())

	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	assert.Contains(t, details, "shortfalls")

	var count int64
	require.NoError(t, f.db.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Zero(t, f.payments.createCalls)
	assert.Zero(t, reservedQty(t, f.db, scarce.ProductID))
}

func TestServiceExecutePromotionCode(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()

	item := f.seedCatalog(t, "Acacia Honey 500g", 1400, 650, 8, 2)
	f.setCart("sess-promo", item)

	t.Run("applies resolved code", func(t *testing.T) {
		promo := &models.Promotion{ID: uuid.New(), Name: "HONEY10"}
		f.promos.coded = &promotions.Selection{Promotion: promo, DiscountCents: 280}

		res, err := f.svc.Execute(ctx, Input{
			SessionID:       "sess-promo",
			Email:           "bee@example.com",
			ShippingAddress: sylhetAddress(),
			PromotionCode:   "HONEY10",
		})
		require.NoError(t, err)
		assert.Equal(t, "HONEY10", f.promos.lastCode)
		assert.Equal(t, int64(280), res.DiscountCents)
	})

	t.Run("rejected code aborts checkout", func(t *testing.T) {
		f.promos.coded = nil
		f.promos.codedErr = pkgerrors.New(pkgerrors.CodeValidation, "promotion code does not apply")

		_, err := f.svc.Execute(ctx, Input{
			SessionID:       "sess-promo",
			Email:           "bee@example.com",
			ShippingAddress: sylhetAddress(),
			PromotionCode:   "EXPIRED",
		})
		typed := pkgerrors.As(err)
		require.NotNil(t, typed)
		assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	})
}

func TestServiceExecuteShippingSelection(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()

	item := f.seedCatalog(t, "Buckwheat Honey 500g", 1600, 700, 10, 1)
	f.setCart("sess-ship", item)

	t.Run("explicit code wins over cheapest", func(t *testing.T) {
		res, err := f.svc.Execute(ctx, Input{
			SessionID:       "sess-ship",
			Email:           "bee@example.com",
			ShippingAddress: sylhetAddress(),
			ShippingCode:    "vel_express",
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1499), res.ShippingCents)
		assert.Equal(t, int64(1600+1499), res.TotalCents)
	})

	t.Run("unknown code rejected", func(t *testing.T) {
		_, err := f.svc.Execute(ctx, Input{
			SessionID:       "sess-ship",
			Email:           "bee@example.com",
			ShippingAddress: sylhetAddress(),
			ShippingCode:    "pigeon_overnight",
		})
		typed := pkgerrors.As(err)
		require.NotNil(t, typed)
		assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	})
}

func TestServiceExecuteParcelWeightFallback(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()

	weightless := f.seedCatalog(t, "Digital Gift Card", 2500, 0, 100, 1)
	f.setCart("sess-weightless", weightless)

	_, err := f.svc.Execute(ctx, Input{
		SessionID:       "sess-weightless",
		Email:           "bee@example.com",
		ShippingAddress: sylhetAddress(),
	})
	require.NoError(t, err)
	assert.Equal(t, fallbackParcelWeightGrams, f.quotes.lastReq.WeightGrams)
}

func TestServiceExecutePaymentFailureCompensates(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()

	item := f.seedCatalog(t, "Wildflower Honey 500g", 1250, 700, 10, 3)
	f.setCart("sess-payfail", item)
	f.payments.err = errors.New("provider unavailable")

	_, err := f.svc.Execute(ctx, Input{
		SessionID:       "sess-payfail",
		Email:           "bee@example.com",
		ShippingAddress: sylhetAddress(),
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodePayment, typed.Code())

	var order models.Order
	require.NoError(t, f.db.First(&order).Error)
	assert.Equal(t, enums.OrderStatusCancelled, order.Status)
	assert.NotNil(t, order.CancelledAt)
	assert.Nil(t, order.CheckoutSessionID)

	// The reservation taken in the checkout transaction is handed back.
	assert.Zero(t, reservedQty(t, f.db, item.ProductID))
	assert.Equal(t, int64(1), checkoutEventCount(t, f.db, enums.EventOrderCreated))
	assert.Equal(t, int64(1), checkoutEventCount(t, f.db, enums.EventOrderCancelled))
	assert.Zero(t, f.payments.expireCalls)
}
