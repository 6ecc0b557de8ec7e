package stripewebhook

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mieldesol/modhu-backend/internal/inventory"
	"github.com/mieldesol/modhu-backend/internal/orders"
	"github.com/mieldesol/modhu-backend/internal/promotions"
	"github.com/mieldesol/modhu-backend/pkg/db/models"
	"github.com/mieldesol/modhu-backend/pkg/enums"
	pkgerrors "github.com/mieldesol/modhu-backend/pkg/errors"
	"github.com/mieldesol/modhu-backend/pkg/logger"
	"github.com/mieldesol/modhu-backend/pkg/outbox"
)

type stubPromotionRecorder struct {
	records []promotions.UsageRecord
	err     error
}

func (s *stubPromotionRecorder) RecordUsageTx(_ context.Context, _ *gorm.DB, usage promotions.UsageRecord) error {
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, usage)
	return nil
}

type stubCustomerCounter struct {
	customerIDs []uuid.UUID
}

func (s *stubCustomerCounter) IncrementTotalOrdersTx(_ context.Context, _ *gorm.DB, customerID uuid.UUID) error {
	s.customerIDs = append(s.customerIDs, customerID)
	return nil
}

type stubCartClearer struct {
	sessions []string
	err      error
}

func (s *stubCartClearer) Clear(_ context.Context, sessionID string) error {
	if s.err != nil {
		return s.err
	}
	s.sessions = append(s.sessions, sessionID)
	return nil
}

type fakeIdempotencyStore struct {
	keys map[string]string
}

func (f *fakeIdempotencyStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if f.keys == nil {
		f.keys = map[string]string{}
	}
	if _, exists := f.keys[key]; exists {
		return false, nil
	}
	f.keys[key] = "1"
	return true, nil
}

func (f *fakeIdempotencyStore) PaymentEventKey(provider, eventID string) string {
	return "mh:event:" + provider + ":" + eventID
}

func (f *fakeIdempotencyStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.keys, key)
	}
	return nil
}

func setupWebhookTestDB(t *testing.T) *gorm.DB {
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

type webhookFixture struct {
	svc       *Service
	db        *gorm.DB
	promos    *stubPromotionRecorder
	customers *stubCustomerCounter
	carts     *stubCartClearer
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()

	db := setupWebhookTestDB(t)
	logg := logger.New(logger.Options{ServiceName: "webhook-test", Level: zerolog.Disabled})

	f := &webhookFixture{
		db:        db,
		promos:    &stubPromotionRecorder{},
		customers: &stubCustomerCounter{},
		carts:     &stubCartClearer{},
	}

	svc, err := NewService(ServiceParams{
		DB:         db,
		Orders:     orders.NewRepository(db),
		Stock:      inventory.NewManager(),
		Inventory:  inventory.NewRepository(db),
		Promotions: f.promos,
		Customers:  f.customers,
		Carts:      f.carts,
		Events:     outbox.NewService(outbox.NewRepository(db), logg),
		Logger:     logg,
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

type orderSeed struct {
	status     enums.OrderStatus
	sessionID  string
	customerID *uuid.UUID
	promotion  *models.Promotion
	qty        int
	available  int
	reserved   int
	threshold  int
}

// seedOrderWithStock writes an order with one line plus its inventory row
// and returns the order and the product id.
func (f *webhookFixture) seedOrderWithStock(t *testing.T, seed orderSeed) (*models.Order, uuid.UUID) {
	t.Helper()

	productID := uuid.New()
	sessionID := seed.sessionID
	order := &models.Order{
		ID:                uuid.New(),
		Number:            77,
		CustomerID:        seed.customerID,
		Email:             "bee@example.com",
		SessionID:         "sess-webhook",
		Status:            seed.status,
		SubtotalCents:     2500,
		ShippingCents:     599,
		TotalCents:        3099,
		CheckoutSessionID: &sessionID,
		Items: []models.OrderLineItem{{
			ID:             uuid.New(),
			ProductID:      &productID,
			Name:           "Wildflower Honey 500g",
			UnitPriceCents: 1250,
			Qty:            seed.qty,
			TotalCents:     1250 * int64(seed.qty),
		}},
	}
	if seed.promotion != nil {
		order.PromotionID = &seed.promotion.ID
		order.PromotionName = &seed.promotion.Name
		order.DiscountCents = 300
	}
	order.Items[0].OrderID = order.ID
	require.NoError(t, f.db.Create(order).Error)

	threshold := seed.threshold
	if threshold == 0 {
		threshold = 5
	}
	require.NoError(t, f.db.Create(&models.InventoryItem{
		ProductID:         productID,
		AvailableQty:      seed.available,
		ReservedQty:       seed.reserved,
		LowStockThreshold: threshold,
	}).Error)
	return order, productID
}

func sessionEvent(t *testing.T, eventType stripe.EventType, sessionID string) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(&stripe.CheckoutSession{ID: sessionID})
	require.NoError(t, err)
	return &stripe.Event{
		ID:   "evt_" + uuid.NewString(),
		Type: eventType,
		Data: &stripe.EventData{Raw: raw},
	}
}

func webhookEventCount(t *testing.T, db *gorm.DB, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&count).Error)
	return count
}

func TestServiceConfirmsPayment(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()

	customerID := uuid.New()
	promo := &models.Promotion{ID: uuid.New(), Name: "Harvest Week"}
	order, productID := f.seedOrderWithStock(t, orderSeed{
		status:     enums.OrderStatusPending,
		sessionID:  "cs_paid",
		customerID: &customerID,
		promotion:  promo,
		qty:        2,
		available:  10,
		reserved:   2,
	})

	err := f.svc.HandleEvent(ctx, sessionEvent(t, stripe.EventTypeCheckoutSessionCompleted, "cs_paid"))
	require.NoError(t, err)

	var got models.Order
	require.NoError(t, f.db.First(&got, "id = ?", order.ID).Error)
	assert.Equal(t, enums.OrderStatusPaid, got.Status)
	assert.NotNil(t, got.PaidAt)

	var item models.InventoryItem
	require.NoError(t, f.db.First(&item, "product_id = ?", productID).Error)
	assert.Equal(t, 8, item.AvailableQty)
	assert.Zero(t, item.ReservedQty)

	require.Len(t, f.promos.records, 1)
	assert.Equal(t, promo.ID, f.promos.records[0].PromotionID)
	assert.Equal(t, order.ID, f.promos.records[0].OrderID)
	assert.Equal(t, int64(300), f.promos.records[0].DiscountCents)

	assert.Equal(t, []uuid.UUID{customerID}, f.customers.customerIDs)
	assert.Equal(t, []string{"sess-webhook"}, f.carts.sessions)

	assert.Equal(t, int64(1), webhookEventCount(t, f.db, enums.EventOrderPaid))
	assert.Equal(t, int64(1), webhookEventCount(t, f.db, enums.EventPromotionApplied))
	assert.Zero(t, webhookEventCount(t, f.db, enums.EventInventoryLowStock))
}

func TestServiceConfirmPaymentEmitsLowStock(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()

	// 6 available, threshold 5: committing 2 lands at 4 and crosses.
	_, productID := f.seedOrderWithStock(t, orderSeed{
		status:    enums.OrderStatusPending,
		sessionID: "cs_lowstock",
		qty:       2,
		available: 6,
		reserved:  2,
		threshold: 5,
	})

	err := f.svc.HandleEvent(ctx, sessionEvent(t, stripe.EventTypeCheckoutSessionCompleted, "cs_lowstock"))
	require.NoError(t, err)

	assert.Equal(t, int64(1), webhookEventCount(t, f.db, enums.EventInventoryLowStock))

	var event models.OutboxEvent
	require.NoError(t, f.db.First(&event, "event_type = ?", enums.EventInventoryLowStock).Error)
	assert.Equal(t, productID.String(), event.AggregateID.String())
}

func TestServiceConfirmPaymentIdempotent(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()

	f.seedOrderWithStock(t, orderSeed{
		status:    enums.OrderStatusPending,
		sessionID: "cs_replay",
		qty:       1,
		available: 10,
		reserved:  1,
	})

	event := sessionEvent(t, stripe.EventTypeCheckoutSessionCompleted, "cs_replay")
	require.NoError(t, f.svc.HandleEvent(ctx, event))
	require.NoError(t, f.svc.HandleEvent(ctx, event))

	assert.Equal(t, int64(1), webhookEventCount(t, f.db, enums.EventOrderPaid))
	assert.Len(t, f.carts.sessions, 1)
	assert.Empty(t, f.promos.records)
}

func TestServiceFailsPayment(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()

	order, productID := f.seedOrderWithStock(t, orderSeed{
		status:    enums.OrderStatusPending,
		sessionID: "cs_expired",
		qty:       3,
		available: 10,
		reserved:  3,
	})

	err := f.svc.HandleEvent(ctx, sessionEvent(t, stripe.EventTypeCheckoutSessionExpired, "cs_expired"))
	require.NoError(t, err)

	var got models.Order
	require.NoError(t, f.db.First(&got, "id = ?", order.ID).Error)
	assert.Equal(t, enums.OrderStatusPaymentFailed, got.Status)

	var item models.InventoryItem
	require.NoError(t, f.db.First(&item, "product_id = ?", productID).Error)
	assert.Equal(t, 10, item.AvailableQty)
	assert.Zero(t, item.ReservedQty)

	assert.Equal(t, int64(1), webhookEventCount(t, f.db, enums.EventOrderPaymentFailed))
	// The shopper may retry, so the cart survives a failed payment.
	assert.Empty(t, f.carts.sessions)
}

func TestServiceFailPaymentIgnoresSettledOrders(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()

	_, productID := f.seedOrderWithStock(t, orderSeed{
		status:    enums.OrderStatusPaid,
		sessionID: "cs_late_expiry",
		qty:       2,
		available: 8,
		reserved:  0,
	})

	err := f.svc.HandleEvent(ctx, sessionEvent(t, stripe.EventTypeCheckoutSessionExpired, "cs_late_expiry"))
	require.NoError(t, err)

	var item models.InventoryItem
	require.NoError(t, f.db.First(&item, "product_id = ?", productID).Error)
	assert.Equal(t, 8, item.AvailableQty)
	assert.Zero(t, webhookEventCount(t, f.db, enums.EventOrderPaymentFailed))
}

func TestServiceHandleEventEdgeCases(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()

	t.Run("unknown event types are ignored", func(t *testing.T) {
		raw, _ := json.Marshal(map[string]string{"id": "in_123"})
		err := f.svc.HandleEvent(ctx, &stripe.Event{
			Type: stripe.EventTypeInvoicePaid,
			Data: &stripe.EventData{Raw: raw},
		})
		assert.NoError(t, err)
	})

	t.Run("missing data rejected", func(t *testing.T) {
		err := f.svc.HandleEvent(ctx, &stripe.Event{Type: stripe.EventTypeCheckoutSessionCompleted})
		typed := pkgerrors.As(err)
		require.NotNil(t, typed)
		assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	})

	t.Run("unknown session is not found", func(t *testing.T) {
		err := f.svc.HandleEvent(ctx, sessionEvent(t, stripe.EventTypeCheckoutSessionCompleted, "cs_ghost"))
		typed := pkgerrors.As(err)
		require.NotNil(t, typed)
		assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
	})
}

func TestIdempotencyGuard(t *testing.T) {
	store := &fakeIdempotencyStore{}
	guard, err := NewIdempotencyGuard(store, time.Hour)
	require.NoError(t, err)
	ctx := context.Background()

	seen, err := guard.CheckAndMark(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = guard.CheckAndMark(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, seen)

	require.NoError(t, guard.Release(ctx, "evt_1"))
	seen, err = guard.CheckAndMark(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)

	_, err = guard.CheckAndMark(ctx, "")
	assert.Error(t, err)
}
