package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/mieldesol/modhu-backend/internal/promotions"
	"github.com/mieldesol/modhu-backend/pkg/db/models"
	"github.com/mieldesol/modhu-backend/pkg/enums"
	pkgerrors "github.com/mieldesol/modhu-backend/pkg/errors"
	"github.com/mieldesol/modhu-backend/pkg/logger"
	"github.com/mieldesol/modhu-backend/pkg/outbox"
	"github.com/mieldesol/modhu-backend/pkg/outbox/payloads"
)

type orderStore interface {
	FindByCheckoutSession(ctx context.Context, checkoutSessionID string) (*models.Order, error)
	MarkPaidTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
	MarkPaymentFailedTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
}

type stockKeeper interface {
	CommitTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
	ReleaseTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
}

type inventoryReader interface {
	FindByProductTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID) (*models.InventoryItem, error)
}

type promotionRecorder interface {
	RecordUsageTx(ctx context.Context, tx *gorm.DB, usage promotions.UsageRecord) error
}

type customerCounter interface {
	IncrementTotalOrdersTx(ctx context.Context, tx *gorm.DB, customerID uuid.UUID) error
}

type cartClearer interface {
	Clear(ctx context.Context, sessionID string) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type ServiceParams struct {
	DB         *gorm.DB
	Orders     orderStore
	Stock      stockKeeper
	Inventory  inventoryReader
	Promotions promotionRecorder
	Customers  customerCounter
	Carts      cartClearer
	Events     eventEmitter
	Logger     *logger.Logger
}

// Service settles orders from the payment provider's checkout-session
// events. The HTTP controller verifies the signature and the Redis guard
// before events reach HandleEvent.
type Service struct {
	db         *gorm.DB
	orders     orderStore
	stock      stockKeeper
	inventory  inventoryReader
	promotions promotionRecorder
	customers  customerCounter
	carts      cartClearer
	events     eventEmitter
	logg       *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "db handle required")
	}
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order store required")
	}
	if params.Stock == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stock keeper required")
	}
	if params.Inventory == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "inventory reader required")
	}
	if params.Promotions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "promotion recorder required")
	}
	if params.Customers == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "customer counter required")
	}
	if params.Carts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart clearer required")
	}
	if params.Events == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "event emitter required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		db:         params.DB,
		orders:     params.Orders,
		stock:      params.Stock,
		inventory:  params.Inventory,
		promotions: params.Promotions,
		customers:  params.Customers,
		carts:      params.Carts,
		events:     params.Events,
		logg:       params.Logger,
	}, nil
}

// ConfirmPayment settles a checkout session as if the gateway had reported
// success. The demo payment trigger calls it directly; the production path
// arrives through HandleEvent with a signed event.
func (s *Service) ConfirmPayment(ctx context.Context, checkoutSessionID string) error {
	return s.confirmPayment(ctx, checkoutSessionID)
}

// FailPayment is the demo-mode counterpart for a declined session.
func (s *Service) FailPayment(ctx context.Context, checkoutSessionID, reason string) error {
	return s.failPayment(ctx, checkoutSessionID, reason)
}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted,
		stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		session, err := decodeSession(event)
		if err != nil {
			return err
		}
		return s.confirmPayment(ctx, session.ID)
	case stripe.EventTypeCheckoutSessionExpired:
		session, err := decodeSession(event)
		if err != nil {
			return err
		}
		return s.failPayment(ctx, session.ID, "checkout session expired")
	case stripe.EventTypeCheckoutSessionAsyncPaymentFailed:
		session, err := decodeSession(event)
		if err != nil {
			return err
		}
		return s.failPayment(ctx, session.ID, "payment was declined")
	default:
		return nil
	}
}

func decodeSession(event *stripe.Event) (*stripe.CheckoutSession, error) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode checkout session event")
	}
	if session.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout session id missing from event")
	}
	return &session, nil
}

// confirmPayment marks the order paid and settles everything that hangs off
// a successful payment in one transaction.
func (s *Service) confirmPayment(ctx context.Context, checkoutSessionID string) error {
	order, err := s.loadOrder(ctx, checkoutSessionID)
	if err != nil {
		return err
	}
	// Replays past the Redis guard's TTL land here.
	if order.Status == enums.OrderStatusPaid {
		return nil
	}

	paidAt := time.Now().UTC()
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.orders.MarkPaidTx(ctx, tx, order.ID); err != nil {
			return err
		}
		for _, item := range order.Items {
			if item.ProductID == nil {
				continue
			}
			if err := s.commitLine(ctx, tx, item); err != nil {
				return err
			}
		}
		if order.PromotionID != nil {
			if err := s.promotions.RecordUsageTx(ctx, tx, promotions.UsageRecord{
				PromotionID:   *order.PromotionID,
				OrderID:       order.ID,
				CustomerID:    order.CustomerID,
				DiscountCents: order.DiscountCents,
			}); err != nil {
				return err
			}
			if err := s.events.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventPromotionApplied,
				AggregateType: enums.AggregatePromotion,
				AggregateID:   *order.PromotionID,
				Data: payloads.PromotionAppliedEvent{
					PromotionID:   *order.PromotionID,
					PromotionName: derefString(order.PromotionName),
					OrderID:       order.ID,
					CustomerID:    order.CustomerID,
					DiscountCents: order.DiscountCents,
				},
			}); err != nil {
				return err
			}
		}
		if order.CustomerID != nil {
			if err := s.customers.IncrementTotalOrdersTx(ctx, tx, *order.CustomerID); err != nil {
				return err
			}
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.OrderPaidEvent{
				OrderID:       order.ID,
				Number:        order.Number,
				CustomerID:    order.CustomerID,
				Email:         order.Email,
				TotalCents:    order.TotalCents,
				DiscountCents: order.DiscountCents,
				PromotionID:   order.PromotionID,
				PromotionName: order.PromotionName,
				PaidAt:        paidAt,
			},
		})
	})
	if err != nil {
		return err
	}

	// The cart outlived its purpose; losing this delete only leaves a blob
	// for the TTL to reap.
	if order.SessionID != "" {
		if err := s.carts.Clear(ctx, order.SessionID); err != nil {
			s.logg.Warn(ctx, "cart could not be cleared after payment: "+err.Error())
		}
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":     order.ID.String(),
		"order_number": order.Number,
		"total_cents":  order.TotalCents,
	})
	s.logg.Info(logCtx, "order payment confirmed")
	return nil
}

// commitLine converts the line's reservation into a sale and emits a
// low-stock alert when the commit crosses the threshold.
func (s *Service) commitLine(ctx context.Context, tx *gorm.DB, item models.OrderLineItem) error {
	before, err := s.inventory.FindByProductTx(ctx, tx, *item.ProductID)
	if err != nil {
		return err
	}
	if err := s.stock.CommitTx(ctx, tx, *item.ProductID, item.Qty); err != nil {
		return err
	}

	after := before.AvailableQty - item.Qty
	crossed := before.AvailableQty > before.LowStockThreshold && after <= before.LowStockThreshold
	if !crossed {
		return nil
	}
	return s.events.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventInventoryLowStock,
		AggregateType: enums.AggregateInventory,
		AggregateID:   *item.ProductID,
		Data: payloads.InventoryLowStockEvent{
			ProductID:    *item.ProductID,
			ProductName:  item.Name,
			AvailableQty: after,
			Threshold:    before.LowStockThreshold,
		},
	})
}

// failPayment releases the order's reservations once the provider gives up
// on the session.
func (s *Service) failPayment(ctx context.Context, checkoutSessionID, reason string) error {
	order, err := s.loadOrder(ctx, checkoutSessionID)
	if err != nil {
		return err
	}
	// Only pending orders hold reservations. Anything else already settled:
	// paid beat the expiry, or an admin cancelled first.
	if order.Status != enums.OrderStatusPending {
		return nil
	}

	failedAt := time.Now().UTC()
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.orders.MarkPaymentFailedTx(ctx, tx, order.ID); err != nil {
			return err
		}
		for _, item := range order.Items {
			if item.ProductID == nil {
				continue
			}
			if err := s.stock.ReleaseTx(ctx, tx, *item.ProductID, item.Qty); err != nil {
				return err
			}
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaymentFailed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.OrderPaymentFailedEvent{
				OrderID:  order.ID,
				Number:   order.Number,
				Email:    order.Email,
				Reason:   reason,
				FailedAt: failedAt,
			},
		})
	})
	if err != nil {
		return err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":     order.ID.String(),
		"order_number": order.Number,
		"reason":       reason,
	})
	s.logg.Warn(logCtx, "order payment failed")
	return nil
}

func (s *Service) loadOrder(ctx context.Context, checkoutSessionID string) (*models.Order, error) {
	order, err := s.orders.FindByCheckoutSession(ctx, checkoutSessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no order for checkout session")
		}
		return nil, err
	}
	return order, nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
