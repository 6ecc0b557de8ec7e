package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/mieldesol/modhu-backend/pkg/carriers"
	"github.com/mieldesol/modhu-backend/pkg/db/models"
	"github.com/mieldesol/modhu-backend/pkg/enums"
	pkgerrors "github.com/mieldesol/modhu-backend/pkg/errors"
	"github.com/mieldesol/modhu-backend/pkg/logger"
	"github.com/mieldesol/modhu-backend/pkg/outbox"
	"github.com/mieldesol/modhu-backend/pkg/outbox/payloads"
	"github.com/mieldesol/modhu-backend/pkg/pagination"
)

// StockReleaser returns units to the pool when an order dies. ReleaseTx
// undoes a reservation; RestockTx undoes a committed sale.
type StockReleaser interface {
	ReleaseTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
	RestockTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
}

// LabelProvider purchases shipping labels for fulfilment. Implemented by
// pkg/carriers clients.
type LabelProvider interface {
	Name() string
	PurchaseLabel(ctx context.Context, req carriers.LabelRequest) (*carriers.Label, error)
}

// ConfirmationMailer resends the order confirmation email on demand.
// Implemented by internal/notifications.
type ConfirmationMailer interface {
	SendOrderConfirmation(ctx context.Context, order *models.Order) error
}

// Service exposes order lookups and the back-office lifecycle actions.
type Service interface {
	LookupByNumber(ctx context.Context, number int64, email string) (*OrderDTO, error)
	ListForCustomer(ctx context.Context, customerID uuid.UUID, page pagination.Params) (*ListResult, error)

	AdminList(ctx context.Context, input AdminListInput) (*ListResult, error)
	AdminGet(ctx context.Context, id uuid.UUID) (*OrderDTO, error)
	Fulfil(ctx context.Context, input FulfilInput) (*OrderDTO, error)
	Cancel(ctx context.Context, input CancelInput) (*OrderDTO, error)
	ResendConfirmation(ctx context.Context, orderID uuid.UUID) error

	// ReleaseStalePending cancels pending orders older than the cutoff and
	// frees their reservations. Run by the cron worker.
	ReleaseStalePending(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

// FulfilInput ships a paid order. When TrackingNumber is empty the service
// purchases a label from the carrier on the order's shipping line, which
// needs a parcel weight.
type FulfilInput struct {
	OrderID        uuid.UUID
	TrackingNumber string
	Carrier        string
	WeightGrams    int
	Actor          *outbox.ActorRef
}

// CancelInput cancels an order and releases or restocks its units.
type CancelInput struct {
	OrderID uuid.UUID
	Reason  string
	Actor   *outbox.ActorRef
}

type service struct {
	store  Store
	db     *gorm.DB
	stock  StockReleaser
	events *outbox.Service
	labels map[string]LabelProvider
	mailer ConfirmationMailer
	logg   *logger.Logger
}

// NewService wires the orders service. Label providers and the mailer are
// optional; the actions that need them fail with a dependency error.
func NewService(store Store, db *gorm.DB, stock StockReleaser, events *outbox.Service, providers []LabelProvider, mailer ConfirmationMailer, logg *logger.Logger) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store required")
	}
	if db == nil {
		return nil, fmt.Errorf("db required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock releaser required")
	}
	if events == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}

	labels := make(map[string]LabelProvider, len(providers))
	for _, provider := range providers {
		if provider == nil {
			continue
		}
		labels[strings.ToLower(provider.Name())] = provider
	}

	return &service{
		store:  store,
		db:     db,
		stock:  stock,
		events: events,
		labels: labels,
		mailer: mailer,
		logg:   logg,
	}, nil
}

func (s *service) LookupByNumber(ctx context.Context, number int64, email string) (*OrderDTO, error) {
	if number <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order number required")
	}
	if strings.TrimSpace(email) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email required")
	}

	order, err := s.store.FindByNumberAndEmail(ctx, number, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: lookup order")
	}
	return NewOrderDTO(order), nil
}

func (s *service) ListForCustomer(ctx context.Context, customerID uuid.UUID, page pagination.Params) (*ListResult, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	result, err := s.store.ListByCustomer(ctx, customerID, page)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) AdminList(ctx context.Context, input AdminListInput) (*ListResult, error) {
	return s.store.AdminList(ctx, input)
}

func (s *service) AdminGet(ctx context.Context, id uuid.UUID) (*OrderDTO, error) {
	order, err := s.loadOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	return NewOrderDTO(order), nil
}

func (s *service) Fulfil(ctx context.Context, input FulfilInput) (*OrderDTO, error) {
	order, err := s.loadOrder(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if !order.Status.CanTransitionTo(enums.OrderStatusFulfilled) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only paid orders can be fulfilled").WithDetails(map[string]any{
			"order_id": order.ID,
			"status":   order.Status,
		})
	}

	tracking := strings.TrimSpace(input.TrackingNumber)
	if tracking == "" {
		label, err := s.purchaseLabel(ctx, order, input)
		if err != nil {
			return nil, err
		}
		tracking = label.TrackingNumber
	}

	fulfilledAt := time.Now()
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.store.MarkFulfilledTx(ctx, tx, order.ID, &tracking); err != nil {
			return err
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderFulfilled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         input.Actor,
			Data: payloads.OrderFulfilledEvent{
				OrderID:        order.ID,
				Number:         order.Number,
				Email:          order.Email,
				Carrier:        shippingCarrier(order),
				Service:        shippingService(order),
				TrackingNumber: tracking,
				FulfilledAt:    fulfilledAt,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id": order.ID.String(),
		"number":   order.Number,
		"tracking": tracking,
	})
	s.logg.Info(logCtx, "order fulfilled")

	return s.AdminGet(ctx, order.ID)
}

// purchaseLabel buys a label from the carrier on the order's shipping line.
// Runs before the status transition so a carrier failure leaves the order
// untouched.
func (s *service) purchaseLabel(ctx context.Context, order *models.Order, input FulfilInput) (*carriers.Label, error) {
	if order.ShippingLine == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order has no shipping selection; provide a tracking number")
	}
	if order.ShippingAddress == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order has no shipping address")
	}
	if input.WeightGrams <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "weight_grams is required to purchase a label")
	}

	carrierName := strings.TrimSpace(input.Carrier)
	if carrierName == "" {
		carrierName = order.ShippingLine.Carrier
	}
	provider, ok := s.labels[strings.ToLower(carrierName)]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "carrier not configured").WithDetails(map[string]any{
			"carrier": carrierName,
		})
	}

	label, err := provider.PurchaseLabel(ctx, carriers.LabelRequest{
		OrderNumber: order.Number,
		ServiceCode: order.ShippingLine.Code,
		WeightGrams: input.WeightGrams,
		Destination: *order.ShippingAddress,
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":  order.ID.String(),
		"carrier":   carrierName,
		"label_url": label.LabelURL,
	})
	s.logg.Info(logCtx, "shipping label purchased")
	return label, nil
}

func (s *service) Cancel(ctx context.Context, input CancelInput) (*OrderDTO, error) {
	order, err := s.loadOrder(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if !order.Status.CanTransitionTo(enums.OrderStatusCancelled) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is already closed").WithDetails(map[string]any{
			"order_id": order.ID,
			"status":   order.Status,
		})
	}

	if err := s.cancelTx(ctx, order, input.Reason, input.Actor); err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id": order.ID.String(),
		"number":   order.Number,
		"reason":   input.Reason,
	})
	s.logg.Info(logCtx, "order cancelled")

	return s.AdminGet(ctx, order.ID)
}

// cancelTx runs the guarded transition, returns stock, and queues the event
// in one transaction. Pending orders still hold reservations; paid orders
// already committed theirs; failed payments released on the way in.
func (s *service) cancelTx(ctx context.Context, order *models.Order, reason string, actor *outbox.ActorRef) error {
	cancelledAt := time.Now()
	return s.db.Transaction(func(tx *gorm.DB) error {
		// The loaded snapshot can be stale by the time the transaction runs
		// (a webhook may have confirmed payment in between). The stock
		// movement follows the status the transition actually matched.
		prior, err := s.store.MarkCancelledTx(ctx, tx, order.ID)
		if err != nil {
			return err
		}

		for i := range order.Items {
			item := order.Items[i]
			if item.ProductID == nil {
				continue
			}
			switch prior {
			case enums.OrderStatusPending:
				if err := s.stock.ReleaseTx(ctx, tx, *item.ProductID, item.Qty); err != nil {
					return err
				}
			case enums.OrderStatusPaid:
				if err := s.stock.RestockTx(ctx, tx, *item.ProductID, item.Qty); err != nil {
					return err
				}
			}
		}

		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actor,
			Data: payloads.OrderCancelledEvent{
				OrderID:     order.ID,
				Number:      order.Number,
				Email:       order.Email,
				Reason:      reason,
				CancelledAt: cancelledAt,
			},
		})
	})
}

func (s *service) ResendConfirmation(ctx context.Context, orderID uuid.UUID) error {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.PaidAt == nil {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order has no confirmation to resend")
	}
	if s.mailer == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "mail sender not configured")
	}

	if err := s.mailer.SendOrderConfirmation(ctx, order); err != nil {
		return err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id": order.ID.String(),
		"number":   order.Number,
	})
	s.logg.Info(logCtx, "order confirmation resent")
	return nil
}

func (s *service) ReleaseStalePending(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	if olderThan <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "cutoff must be positive")
	}
	cutoff := time.Now().Add(-olderThan)

	stale, err := s.store.FindStalePending(ctx, cutoff, limit)
	if err != nil {
		return 0, err
	}

	var (
		released int
		errs     error
	)
	for _, order := range stale {
		if err := s.cancelTx(ctx, order, "payment window expired", nil); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("order %d: %w", order.Number, err))
			continue
		}
		released++
	}

	if released > 0 {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"released": released,
			"cutoff":   cutoff.Format(time.RFC3339),
		})
		s.logg.Info(logCtx, "stale pending orders released")
	}
	return released, errs
}

func (s *service) loadOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load order")
	}
	return order, nil
}

func shippingCarrier(order *models.Order) string {
	if order.ShippingLine == nil {
		return ""
	}
	return order.ShippingLine.Carrier
}

func shippingService(order *models.Order) string {
	if order.ShippingLine == nil {
		return ""
	}
	return order.ShippingLine.Service
}
