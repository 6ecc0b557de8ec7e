package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mieldesol/modhu-backend/internal/cart"
	"github.com/mieldesol/modhu-backend/internal/promotions"
	"github.com/mieldesol/modhu-backend/internal/shipping"
	pkgcheckout "github.com/mieldesol/modhu-backend/pkg/checkout"
	"github.com/mieldesol/modhu-backend/pkg/config"
	"github.com/mieldesol/modhu-backend/pkg/db/models"
	"github.com/mieldesol/modhu-backend/pkg/enums"
	pkgerrors "github.com/mieldesol/modhu-backend/pkg/errors"
	"github.com/mieldesol/modhu-backend/pkg/logger"
	"github.com/mieldesol/modhu-backend/pkg/outbox"
	"github.com/mieldesol/modhu-backend/pkg/outbox/payloads"
	"github.com/mieldesol/modhu-backend/pkg/types"
	"github.com/mieldesol/modhu-backend/pkg/visibility"
)

// fallbackParcelWeightGrams stands in when no cart product carries a weight,
// so carrier quoting still has a parcel to price.
const fallbackParcelWeightGrams = 500

type cartStore interface {
	Get(ctx context.Context, sessionID string) (*cart.Cart, error)
}

type productFinder interface {
	FindProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}

type promotionResolver interface {
	BestForCart(ctx context.Context, c *cart.Cart, customer *models.Customer) (*promotions.Selection, error)
	ResolveCode(ctx context.Context, code string, c *cart.Cart, customer *models.Customer) (*promotions.Selection, error)
}

type quoteProvider interface {
	Quotes(ctx context.Context, req shipping.QuoteRequest) ([]shipping.Quote, error)
}

type orderWriter interface {
	NextNumberTx(ctx context.Context, tx *gorm.DB) (int64, error)
	CreateTx(ctx context.Context, tx *gorm.DB, order *models.Order) (*models.Order, error)
	MarkCancelledTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (enums.OrderStatus, error)
	SetCheckoutSession(ctx context.Context, orderID uuid.UUID, checkoutSessionID string) error
}

type stockReserver interface {
	ReserveTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
	ReleaseTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service turns a session cart into a pending order plus a payment session.
type Service interface {
	Execute(ctx context.Context, input Input) (*Result, error)
}

type service struct {
	db       *gorm.DB
	carts    cartStore
	products productFinder
	promos   promotionResolver
	quotes   quoteProvider
	orders   orderWriter
	stock    stockReserver
	events   eventEmitter
	payments PaymentClient
	cfg      config.CheckoutConfig
	logg     *logger.Logger
}

// NewService wires the checkout orchestrator.
func NewService(
	db *gorm.DB,
	carts cartStore,
	products productFinder,
	promos promotionResolver,
	quotes quoteProvider,
	orders orderWriter,
	stock stockReserver,
	events eventEmitter,
	payments PaymentClient,
	cfg config.CheckoutConfig,
	logg *logger.Logger,
) (Service, error) {
	if db == nil {
		return nil, fmt.Errorf("db handle required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if products == nil {
		return nil, fmt.Errorf("product finder required")
	}
	if promos == nil {
		return nil, fmt.Errorf("promotion resolver required")
	}
	if quotes == nil {
		return nil, fmt.Errorf("quote provider required")
	}
	if orders == nil {
		return nil, fmt.Errorf("order writer required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock reserver required")
	}
	if events == nil {
		return nil, fmt.Errorf("event emitter required")
	}
	if payments == nil {
		return nil, fmt.Errorf("payment client required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		db:       db,
		carts:    carts,
		products: products,
		promos:   promos,
		quotes:   quotes,
		orders:   orders,
		stock:    stock,
		events:   events,
		payments: payments,
		cfg:      cfg,
		logg:     logg,
	}, nil
}

// Execute runs the full checkout: validate the cart against live stock,
// settle the promotion and shipping option, then create the pending order
// and its stock reservations in one transaction before opening the payment
// session. The cart stays in Redis until the payment webhook confirms it.
func (s *service) Execute(ctx context.Context, input Input) (*Result, error) {
	email, err := s.validateInput(&input)
	if err != nil {
		return nil, err
	}

	shopperCart, err := s.carts.Get(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}
	if shopperCart.IsEmpty() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	productsByID, weightGrams, err := s.loadProducts(ctx, shopperCart)
	if err != nil {
		return nil, err
	}
	if err := validateStock(shopperCart, productsByID); err != nil {
		return nil, err
	}

	selection, err := s.resolvePromotion(ctx, input, shopperCart)
	if err != nil {
		return nil, err
	}
	var discountCents int64
	if selection != nil {
		discountCents = selection.DiscountCents
	}

	subtotalCents := shopperCart.SubtotalCents()
	shippingLine, err := s.resolveShipping(ctx, input, weightGrams, subtotalCents-discountCents)
	if err != nil {
		return nil, err
	}

	order := s.buildOrder(input, email, shopperCart, selection, shippingLine)
	err = s.db.Transaction(func(tx *gorm.DB) error {
		number, err := s.orders.NextNumberTx(ctx, tx)
		if err != nil {
			return err
		}
		order.Number = number
		for _, item := range shopperCart.Items {
			if err := s.stock.ReserveTx(ctx, tx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}
		if _, err := s.orders.CreateTx(ctx, tx, order); err != nil {
			return err
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data:          orderCreatedPayload(order),
		})
	})
	if err != nil {
		return nil, err
	}

	// The payment session is opened after the commit so a provider outage
	// never rolls back into a half-created order. Failures past this point
	// cancel the order and hand the reservation back.
	session, err := s.payments.CreateSession(ctx, SessionRequest{
		OrderID:     order.ID,
		OrderNumber: order.Number,
		Email:       order.Email,
		TotalCents:  order.TotalCents,
		ExpiresAt:   time.Now().UTC().Add(s.cfg.PendingOrderTTL),
	})
	if err != nil {
		s.abandon(ctx, order)
		return nil, pkgerrors.Wrap(pkgerrors.CodePayment, err, "payment session could not be created")
	}

	if err := s.orders.SetCheckoutSession(ctx, order.ID, session.ID); err != nil {
		s.abandon(ctx, order)
		if expireErr := s.payments.ExpireSession(ctx, session.ID); expireErr != nil {
			s.logg.Error(ctx, "orphaned payment session could not be expired", expireErr)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "checkout session could not be recorded")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":     order.ID.String(),
		"order_number": order.Number,
		"total_cents":  order.TotalCents,
		"session_id":   input.SessionID,
	})
	s.logg.Info(logCtx, "checkout started")

	return &Result{
		OrderID:           order.ID,
		OrderNumber:       order.Number,
		CheckoutSessionID: session.ID,
		RedirectURL:       session.RedirectURL,
		SubtotalCents:     order.SubtotalCents,
		DiscountCents:     order.DiscountCents,
		ShippingCents:     order.ShippingCents,
		TotalCents:        order.TotalCents,
		PromotionName:     order.PromotionName,
	}, nil
}

// validateInput settles the order email and checks the shipping address.
func (s *service) validateInput(input *Input) (string, error) {
	if strings.TrimSpace(input.SessionID) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	email := strings.TrimSpace(input.Email)
	if email == "" && input.Customer != nil {
		email = input.Customer.Email
	}
	if email == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if err := input.ShippingAddress.Validate(); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "shipping address is incomplete")
	}
	return email, nil
}

// loadProducts batch-loads the cart's products with inventory and totals the
// parcel weight. Products that vanished or were hidden since the cart was
// built fail the checkout.
func (s *service) loadProducts(ctx context.Context, shopperCart *cart.Cart) (map[uuid.UUID]*models.Product, int, error) {
	ids := make([]uuid.UUID, 0, len(shopperCart.Items))
	for _, item := range shopperCart.Items {
		ids = append(ids, item.ProductID)
	}
	rows, err := s.products.FindProductsByIDs(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	byID := make(map[uuid.UUID]*models.Product, len(rows))
	for i := range rows {
		byID[rows[i].ID] = &rows[i]
	}

	weightGrams := 0
	for _, item := range shopperCart.Items {
		product, ok := byID[item.ProductID]
		if !ok || visibility.EnsureProductVisible(visibility.ProductVisibilityInput{Product: product}) != nil {
			return nil, 0, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("product %q is no longer available", item.Name))
		}
		weightGrams += product.WeightGrams * item.Quantity
	}
	if weightGrams <= 0 {
		weightGrams = fallbackParcelWeightGrams
	}
	return byID, weightGrams, nil
}

// validateStock reports every shortfall at once so the storefront can show
// the whole problem instead of the first line that failed.
func validateStock(shopperCart *cart.Cart, productsByID map[uuid.UUID]*models.Product) error {
	inputs := make([]pkgcheckout.StockValidationInput, 0, len(shopperCart.Items))
	for _, item := range shopperCart.Items {
		product := productsByID[item.ProductID]
		sellable := 0
		if product.Inventory != nil {
			sellable = product.Inventory.AvailableQty - product.Inventory.ReservedQty
		}
		inputs = append(inputs, pkgcheckout.StockValidationInput{
			ProductID:   item.ProductID,
			ProductName: item.Name,
			SellableQty: sellable,
			Quantity:    item.Quantity,
		})
	}
	return pkgcheckout.ValidateStock(inputs)
}

func (s *service) resolvePromotion(ctx context.Context, input Input, shopperCart *cart.Cart) (*promotions.Selection, error) {
	if strings.TrimSpace(input.PromotionCode) != "" {
		return s.promos.ResolveCode(ctx, input.PromotionCode, shopperCart, input.Customer)
	}
	return s.promos.BestForCart(ctx, shopperCart, input.Customer)
}

// resolveShipping quotes the carriers and picks the requested option, or the
// cheapest when the shopper did not choose one.
func (s *service) resolveShipping(ctx context.Context, input Input, weightGrams int, discountedSubtotal int64) (*types.ShippingLine, error) {
	quotes, err := s.quotes.Quotes(ctx, shipping.QuoteRequest{
		PostalCode:    input.ShippingAddress.PostalCode,
		Country:       input.ShippingAddress.Country,
		WeightGrams:   weightGrams,
		SubtotalCents: discountedSubtotal,
	})
	if err != nil {
		return nil, err
	}
	if len(quotes) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "no shipping options available")
	}

	chosen := quotes[0]
	if code := strings.TrimSpace(input.ShippingCode); code != "" {
		found := false
		for _, quote := range quotes {
			if quote.Code == code {
				chosen = quote
				found = true
				break
			}
		}
		if !found {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping option not available").
				WithDetails(map[string]any{"shipping_code": code})
		}
	}
	return &types.ShippingLine{
		Carrier:       chosen.Carrier,
		Service:       chosen.Service,
		Code:          chosen.Code,
		PriceCents:    chosen.PriceCents,
		EstimatedDays: chosen.EstimatedDays,
	}, nil
}

func (s *service) buildOrder(input Input, email string, shopperCart *cart.Cart, selection *promotions.Selection, line *types.ShippingLine) *models.Order {
	order := &models.Order{
		Email:           email,
		SessionID:       input.SessionID,
		Status:          enums.OrderStatusPending,
		SubtotalCents:   shopperCart.SubtotalCents(),
		ShippingCents:   line.PriceCents,
		ShippingAddress: &input.ShippingAddress,
		ShippingLine:    line,
	}
	if input.Customer != nil {
		order.CustomerID = &input.Customer.ID
	}
	if selection != nil {
		order.DiscountCents = selection.DiscountCents
		order.PromotionID = &selection.Promotion.ID
		order.PromotionName = &selection.Promotion.Name
	}
	order.TotalCents = order.SubtotalCents - order.DiscountCents + order.ShippingCents

	order.Items = make([]models.OrderLineItem, 0, len(shopperCart.Items))
	for _, item := range shopperCart.Items {
		productID := item.ProductID
		lineItem := models.OrderLineItem{
			ProductID:      &productID,
			Name:           item.Name,
			UnitPriceCents: item.UnitPriceCents,
			Qty:            item.Quantity,
			TotalCents:     item.TotalCents(),
		}
		if item.CategoryID != uuid.Nil {
			categoryID := item.CategoryID
			lineItem.CategoryID = &categoryID
		}
		order.Items = append(order.Items, lineItem)
	}
	return order
}

// abandon cancels a freshly created order after the payment provider failed,
// returning its reservations. Best effort: the stale-pending sweep catches
// anything this misses.
func (s *service) abandon(ctx context.Context, order *models.Order) {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.orders.MarkCancelledTx(ctx, tx, order.ID); err != nil {
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
		now := time.Now().UTC()
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.OrderCancelledEvent{
				OrderID:     order.ID,
				Number:      order.Number,
				Email:       order.Email,
				Reason:      "payment session could not be created",
				CancelledAt: now,
			},
		})
	})
	if err != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id":     order.ID.String(),
			"order_number": order.Number,
		})
		s.logg.Error(logCtx, "abandoned order could not be cancelled", err)
	}
}

func orderCreatedPayload(order *models.Order) payloads.OrderCreatedEvent {
	items := make([]payloads.OrderEventItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, payloads.OrderEventItem{
			ProductID:      item.ProductID,
			Name:           item.Name,
			UnitPriceCents: item.UnitPriceCents,
			Qty:            item.Qty,
			TotalCents:     item.TotalCents,
		})
	}
	return payloads.OrderCreatedEvent{
		OrderID:       order.ID,
		Number:        order.Number,
		Email:         order.Email,
		SubtotalCents: order.SubtotalCents,
		DiscountCents: order.DiscountCents,
		ShippingCents: order.ShippingCents,
		TotalCents:    order.TotalCents,
		PromotionID:   order.PromotionID,
		Items:         items,
	}
}
