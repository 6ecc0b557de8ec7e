package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mieldesol/modhu-backend/pkg/db/models"
	pkgerrors "github.com/mieldesol/modhu-backend/pkg/errors"
	"github.com/mieldesol/modhu-backend/pkg/visibility"
)

type productLoader interface {
	FindProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// Service exposes session cart operations.
type Service interface {
	Get(ctx context.Context, sessionID string) (*Cart, error)
	AddItem(ctx context.Context, sessionID string, productID uuid.UUID, qty int) (*Cart, error)
	UpdateItem(ctx context.Context, sessionID string, productID uuid.UUID, qty int) (*Cart, error)
	RemoveItem(ctx context.Context, sessionID string, productID uuid.UUID) (*Cart, error)
	Clear(ctx context.Context, sessionID string) error
}

type service struct {
	store    *Store
	products productLoader
	now      func() time.Time
}

// NewService builds the cart service over the Redis store and catalog reads.
func NewService(store *Store, products productLoader) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	return &service{store: store, products: products, now: time.Now}, nil
}

// Get returns the session cart, materializing an empty one on first touch.
func (s *service) Get(ctx context.Context, sessionID string) (*Cart, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}
	cart, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return newCart(sessionID, s.now().UTC()), nil
	}
	return cart, nil
}

// AddItem appends a line or tops up an existing one, snapshotting the
// product's current name and price. Stock is checked against the combined
// quantity so a shopper cannot stage more than is sellable.
func (s *service) AddItem(ctx context.Context, sessionID string, productID uuid.UUID, qty int) (*Cart, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	cart, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	product, err := s.loadProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	requested := cart.ItemQuantity(productID) + qty
	if err := visibility.EnsurePurchasable(product, requested); err != nil {
		return nil, err
	}

	updated := false
	for i := range cart.Items {
		if cart.Items[i].ProductID == productID {
			cart.Items[i].Quantity = requested
			cart.Items[i].Name = product.Name
			cart.Items[i].UnitPriceCents = product.PriceCents
			updated = true
			break
		}
	}
	if !updated {
		cart.Items = append(cart.Items, Item{
			ProductID:      product.ID,
			CategoryID:     product.CategoryID,
			Name:           product.Name,
			UnitPriceCents: product.PriceCents,
			Quantity:       qty,
		})
	}

	cart.UpdatedAt = s.now().UTC()
	if err := s.store.Save(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// UpdateItem replaces a line's quantity.
func (s *service) UpdateItem(ctx context.Context, sessionID string, productID uuid.UUID, qty int) (*Cart, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	cart, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if cart == nil || cart.ItemQuantity(productID) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not in cart")
	}

	product, err := s.loadProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if err := visibility.EnsurePurchasable(product, qty); err != nil {
		return nil, err
	}

	for i := range cart.Items {
		if cart.Items[i].ProductID == productID {
			cart.Items[i].Quantity = qty
			cart.Items[i].Name = product.Name
			cart.Items[i].UnitPriceCents = product.PriceCents
			break
		}
	}

	cart.UpdatedAt = s.now().UTC()
	if err := s.store.Save(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// RemoveItem drops a line from the cart.
func (s *service) RemoveItem(ctx context.Context, sessionID string, productID uuid.UUID) (*Cart, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}

	cart, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return newCart(sessionID, s.now().UTC()), nil
	}

	items := cart.Items[:0]
	for _, item := range cart.Items {
		if item.ProductID != productID {
			items = append(items, item)
		}
	}
	cart.Items = items

	cart.UpdatedAt = s.now().UTC()
	if err := s.store.Save(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// Clear removes the session's cart entirely.
func (s *service) Clear(ctx context.Context, sessionID string) error {
	if err := validateSessionID(sessionID); err != nil {
		return err
	}
	return s.store.Delete(ctx, sessionID)
}

func (s *service) loadProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	product, err := s.products.FindProductByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

func validateSessionID(sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session id required")
	}
	return nil
}
