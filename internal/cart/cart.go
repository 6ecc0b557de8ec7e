package cart

import (
	"time"

	"github.com/google/uuid"
)

// Item is one cart line. Name and unit price are snapshotted from the
// catalog when the line is added so the promotion preview and checkout use
// the price the shopper saw.
type Item struct {
	ProductID      uuid.UUID `json:"product_id"`
	CategoryID     uuid.UUID `json:"category_id"`
	Name           string    `json:"name"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	Quantity       int       `json:"quantity"`
}

// TotalCents is the line total.
func (i Item) TotalCents() int64 {
	return i.UnitPriceCents * int64(i.Quantity)
}

// Cart is the session cart blob held in Redis. It is transient state:
// created empty on first touch, mutated by add/update/remove, cleared on
// successful checkout, expired by TTL otherwise.
type Cart struct {
	ID        uuid.UUID `json:"id"`
	SessionID string    `json:"session_id"`
	Items     []Item    `json:"items"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SubtotalCents sums unit price times quantity over every line.
func (c Cart) SubtotalCents() int64 {
	var subtotal int64
	for _, item := range c.Items {
		subtotal += item.TotalCents()
	}
	return subtotal
}

// IsEmpty reports whether the cart holds no lines.
func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// ItemQuantity returns the quantity of the product already in the cart.
func (c Cart) ItemQuantity(productID uuid.UUID) int {
	for _, item := range c.Items {
		if item.ProductID == productID {
			return item.Quantity
		}
	}
	return 0
}

func newCart(sessionID string, now time.Time) *Cart {
	return &Cart{
		ID:        uuid.New(),
		SessionID: sessionID,
		Items:     []Item{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}
