package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"

	"github.com/mieldesol/modhu-backend/pkg/config"
	pkgstripe "github.com/mieldesol/modhu-backend/pkg/stripe"
)

// SessionRequest describes the pending order a payment session is opened for.
type SessionRequest struct {
	OrderID     uuid.UUID
	OrderNumber int64
	Email       string
	TotalCents  int64
	ExpiresAt   time.Time
}

// PaymentSession is the provider-side session the shopper is redirected to.
type PaymentSession struct {
	ID          string
	RedirectURL string
}

// PaymentClient exposes the subset of payment provider operations the
// checkout service needs.
type PaymentClient interface {
	CreateSession(ctx context.Context, req SessionRequest) (*PaymentSession, error)
	ExpireSession(ctx context.Context, sessionID string) error
}

type stripePaymentClient struct {
	store config.StoreConfig
	urls  config.CheckoutConfig
}

// NewStripePaymentClient wraps the shared Stripe client so the checkout
// service can be tested against a stub.
func NewStripePaymentClient(api *pkgstripe.Client, store config.StoreConfig, urls config.CheckoutConfig) PaymentClient {
	if api == nil {
		return nil
	}
	return &stripePaymentClient{store: store, urls: urls}
}

// CreateSession opens a hosted payment page for the whole order total. The
// order already snapshots per-line pricing, so the provider only sees one
// aggregate line.
func (c *stripePaymentClient) CreateSession(ctx context.Context, req SessionRequest) (*PaymentSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(c.urls.SuccessURL),
		CancelURL:         stripe.String(c.urls.CancelURL),
		CustomerEmail:     stripe.String(req.Email),
		ClientReferenceID: stripe.String(req.OrderID.String()),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(c.store.Currency),
					UnitAmount: stripe.Int64(req.TotalCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(fmt.Sprintf("%s order #%d", c.store.Name, req.OrderNumber)),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	if !req.ExpiresAt.IsZero() {
		params.ExpiresAt = stripe.Int64(req.ExpiresAt.Unix())
	}
	params.Context = ctx
	params.AddMetadata("order_id", req.OrderID.String())
	params.AddMetadata("order_number", fmt.Sprintf("%d", req.OrderNumber))

	sess, err := session.New(params)
	if err != nil {
		return nil, err
	}
	return &PaymentSession{ID: sess.ID, RedirectURL: sess.URL}, nil
}

// ExpireSession voids a session whose order could not be finalized.
func (c *stripePaymentClient) ExpireSession(ctx context.Context, sessionID string) error {
	params := &stripe.CheckoutSessionExpireParams{}
	params.Context = ctx
	_, err := session.Expire(sessionID, params)
	return err
}

type demoPaymentClient struct {
	successURL string
}

// NewDemoPaymentClient returns a provider that approves every checkout
// without leaving the process. Demo mode pairs it with the demo payment
// webhook trigger so the full order lifecycle stays exercisable offline.
func NewDemoPaymentClient(successURL string) PaymentClient {
	return &demoPaymentClient{successURL: successURL}
}

func (c *demoPaymentClient) CreateSession(_ context.Context, _ SessionRequest) (*PaymentSession, error) {
	return &PaymentSession{
		ID:          "cs_demo_" + uuid.NewString(),
		RedirectURL: c.successURL,
	}, nil
}

func (c *demoPaymentClient) ExpireSession(context.Context, string) error {
	return nil
}
