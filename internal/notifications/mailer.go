package notifications

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/mieldesol/modhu-backend/pkg/config"
	"github.com/mieldesol/modhu-backend/pkg/db/models"
	pkgerrors "github.com/mieldesol/modhu-backend/pkg/errors"
	"github.com/mieldesol/modhu-backend/pkg/logger"
	"github.com/mieldesol/modhu-backend/pkg/metrics"
	"github.com/mieldesol/modhu-backend/pkg/sendgrid"
)

const (
	templateOrderConfirmation = "order_confirmation"
	templateOrderFulfilled    = "order_fulfilled"
	templateOrderCancelled    = "order_cancelled"

	sendRetryBase  = 500 * time.Millisecond
	maxSendRetries = 3
)

// Sender posts one rendered message to the email provider.
type Sender interface {
	Send(ctx context.Context, msg sendgrid.Message) error
}

// Mailer renders order lifecycle emails and sends them with bounded retries
// on transient provider failures.
type Mailer struct {
	sender     Sender
	store      config.StoreConfig
	logg       *logger.Logger
	metrics    *metrics.DispatchMetrics
	retryBase  time.Duration
	maxRetries uint64
}

func NewMailer(sender Sender, store config.StoreConfig, logg *logger.Logger, m *metrics.DispatchMetrics) (*Mailer, error) {
	if sender == nil {
		return nil, fmt.Errorf("email sender required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Mailer{
		sender:     sender,
		store:      store,
		logg:       logg,
		metrics:    m,
		retryBase:  sendRetryBase,
		maxRetries: maxSendRetries,
	}, nil
}

// SendOrderConfirmation emails the payment receipt with the order's line
// items. The admin resend endpoint reuses it.
func (m *Mailer) SendOrderConfirmation(ctx context.Context, order *models.Order) error {
	return m.sendOrderEmail(ctx, templateOrderConfirmation, order, "")
}

// SendOrderFulfilled emails the shipping notice with carrier and tracking.
func (m *Mailer) SendOrderFulfilled(ctx context.Context, order *models.Order) error {
	return m.sendOrderEmail(ctx, templateOrderFulfilled, order, "")
}

// SendOrderCancelled emails the cancellation notice.
func (m *Mailer) SendOrderCancelled(ctx context.Context, order *models.Order, reason string) error {
	return m.sendOrderEmail(ctx, templateOrderCancelled, order, reason)
}

func (m *Mailer) sendOrderEmail(ctx context.Context, kind string, order *models.Order, reason string) error {
	if order == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}
	if strings.TrimSpace(order.Email) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "order has no email address")
	}

	rendered, err := renderOrderEmail(kind, m.store.Name, order, reason)
	if err != nil {
		m.metrics.IncEmailFailed(kind)
		return err
	}

	msg := sendgrid.Message{
		To:       order.Email,
		From:     m.store.FromEmail,
		Subject:  rendered.Subject,
		HTMLBody: rendered.HTMLBody,
		TextBody: rendered.TextBody,
	}
	if order.ShippingAddress != nil {
		msg.ToName = order.ShippingAddress.Name
	}

	backoff := retry.WithMaxRetries(m.maxRetries, retry.NewExponential(m.retryBase))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		sendErr := m.sender.Send(ctx, msg)
		if sendErr == nil {
			return nil
		}
		if pkgerrors.IsRetryable(sendErr) {
			return retry.RetryableError(sendErr)
		}
		return sendErr
	})
	if err != nil {
		m.metrics.IncEmailFailed(kind)
		return err
	}
	m.metrics.IncEmailSent(kind)

	logCtx := m.logg.WithFields(ctx, map[string]any{
		"order_id": order.ID.String(),
		"number":   order.Number,
		"template": kind,
	})
	m.logg.Info(logCtx, "order email sent")
	return nil
}
