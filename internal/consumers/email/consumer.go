package email

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/mieldesol/modhu-backend/pkg/db/models"
	"github.com/mieldesol/modhu-backend/pkg/enums"
	"github.com/mieldesol/modhu-backend/pkg/logger"
	"github.com/mieldesol/modhu-backend/pkg/outbox"
	"github.com/mieldesol/modhu-backend/pkg/outbox/payloads"
)

const emailConsumerName = "order-emails"

type orderMailer interface {
	SendOrderConfirmation(ctx context.Context, order *models.Order) error
	SendOrderFulfilled(ctx context.Context, order *models.Order) error
	SendOrderCancelled(ctx context.Context, order *models.Order, reason string) error
}

type orderLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Release(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Consumer turns order lifecycle events into customer emails while honoring
// Redis idempotency.
type Consumer struct {
	mailer      orderMailer
	orders      orderLoader
	manager     idempotencyChecker
	logg        *logger.Logger
	eventFilter map[enums.OutboxEventType]struct{}
}

// NewConsumer builds a new order email consumer.
func NewConsumer(mailer orderMailer, orders orderLoader, manager idempotencyChecker, logg *logger.Logger) (*Consumer, error) {
	if mailer == nil {
		return nil, fmt.Errorf("mailer required")
	}
	if orders == nil {
		return nil, fmt.Errorf("order loader required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		mailer:  mailer,
		orders:  orders,
		manager: manager,
		logg:    logg,
		eventFilter: map[enums.OutboxEventType]struct{}{
			enums.EventOrderPaid:      {},
			enums.EventOrderFulfilled: {},
			enums.EventOrderCancelled: {},
		},
	}, nil
}

// Process sends the email for the envelope if the event type carries one.
func (c *Consumer) Process(ctx context.Context, eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) error {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"event_id":   envelope.EventID,
		"event_type": eventType,
	})

	if _, ok := c.eventFilter[eventType]; !ok {
		c.logg.Info(logCtx, "event not handled by email consumer")
		return nil
	}

	if envelope.EventID == "" {
		return fmt.Errorf("event id missing")
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		return fmt.Errorf("parse event id: %w", err)
	}

	already, err := c.manager.CheckAndMarkProcessed(ctx, emailConsumerName, eventID)
	if err != nil {
		return fmt.Errorf("idempotency check: %w", err)
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return nil
	}

	orderID, reason, err := orderRef(eventType, envelope)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode order event", err)
		_ = c.manager.Release(ctx, emailConsumerName, eventID)
		return err
	}

	order, err := c.orders.FindByID(ctx, orderID)
	if err != nil {
		c.logg.Error(logCtx, "failed to load order for email", err)
		_ = c.manager.Release(ctx, emailConsumerName, eventID)
		return err
	}

	switch eventType {
	case enums.EventOrderPaid:
		err = c.mailer.SendOrderConfirmation(ctx, order)
	case enums.EventOrderFulfilled:
		err = c.mailer.SendOrderFulfilled(ctx, order)
	case enums.EventOrderCancelled:
		err = c.mailer.SendOrderCancelled(ctx, order, reason)
	}
	if err != nil {
		c.logg.Error(logCtx, "failed to send order email", err)
		_ = c.manager.Release(ctx, emailConsumerName, eventID)
		return err
	}

	c.logg.Info(logCtx, "order email dispatched")
	return nil
}

// orderRef pulls the order id (and cancellation reason) out of the typed
// payload.
func orderRef(eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) (uuid.UUID, string, error) {
	switch eventType {
	case enums.EventOrderPaid:
		var payload payloads.OrderPaidEvent
		if err := json.Unmarshal(envelope.Data, &payload); err != nil {
			return uuid.Nil, "", fmt.Errorf("decode payload: %w", err)
		}
		return payload.OrderID, "", nil
	case enums.EventOrderFulfilled:
		var payload payloads.OrderFulfilledEvent
		if err := json.Unmarshal(envelope.Data, &payload); err != nil {
			return uuid.Nil, "", fmt.Errorf("decode payload: %w", err)
		}
		return payload.OrderID, "", nil
	case enums.EventOrderCancelled:
		var payload payloads.OrderCancelledEvent
		if err := json.Unmarshal(envelope.Data, &payload); err != nil {
			return uuid.Nil, "", fmt.Errorf("decode payload: %w", err)
		}
		return payload.OrderID, payload.Reason, nil
	}
	return uuid.Nil, "", fmt.Errorf("unsupported event type %s", eventType)
}
