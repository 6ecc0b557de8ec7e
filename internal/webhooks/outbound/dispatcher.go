package outboundwebhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/mieldesol/modhu-backend/pkg/config"
	"github.com/mieldesol/modhu-backend/pkg/db/models"
	"github.com/mieldesol/modhu-backend/pkg/enums"
	"github.com/mieldesol/modhu-backend/pkg/logger"
	"github.com/mieldesol/modhu-backend/pkg/metrics"
)

// Dispatcher fans outbox events out to subscribed endpoints. Every POST is
// recorded as a WebhookDelivery row; endpoint failures feed the
// subscription's failure streak instead of failing the outbox event.
type Dispatcher struct {
	repo       *Repository
	client     *http.Client
	failureCap int
	logg       *logger.Logger
	metrics    *metrics.DispatchMetrics
}

func NewDispatcher(repo *Repository, cfg config.WebhooksConfig, logg *logger.Logger, m *metrics.DispatchMetrics) (*Dispatcher, error) {
	if repo == nil {
		return nil, fmt.Errorf("repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		repo:       repo,
		client:     &http.Client{Timeout: timeout},
		failureCap: cfg.FailureCap,
		logg:       logg,
		metrics:    m,
	}, nil
}

// Dispatch posts the event to every active subscription that wants its type.
// Endpoint-level failures are recorded, not returned: the returned error only
// aggregates infrastructure problems (rows that could not be written), which
// makes the outbox poller retry the event.
func (d *Dispatcher) Dispatch(ctx context.Context, event *models.OutboxEvent) error {
	if event == nil {
		return fmt.Errorf("event required")
	}
	subs, err := d.repo.ListActiveSubscriptions(ctx)
	if err != nil {
		return err
	}

	var errs error
	for i := range subs {
		sub := &subs[i]
		if !sub.WantsEvent(event.EventType) {
			continue
		}
		exists, err := d.repo.HasDelivery(ctx, sub.ID, event.ID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("subscription %s: %w", sub.ID, err))
			continue
		}
		if exists {
			// The poller re-ran an event whose fan-out already happened.
			continue
		}

		delivery := &models.WebhookDelivery{
			ID:             uuid.New(),
			SubscriptionID: sub.ID,
			EventID:        event.ID,
			EventType:      event.EventType,
			Payload:        event.Payload,
			Status:         enums.WebhookDeliveryStatusPending,
		}
		if err := d.repo.CreateDelivery(ctx, delivery); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("subscription %s: %w", sub.ID, err))
			continue
		}
		if err := d.Attempt(ctx, sub, delivery); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("delivery %s: %w", delivery.ID, err))
		}
	}
	return errs
}

// Attempt performs one POST for the delivery and folds the outcome into the
// delivery row and the subscription's failure streak. The manual redeliver
// endpoint reuses it. An error means the outcome could not be recorded.
func (d *Dispatcher) Attempt(ctx context.Context, sub *models.WebhookSubscription, delivery *models.WebhookDelivery) error {
	started := time.Now()
	responseStatus, postErr := d.post(ctx, sub, delivery)
	d.metrics.ObserveWebhookDuration(string(delivery.EventType), time.Since(started))

	if postErr == nil {
		now := time.Now().UTC()
		if err := d.repo.RecordAttempt(ctx, delivery.ID, AttemptOutcome{
			Status:         enums.WebhookDeliveryStatusDelivered,
			ResponseStatus: responseStatus,
			DeliveredAt:    &now,
		}); err != nil {
			return err
		}
		d.metrics.IncWebhookDelivered(string(delivery.EventType))
		return d.repo.ResetFailureCount(ctx, sub.ID)
	}

	message := postErr.Error()
	if err := d.repo.RecordAttempt(ctx, delivery.ID, AttemptOutcome{
		Status:         enums.WebhookDeliveryStatusFailed,
		ResponseStatus: responseStatus,
		Error:          &message,
	}); err != nil {
		return err
	}
	d.metrics.IncWebhookFailed(string(delivery.EventType))

	disabled, err := d.repo.RecordFailure(ctx, sub.ID, d.failureCap)
	if err != nil {
		return err
	}
	logCtx := d.logg.WithFields(ctx, map[string]any{
		"subscription_id": sub.ID.String(),
		"delivery_id":     delivery.ID.String(),
		"event_type":      string(delivery.EventType),
	})
	if disabled {
		d.metrics.IncWebhookDisabled()
		d.logg.Warn(logCtx, "webhook subscription disabled after repeated failures")
	} else {
		d.logg.Warn(logCtx, "webhook delivery failed: "+message)
	}
	return nil
}

// post sends the signed payload. A non-2xx answer is an error so the caller
// records it, with the status code preserved separately.
func (d *Dispatcher) post(ctx context.Context, sub *models.WebhookSubscription, delivery *models.WebhookDelivery) (*int, error) {
	sentAt := time.Now().UTC()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.URL, bytes.NewReader(delivery.Payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "modhu-webhooks/1.0")
	req.Header.Set(HeaderEvent, string(delivery.EventType))
	req.Header.Set(HeaderDeliveryID, delivery.ID.String())
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(sentAt.Unix(), 10))
	req.Header.Set(HeaderSignature, Sign(sub.Secret, sentAt, delivery.Payload))

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	status := resp.StatusCode
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return &status, fmt.Errorf("endpoint returned status %d", status)
	}
	return &status, nil
}
