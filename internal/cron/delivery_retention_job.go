package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/mieldesol/modhu-backend/pkg/logger"
)

const deliveryRetentionDays = 30

// DeliveryRetentionJobParams configure the webhook delivery prune.
type DeliveryRetentionJobParams struct {
	Logger     *logger.Logger
	Deliveries deliveryPruner
	Retention  int
}

type deliveryPruner interface {
	DeleteDeliveriesBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// NewDeliveryRetentionJob builds the job that prunes old webhook delivery
// records. Subscriptions and their failure counters are untouched; only the
// per-attempt audit rows age out.
func NewDeliveryRetentionJob(params DeliveryRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Deliveries == nil {
		return nil, fmt.Errorf("delivery repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = deliveryRetentionDays
	}
	return &deliveryRetentionJob{
		logg:       params.Logger,
		deliveries: params.Deliveries,
		retention:  retention,
		now:        time.Now,
	}, nil
}

type deliveryRetentionJob struct {
	logg       *logger.Logger
	deliveries deliveryPruner
	retention  int
	now        func() time.Time
}

func (j *deliveryRetentionJob) Name() string { return "webhook-delivery-retention" }

func (j *deliveryRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.retention) * 24 * time.Hour)
	deleted, err := j.deliveries.DeleteDeliveriesBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("delivery retention: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retention,
		"rows_deleted":   deleted,
	})
	j.logg.Info(logCtx, "webhook delivery retention cleanup complete")
	return nil
}
