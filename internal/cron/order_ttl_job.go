package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/mieldesol/modhu-backend/pkg/logger"
)

const (
	defaultPendingOrderTTL = 2 * time.Hour
	orderTTLBatchSize      = 100
)

// OrderTTLJobParams configure the stale pending-order sweep.
type OrderTTLJobParams struct {
	Logger *logger.Logger
	Orders pendingReleaser
	// TTL is how long a pending order may wait for payment before its
	// reservations are returned to stock. Defaults to two hours, matching
	// the checkout session lifetime.
	TTL       time.Duration
	BatchSize int
}

type pendingReleaser interface {
	ReleaseStalePending(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

// NewOrderTTLJob builds the job that cancels abandoned checkouts. Cancelling
// through the orders service releases reserved stock and emits the
// order.cancelled event in the same transaction.
func NewOrderTTLJob(params OrderTTLJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultPendingOrderTTL
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = orderTTLBatchSize
	}
	return &orderTTLJob{
		logg:   params.Logger,
		orders: params.Orders,
		ttl:    ttl,
		batch:  batch,
	}, nil
}

type orderTTLJob struct {
	logg   *logger.Logger
	orders pendingReleaser
	ttl    time.Duration
	batch  int
}

func (j *orderTTLJob) Name() string { return "order-ttl" }

func (j *orderTTLJob) Run(ctx context.Context) error {
	total := 0
	for {
		released, err := j.orders.ReleaseStalePending(ctx, j.ttl, j.batch)
		total += released
		if err != nil {
			return fmt.Errorf("order ttl sweep: %w", err)
		}
		// A short batch means the backlog is drained.
		if released < j.batch {
			break
		}
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"released": total,
		"ttl":      j.ttl.String(),
	})
	j.logg.Info(logCtx, "stale pending order sweep complete")
	return nil
}
