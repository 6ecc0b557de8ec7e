package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/mieldesol/modhu-backend/pkg/logger"
)

const (
	outboxRetentionDays = 30
	outboxMinAttempts   = 10
	outboxPruneBatch    = 1000
)

// OutboxRetentionJobParams configure the outbox prune.
type OutboxRetentionJobParams struct {
	Logger      *logger.Logger
	Repository  outboxRetentionRepo
	Retention   int
	MinAttempts int
	BatchSize   int
}

type outboxRetentionRepo interface {
	DeletePublishedBefore(ctx context.Context, cutoff time.Time, minAttemptCount, limit int) (int64, error)
}

// NewOutboxRetentionJob builds the job that prunes published outbox rows and
// abandoned failures past the attempt ceiling.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = outboxRetentionDays
	}
	minAttempts := params.MinAttempts
	if minAttempts <= 0 {
		minAttempts = outboxMinAttempts
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = outboxPruneBatch
	}
	return &outboxRetentionJob{
		logg:        params.Logger,
		repo:        params.Repository,
		retention:   retention,
		minAttempts: minAttempts,
		batchSize:   batchSize,
		now:         time.Now,
	}, nil
}

type outboxRetentionJob struct {
	logg        *logger.Logger
	repo        outboxRetentionRepo
	retention   int
	minAttempts int
	batchSize   int
	now         func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

// Run deletes in bounded batches rather than one sweeping DELETE. A short
// batch means the backlog is drained; a full one means there may be more.
func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.retention) * 24 * time.Hour)
	var total int64
	batches := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		deleted, err := j.repo.DeletePublishedBefore(ctx, cutoff, j.minAttempts, j.batchSize)
		if err != nil {
			return fmt.Errorf("outbox retention: %w", err)
		}
		total += deleted
		batches++
		if deleted < int64(j.batchSize) {
			break
		}
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retention,
		"rows_deleted":   total,
		"batches":        batches,
	})
	j.logg.Info(logCtx, "outbox retention cleanup complete")
	return nil
}
