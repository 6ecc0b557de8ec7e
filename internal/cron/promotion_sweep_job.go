package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/mieldesol/modhu-backend/pkg/logger"
)

// PromotionSweepJobParams configure the promotion window sweep.
type PromotionSweepJobParams struct {
	Logger     *logger.Logger
	Promotions promotionSweeper
}

type promotionSweeper interface {
	DeactivateEnded(ctx context.Context, now time.Time) (int64, error)
}

// NewPromotionSweepJob builds the job that retires promotions whose window
// has closed. The engine already refuses out-of-window promotions at
// evaluation time; the sweep keeps the admin list honest.
func NewPromotionSweepJob(params PromotionSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Promotions == nil {
		return nil, fmt.Errorf("promotions repository required")
	}
	return &promotionSweepJob{
		logg:   params.Logger,
		promos: params.Promotions,
		now:    time.Now,
	}, nil
}

type promotionSweepJob struct {
	logg   *logger.Logger
	promos promotionSweeper
	now    func() time.Time
}

func (j *promotionSweepJob) Name() string { return "promotion-sweep" }

func (j *promotionSweepJob) Run(ctx context.Context) error {
	deactivated, err := j.promos.DeactivateEnded(ctx, j.now().UTC())
	if err != nil {
		return fmt.Errorf("promotion sweep: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"deactivated": deactivated})
	j.logg.Info(logCtx, "ended promotions deactivated")
	return nil
}
