package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mieldesol/modhu-backend/pkg/logger"
)

type fakePendingReleaser struct {
	batches []int
	lastTTL time.Duration
	calls   int
	err     error
}

func (f *fakePendingReleaser) ReleaseStalePending(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	f.calls++
	f.lastTTL = olderThan
	if f.err != nil {
		return 0, f.err
	}
	if len(f.batches) == 0 {
		return 0, nil
	}
	n := f.batches[0]
	f.batches = f.batches[1:]
	return n, nil
}

func newOrderTTLJob(t *testing.T, releaser *fakePendingReleaser, ttl time.Duration, batch int) Job {
	t.Helper()
	job, err := NewOrderTTLJob(OrderTTLJobParams{
		Logger:    logger.New(logger.Options{ServiceName: "test"}),
		Orders:    releaser,
		TTL:       ttl,
		BatchSize: batch,
	})
	if err != nil {
		t.Fatalf("NewOrderTTLJob: %v", err)
	}
	return job
}

func TestOrderTTLJobDrainsBacklogInBatches(t *testing.T) {
	// Two full batches followed by a short one: three calls total.
	releaser := &fakePendingReleaser{batches: []int{2, 2, 1}}
	job := newOrderTTLJob(t, releaser, 2*time.Hour, 2)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if releaser.calls != 3 {
		t.Fatalf("expected 3 batch calls, got %d", releaser.calls)
	}
	if releaser.lastTTL != 2*time.Hour {
		t.Fatalf("expected 2h ttl, got %s", releaser.lastTTL)
	}
}

func TestOrderTTLJobStopsOnEmptySweep(t *testing.T) {
	releaser := &fakePendingReleaser{}
	job := newOrderTTLJob(t, releaser, 0, 0)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if releaser.calls != 1 {
		t.Fatalf("expected a single call, got %d", releaser.calls)
	}
	if releaser.lastTTL != defaultPendingOrderTTL {
		t.Fatalf("expected default ttl, got %s", releaser.lastTTL)
	}
}

func TestOrderTTLJobPropagatesError(t *testing.T) {
	releaser := &fakePendingReleaser{err: errors.New("boom")}
	job := newOrderTTLJob(t, releaser, time.Hour, 10)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
