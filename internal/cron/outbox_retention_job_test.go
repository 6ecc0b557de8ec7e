package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mieldesol/modhu-backend/pkg/logger"
)

func TestOutboxRetentionJobDeletesPublishedRows(t *testing.T) {
	now := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	repo := &fakeOutboxRetentionRepo{batches: []int64{7}}
	job := newOutboxRetentionJob(t, OutboxRetentionJobParams{Repository: repo})
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	expectedCutoff := now.UTC().Add(-outboxRetentionDays * 24 * time.Hour)
	if !repo.lastCutoff.Equal(expectedCutoff) {
		t.Fatalf("expected cutoff %s, got %s", expectedCutoff, repo.lastCutoff)
	}
	if repo.minAttempts != outboxMinAttempts {
		t.Fatalf("expected min attempts %d, got %d", outboxMinAttempts, repo.minAttempts)
	}
	if repo.lastLimit != outboxPruneBatch {
		t.Fatalf("expected default batch size %d, got %d", outboxPruneBatch, repo.lastLimit)
	}
	if repo.called != 1 {
		t.Fatalf("expected repo called once, got %d", repo.called)
	}
}

func TestOutboxRetentionJobDrainsInBatches(t *testing.T) {
	repo := &fakeOutboxRetentionRepo{batches: []int64{2, 2, 1}}
	job := newOutboxRetentionJob(t, OutboxRetentionJobParams{Repository: repo, BatchSize: 2})

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if repo.called != 3 {
		t.Fatalf("expected three batches, repo called %d times", repo.called)
	}
}

func TestOutboxRetentionJobPropagatesError(t *testing.T) {
	repo := &fakeOutboxRetentionRepo{err: errors.New("boom")}
	job := newOutboxRetentionJob(t, OutboxRetentionJobParams{Repository: repo})

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestOutboxRetentionJobStopsOnCancelledContext(t *testing.T) {
	repo := &fakeOutboxRetentionRepo{batches: []int64{5}}
	job := newOutboxRetentionJob(t, OutboxRetentionJobParams{Repository: repo})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := job.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if repo.called != 0 {
		t.Fatalf("expected no delete after cancellation, repo called %d times", repo.called)
	}
}

func newOutboxRetentionJob(t *testing.T, params OutboxRetentionJobParams) *outboxRetentionJob {
	t.Helper()
	if params.Logger == nil {
		params.Logger = logger.New(logger.Options{ServiceName: "test"})
	}
	jobIface, err := NewOutboxRetentionJob(params)
	if err != nil {
		t.Fatalf("NewOutboxRetentionJob: %v", err)
	}
	job, ok := jobIface.(*outboxRetentionJob)
	if !ok {
		t.Fatalf("expected outboxRetentionJob, got %T", jobIface)
	}
	return job
}

type fakeOutboxRetentionRepo struct {
	batches     []int64
	lastCutoff  time.Time
	minAttempts int
	lastLimit   int
	called      int
	err         error
}

func (f *fakeOutboxRetentionRepo) DeletePublishedBefore(ctx context.Context, cutoff time.Time, minAttemptCount, limit int) (int64, error) {
	f.called++
	f.lastCutoff = cutoff
	f.minAttempts = minAttemptCount
	f.lastLimit = limit
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
