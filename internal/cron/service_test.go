package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/mieldesol/modhu-backend/pkg/logger"
)

type fakeLock struct {
	acquired bool
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.acquired {
		return false, nil
	}
	f.acquired = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error { f.acquired = false; return nil }

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

func newTestCronService(t *testing.T, lock Lock, jobs ...Job) *Service {
	t.Helper()
	service, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test"}),
		Registry: NewRegistry(jobs...),
		Lock:     lock,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return service
}

func TestServiceRunCycleRunsAllJobsEvenOnFailure(t *testing.T) {
	healthy := &testJob{name: "healthy"}
	broken := &testJob{name: "broken", err: errors.New("boom")}
	service := newTestCronService(t, &fakeLock{}, healthy, broken)

	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if healthy.runs != 1 {
		t.Fatalf("expected healthy job to run once, ran %d", healthy.runs)
	}
	if broken.runs != 1 {
		t.Fatalf("expected broken job to still run once, ran %d", broken.runs)
	}
}

func TestServiceRunCycleSkipsWhenLockHeld(t *testing.T) {
	job := &testJob{name: "only"}
	service := newTestCronService(t, &fakeLock{acquired: true}, job)

	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("expected no runs while another instance holds the lock, ran %d", job.runs)
	}
}

func TestServiceRunCycleReleasesLock(t *testing.T) {
	lock := &fakeLock{}
	service := newTestCronService(t, lock, &testJob{name: "any"})

	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if lock.acquired {
		t.Fatal("expected lock to be released after the cycle")
	}
}
