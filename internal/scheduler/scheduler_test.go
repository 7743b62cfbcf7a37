package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/les2feup/citylink/internal/domain"
)

func TestTaskCreate_OneShotRuns(t *testing.T) {
	s := New(DefaultConfig(), nil)
	defer s.Shutdown()

	var ran atomic.Bool
	s.TaskCreate(domain.TaskSpec{
		ID:       "once",
		Kind:     domain.TaskOneShot,
		Interval: 10 * time.Millisecond,
		Body: func(ctx context.Context) error {
			ran.Store(true)
			return nil
		},
	})

	time.Sleep(50 * time.Millisecond)
	if !ran.Load() {
		t.Fatal("one-shot task did not run")
	}
}

func TestTaskCreate_PeriodicRunsMultipleTimes(t *testing.T) {
	s := New(DefaultConfig(), nil)
	defer s.Shutdown()

	var count atomic.Int64
	s.TaskCreate(domain.TaskSpec{
		ID:       "tick",
		Kind:     domain.TaskPeriodic,
		Interval: 10 * time.Millisecond,
		Body: func(ctx context.Context) error {
			count.Add(1)
			return nil
		},
	})

	time.Sleep(55 * time.Millisecond)
	if got := count.Load(); got < 3 {
		t.Fatalf("periodic task ran %d times, want >= 3", got)
	}
}

func TestTaskCreate_PeriodicFiresImmediately(t *testing.T) {
	s := New(DefaultConfig(), nil)
	defer s.Shutdown()

	ran := make(chan struct{}, 1)
	s.TaskCreate(domain.TaskSpec{
		ID:       "slow-period",
		Kind:     domain.TaskPeriodic,
		Interval: time.Hour,
		Body: func(ctx context.Context) error {
			select {
			case ran <- struct{}{}:
			default:
			}
			return nil
		},
	})

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("a periodic task's body must run before its first period elapses")
	}
}

func TestTaskCreate_ReplacesExistingID(t *testing.T) {
	s := New(DefaultConfig(), nil)
	defer s.Shutdown()

	var firstCancelled atomic.Bool
	s.TaskCreate(domain.TaskSpec{
		ID:       "slot",
		Kind:     domain.TaskPeriodic,
		Interval: 5 * time.Millisecond,
		Body: func(ctx context.Context) error {
			<-ctx.Done()
			firstCancelled.Store(true)
			return nil
		},
	})
	time.Sleep(10 * time.Millisecond)

	var secondRan atomic.Bool
	s.TaskCreate(domain.TaskSpec{
		ID:       "slot",
		Kind:     domain.TaskOneShot,
		Interval: 0,
		Body: func(ctx context.Context) error {
			secondRan.Store(true)
			return nil
		},
	})

	time.Sleep(30 * time.Millisecond)
	if !firstCancelled.Load() {
		t.Error("creating a task under an existing id should cancel the old one")
	}
	if !secondRan.Load() {
		t.Error("the replacement task should have run")
	}
	if stats := s.Stats(); stats.Running != 0 {
		t.Errorf("want 0 running tasks after replacement settles, got %d", stats.Running)
	}
}

func TestTaskCancel_StopsCooperatively(t *testing.T) {
	s := New(DefaultConfig(), nil)
	defer s.Shutdown()

	started := make(chan struct{})
	cancelled := make(chan struct{})
	s.TaskCreate(domain.TaskSpec{
		ID:       "long",
		Kind:     domain.TaskOneShot,
		Interval: 0,
		Body: func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			close(cancelled)
			return nil
		},
	})

	<-started
	if ok := s.TaskCancel("long"); !ok {
		t.Fatal("TaskCancel reported no such task")
	}

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("task did not observe cancellation")
	}
}

func TestTaskCancel_UnknownID(t *testing.T) {
	s := New(DefaultConfig(), nil)
	defer s.Shutdown()
	if ok := s.TaskCancel("nonexistent"); ok {
		t.Fatal("expected false for unknown task id")
	}
}

func TestScheduler_TracksFailures(t *testing.T) {
	s := New(DefaultConfig(), nil)
	defer s.Shutdown()

	s.TaskCreate(domain.TaskSpec{
		ID:       "boom",
		Kind:     domain.TaskOneShot,
		Interval: 0,
		Body: func(ctx context.Context) error {
			return errors.New("boom")
		},
	})

	time.Sleep(30 * time.Millisecond)
	if got := s.Stats().Failed; got != 1 {
		t.Fatalf("Failed = %d, want 1", got)
	}
}

func TestTaskSleepMs_CancellableEarly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- TaskSleepMs(ctx, 5000) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected context error")
		}
	case <-time.After(time.Second):
		t.Fatal("TaskSleepMs did not return after cancellation")
	}
}
