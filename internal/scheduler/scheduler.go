// Package scheduler implements the cooperative task scheduler: each task
// runs on its own goroutine, periodic tasks are drift-compensated against a
// fixed schedule rather than resetting the clock after their body returns,
// and cancellation only takes effect at a task's own suspension points —
// there is no preemption. This replaces the original firmware's single
// cooperative asyncio event loop, where only one task body ever ran at a
// time; spreading tasks across goroutines is the idiomatic Go reshaping of
// that same cooperative contract (a slow task still can't starve the
// others, but does not serialize the whole device's liveness either).
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/les2feup/citylink/internal/domain"
)

// ─── Configuration ──────────────────────────────────────────────────────────

// Config configures scheduler-wide behavior.
type Config struct {
	// DriftCorrection compensates a periodic task's next fire time for how
	// long its own body took, instead of sleeping a full Interval after
	// the body returns. Default true.
	DriftCorrection bool
}

// DefaultConfig returns production scheduler defaults.
func DefaultConfig() Config {
	return Config{DriftCorrection: true}
}

// ─── Scheduler ──────────────────────────────────────────────────────────────

type entry struct {
	spec    domain.TaskSpec
	cancel  context.CancelFunc
	status  atomic.Value // domain.TaskStatus
	lastErr atomic.Value // string
}

// Scheduler runs TaskSpecs, replacing any task registered under an
// already-running id rather than rejecting the new one — matching the
// original firmware's task_create semantics, where creating a task under an
// existing name reassigns the slot outright. The old task is only cancelled
// cooperatively, so its body keeps running until its next suspension point.
type Scheduler struct {
	cfg Config
	log *slog.Logger

	mu    sync.Mutex
	tasks map[string]*entry
	wg    sync.WaitGroup

	created atomic.Int64
	failed  atomic.Int64
}

// New builds a Scheduler. log may be nil, in which case slog.Default() is
// used.
func New(cfg Config, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{cfg: cfg, log: log, tasks: make(map[string]*entry)}
}

// Stats is a point-in-time counter snapshot for metrics and logging.
type Stats struct {
	Running int
	Created int64
	Failed  int64
}

func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	running := len(s.tasks)
	s.mu.Unlock()
	return Stats{Running: running, Created: s.created.Load(), Failed: s.failed.Load()}
}

// TaskCreate starts spec, replacing (cancelling then discarding) any task
// already registered under spec.ID.
func (s *Scheduler) TaskCreate(spec domain.TaskSpec) {
	s.mu.Lock()
	if old, ok := s.tasks[spec.ID]; ok {
		old.cancel()
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &entry{spec: spec, cancel: cancel}
	e.status.Store(domain.TaskStatusRunning)
	s.tasks[spec.ID] = e
	s.mu.Unlock()

	s.created.Add(1)
	s.wg.Add(1)
	go s.run(ctx, e)
}

// TaskCancel requests cooperative cancellation of the task with id. The
// task's body only observes this at its own ctx.Done() checks or
// TaskSleep calls — it is never interrupted mid-statement.
func (s *Scheduler) TaskCancel(id string) bool {
	s.mu.Lock()
	e, ok := s.tasks[id]
	s.mu.Unlock()
	if !ok {
		return false
	}
	e.cancel()
	return true
}

// TaskInfo returns a snapshot of every currently registered task.
func (s *Scheduler) TaskInfo() []domain.TaskInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.TaskInfo, 0, len(s.tasks))
	for _, e := range s.tasks {
		status, _ := e.status.Load().(domain.TaskStatus)
		lastErr, _ := e.lastErr.Load().(string)
		out = append(out, domain.TaskInfo{
			ID:       e.spec.ID,
			Kind:     e.spec.Kind,
			Status:   status,
			Interval: e.spec.Interval,
			LastErr:  lastErr,
		})
	}
	return out
}

// Wait blocks until every task goroutine has exited — used during shutdown
// once every task has been cancelled.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Shutdown cancels every running task and waits for their goroutines to
// return.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	for _, e := range s.tasks {
		e.cancel()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context, e *entry) {
	defer s.wg.Done()
	defer s.remove(e.spec.ID, e)

	switch e.spec.Kind {
	case domain.TaskOneShot:
		s.runOneShot(ctx, e)
	case domain.TaskPeriodic:
		s.runPeriodic(ctx, e)
	}
}

func (s *Scheduler) runOneShot(ctx context.Context, e *entry) {
	if !s.sleep(ctx, e.spec.Interval) {
		e.status.Store(domain.TaskStatusCancelled)
		return
	}
	s.invoke(ctx, e)
}

// runPeriodic fires the body immediately, then keeps a fixed schedule: the
// next wake time is recorded before the body runs, so however long the body
// takes is absorbed into the remaining sleep rather than pushing every
// subsequent cycle later.
func (s *Scheduler) runPeriodic(ctx context.Context, e *entry) {
	for {
		next := time.Now().Add(e.spec.Interval)
		if ctx.Err() != nil {
			e.status.Store(domain.TaskStatusCancelled)
			return
		}

		s.invoke(ctx, e)

		if !s.cfg.DriftCorrection {
			next = time.Now().Add(e.spec.Interval)
		}
		e.status.Store(domain.TaskStatusSleeping)
		if !s.sleepUntil(ctx, next) {
			e.status.Store(domain.TaskStatusCancelled)
			return
		}
	}
}

func (s *Scheduler) invoke(ctx context.Context, e *entry) {
	e.status.Store(domain.TaskStatusRunning)
	if err := e.spec.Body(ctx); err != nil {
		s.failed.Add(1)
		e.status.Store(domain.TaskStatusFailed)
		e.lastErr.Store(err.Error())
		s.log.Error("task body failed", "task_id", e.spec.ID, "err", err)
	}
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Scheduler) sleepUntil(ctx context.Context, t time.Time) bool {
	d := time.Until(t)
	if d < 0 {
		d = 0
	}
	return s.sleep(ctx, d)
}

func (s *Scheduler) remove(id string, e *entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Only remove if this is still the registered entry — TaskCreate may
	// have already replaced it with a newer one under the same id.
	if cur, ok := s.tasks[id]; ok && cur == e {
		delete(s.tasks, id)
	}
}
