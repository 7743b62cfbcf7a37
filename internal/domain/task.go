// Package domain — scheduler task types.
// A TaskSpec is a unit of cooperative work the scheduler runs on its own
// goroutine, either once after a delay or repeatedly on a period.
package domain

import (
	"context"
	"time"
)

// TaskKind distinguishes a periodic task from a one-shot delayed task.
type TaskKind int

const (
	TaskOneShot TaskKind = iota
	TaskPeriodic
)

// TaskSpec describes a scheduled unit of cooperative work. Body runs on the
// scheduler's own goroutine for that task id and must cooperate by checking
// ctx.Done() at its own suspension points — the scheduler never preempts a
// running body mid-execution.
type TaskSpec struct {
	ID       string
	Kind     TaskKind
	Interval time.Duration // period for TaskPeriodic, delay for TaskOneShot
	Body     func(ctx context.Context) error
}

// TaskStatus reports a task's current lifecycle state, surfaced on the
// debug HTTP endpoint and in logs.
type TaskStatus string

const (
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusSleeping  TaskStatus = "sleeping"
	TaskStatusCancelled TaskStatus = "cancelled"
	TaskStatusFailed    TaskStatus = "failed"
)

// TaskInfo is a point-in-time snapshot of a scheduled task, independent of
// the goroutine actually running it.
type TaskInfo struct {
	ID       string
	Kind     TaskKind
	Status   TaskStatus
	Interval time.Duration
	LastErr  string
}
