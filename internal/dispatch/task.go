// Package dispatch implements the CPU task queue, worker pool, and job
// abstraction (spec component C): tasks are atomic three-state nodes
// (queued, running, finished) with a detach flag; jobs are counted
// aggregates over a set of tasks with an optional completion task.
//
// The worker pool itself is github.com/gammazero/workerpool, generalized
// from the teacher's one-shot bootstrap pool (cmd/api.go's initStores) into
// a long-lived dispatcher. The job status-word CAS state machine has no
// analogue in the teacher and is implemented directly on sync/atomic.
package dispatch

import (
	"sync/atomic"

	"github.com/catalystcommunity/enginecore/internal/profiling"
)

// TaskState is one of the three atomic states a Task moves through.
type TaskState int32

const (
	TaskQueued TaskState = iota
	TaskRunning
	TaskFinished
)

// TaskFunc is the user function a Task wraps.
type TaskFunc func()

// Task is a dispatched unit of work. Tasks are freed (become eligible for
// GC) either immediately, when detached after finishing, or by the worker
// on completion when detached before finishing.
type Task struct {
	name     string
	section  *profiling.Section
	fn       TaskFunc
	state    atomic.Int32
	detached atomic.Bool
	job      *Job // nil for tasks dispatched outside a job
}

// Name returns the task's name.
func (t *Task) Name() string { return t.name }

// State returns the task's current atomic state.
func (t *Task) State() TaskState { return TaskState(t.state.Load()) }

// IsFinished is a non-blocking read of whether the task has finished.
func (t *Task) IsFinished() bool { return t.State() == TaskFinished }

// Detach marks the task as detached. If it has already finished, this is
// equivalent to an immediate free (a no-op in Go: the task becomes
// unreachable once the caller drops its reference); otherwise the worker
// frees it on completion.
func (t *Task) Detach() { t.detached.Store(true) }

// run executes the wrapped function, timing it in the task's profiler
// section if one was set, and notifies the owning job (if any) on finish.
func (t *Task) run() {
	t.state.Store(int32(TaskRunning))

	if t.section != nil {
		end := t.section.Begin()
		t.fn()
		end()
	} else {
		t.fn()
	}

	t.state.Store(int32(TaskFinished))
	if t.job != nil {
		t.job.taskFinished()
	}
}
