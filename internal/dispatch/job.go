package dispatch

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/catalystcommunity/enginecore/internal/metrics"
	"github.com/catalystcommunity/enginecore/internal/profiling"
)

// JobState is one of the four states (plus the orthogonal detached flag)
// a Job's status word encodes.
type JobState int32

const (
	JobAssembling JobState = iota
	JobReleased
	JobFinishing
	JobCompleted
)

// WaitCheckDelay is the poll interval used by Job.Wait. Kept as a variable
// (not a const) so tests can shrink it.
var WaitCheckDelay = 200 * time.Microsecond

const (
	stateMask         = uint32(0x7)
	detachedBit       = uint32(1) << 3
	outstandingShift  = 4
	outstandingMask32 = uint32(0xFFFFFF)
)

// ErrJobNotAssembling is returned by DispatchTask once the job has left
// the assembling state (spec §4.2: "forbidden once the job left
// assembling").
var ErrJobNotAssembling = errors.New("dispatch: job is no longer assembling")

// ErrAlreadyReleased is returned by Release when called more than once.
var ErrAlreadyReleased = errors.New("dispatch: job already released")

// Job is a counted aggregate of tasks with an optional completion task,
// backed by a single atomic status word packing {state: 3 bits, detached:
// 1 bit, tasks_outstanding: 24 bits} — spec §4.2's CAS-only fast path.
type Job struct {
	status       atomic.Uint32
	completionFn func()
	pool         *Pool
}

func packOutstanding(word, outstanding uint32) uint32 {
	return (word &^ (outstandingMask32 << outstandingShift)) | ((outstanding & outstandingMask32) << outstandingShift)
}

func unpackOutstanding(word uint32) uint32 {
	return (word >> outstandingShift) & outstandingMask32
}

func packState(word uint32, state JobState) uint32 {
	return (word &^ stateMask) | uint32(state)
}

func unpackState(word uint32) JobState {
	return JobState(word & stateMask)
}

// State returns the job's current state, ignoring the detached bit.
func (j *Job) State() JobState { return unpackState(j.status.Load()) }

// Detached reports whether Detach has been called.
func (j *Job) Detached() bool { return j.status.Load()&detachedBit != 0 }

// Outstanding returns the number of tasks not yet finished.
func (j *Job) Outstanding() int { return int(unpackOutstanding(j.status.Load())) }

// DispatchTask adds a task to the job and submits it to the pool. It is
// forbidden once the job has left the assembling state.
func (j *Job) DispatchTask(name string, section *profiling.Section, fn TaskFunc) (*Task, error) {
	for {
		old := j.status.Load()
		if unpackState(old) != JobAssembling {
			return nil, ErrJobNotAssembling
		}
		next := packOutstanding(old, unpackOutstanding(old)+1)
		if j.status.CompareAndSwap(old, next) {
			break
		}
	}

	t := &Task{name: name, section: section, fn: fn, job: j}
	metrics.TasksDispatched.WithLabelValues("false").Inc()
	j.pool.wp.Submit(func() {
		metrics.WorkersActive.Inc()
		defer metrics.WorkersActive.Dec()
		t.run()
		metrics.TasksFinished.WithLabelValues().Inc()
	})
	return t, nil
}

// DispatchTaskList adds a batch of tasks in one logical call; forbidden
// once the job has left assembling (checked once, up front, matching the
// list form's single-locked-region contract — a partial submission cannot
// straddle a concurrent Release).
func (j *Job) DispatchTaskList(specs []struct {
	Name    string
	Section *profiling.Section
	Fn      TaskFunc
}) ([]*Task, error) {
	for {
		old := j.status.Load()
		if unpackState(old) != JobAssembling {
			return nil, ErrJobNotAssembling
		}
		next := packOutstanding(old, unpackOutstanding(old)+uint32(len(specs)))
		if j.status.CompareAndSwap(old, next) {
			break
		}
	}

	tasks := make([]*Task, len(specs))
	for i, s := range specs {
		t := &Task{name: s.Name, section: s.Section, fn: s.Fn, job: j}
		tasks[i] = t
		metrics.TasksDispatched.WithLabelValues("false").Inc()
		j.pool.wp.Submit(func() {
			metrics.WorkersActive.Inc()
			defer metrics.WorkersActive.Dec()
			t.run()
			metrics.TasksFinished.WithLabelValues().Inc()
		})
	}
	return tasks, nil
}

// Release moves the job out of assembling: straight to completed if no
// tasks are outstanding (firing the completion function inline), otherwise
// to released so the last finishing task fires completion instead.
func (j *Job) Release(completionFn func()) error {
	j.completionFn = completionFn

	for {
		old := j.status.Load()
		if unpackState(old) != JobAssembling {
			return ErrAlreadyReleased
		}
		outstanding := unpackOutstanding(old)
		target := JobReleased
		if outstanding == 0 {
			target = JobCompleted
		}
		next := packState(old, target)
		if j.status.CompareAndSwap(old, next) {
			if target == JobCompleted {
				j.fireCompletion()
			}
			return nil
		}
	}
}

// taskFinished is invoked by Task.run for every task belonging to this
// job. The task that brings outstanding to zero while released transitions
// the job through finishing to completed and fires the completion
// function exactly once.
func (j *Job) taskFinished() {
	for {
		old := j.status.Load()
		outstanding := unpackOutstanding(old)
		newOutstanding := outstanding - 1
		state := unpackState(old)

		if newOutstanding == 0 && state == JobReleased {
			finishing := packState(packOutstanding(old, 0), JobFinishing)
			if !j.status.CompareAndSwap(old, finishing) {
				continue
			}
			j.fireCompletion()

			completed := packState(finishing, JobCompleted)
			j.status.Store(completed)
			metrics.JobsCompleted.WithLabelValues().Inc()
			return
		}

		next := packOutstanding(old, newOutstanding)
		if j.status.CompareAndSwap(old, next) {
			return
		}
	}
}

func (j *Job) fireCompletion() {
	if j.completionFn != nil {
		j.completionFn()
	}
}

// Detach marks the job detached. If it has already completed this is
// equivalent to an immediate free (a no-op: Go reclaims it once
// unreferenced); otherwise the last finishing task's cleanup plays the
// role of the worker-side free.
func (j *Job) Detach() {
	for {
		old := j.status.Load()
		if unpackState(old) == JobCompleted {
			return
		}
		next := old | detachedBit
		if j.status.CompareAndSwap(old, next) {
			return
		}
	}
}

// Wait busy-polls with WaitCheckDelay until the job completes. Spec §4.2
// permits either a polling or proper wait-variable implementation; this
// mirrors the source's own choice (the job's completion is rare and
// short-lived enough that a wait-variable buys little).
func (j *Job) Wait() {
	for j.State() != JobCompleted {
		time.Sleep(WaitCheckDelay)
	}
}
