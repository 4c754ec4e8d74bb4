package render

import (
	"runtime"
	"sync/atomic"
)

// spinLock is the render backend's atomic-int spin lock: guards the
// frame-lifetime allocator's page list, the per-memory schedules, and
// the pipeline-layout cache's hash table, each with its own instance.
type spinLock struct {
	held atomic.Bool
}

func (l *spinLock) Lock() {
	for !l.held.CompareAndSwap(false, true) {
		runtime.Gosched()
	}
}

func (l *spinLock) Unlock() {
	l.held.Store(false)
}
